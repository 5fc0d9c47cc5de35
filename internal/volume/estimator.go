// Package volume estimates recoverable device counts from distress events.
// Every signal must answer: could this event produce 100+ surplus devices?
package volume

import (
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
)

// DeviceThreshold is the minimum estimated device count for a viable
// opportunity.
const DeviceThreshold = 100

// EstimateCap bounds a single estimate so one bad extraction cannot dominate
// aggregate pipeline-value metrics.
const EstimateCap = 10_000

// EmployeeCountCap bounds affected-employee counts from free-text extraction,
// which often returns whole-company headcounts instead of event-scoped counts.
const EmployeeCountCap = 50_000

// edgarRestructuringCap is a tighter cap for SEC EDGAR restructuring signals,
// where filings routinely cite total headcount.
const edgarRestructuringCap = 5_000

// unknownSizeEstimate is the conservative device estimate for liquidation-class
// events with no employee count; these are never silently excluded.
const unknownSizeEstimate = 500

// deviceMultipliers maps an event type to devices per affected person.
var deviceMultipliers = map[string]float64{
	model.TypeLayoff:            1.5, // 1 laptop + peripherals per employee
	model.TypeOfficeClosure:     1.8, // monitors, docking stations
	model.TypeFacilityShutdown:  2.0, // includes servers, networking gear
	model.TypePlantClosing:      1.5,
	model.TypeBankruptcyCh7:     3.0, // forced liquidation, everything goes
	model.TypeBankruptcyCh11:    1.5, // restructuring, partial surplus
	model.TypeMerger:            1.0, // duplicate infrastructure
	model.TypeAcquisition:       1.0,
	model.TypeLiquidation:       3.0,
	model.TypeCeasingOperations: 3.0,
	model.TypeRestructuring:     1.2,
	model.TypeRelocation:        0.5, // may keep equipment
	// Aliases for non-canonical types in existing data.
	"facility_closure": 1.8,
	"facility_closing": 2.0,
	"shutdown":         2.0,
}

// alwaysHighValue are event types that carry a fixed conservative estimate
// when the affected-person count is unknown.
var alwaysHighValue = map[string]bool{
	model.TypeBankruptcyCh7:     true,
	model.TypeBankruptcyCh11:    true,
	model.TypeLiquidation:       true,
	model.TypeCeasingOperations: true,
}

// EstimateDevices maps (event type, affected-person count) to an estimated
// surplus device count. Returns nil when no estimate is possible.
func EstimateDevices(eventType string, employeesAffected *int) *int {
	if employeesAffected == nil {
		if alwaysHighValue[eventType] {
			est := unknownSizeEstimate
			return &est
		}
		return nil
	}

	multiplier, ok := deviceMultipliers[eventType]
	if !ok {
		multiplier = 1.0
	}

	estimate := int(float64(*employeesAffected) * multiplier)
	if estimate > EstimateCap {
		zap.L().Warn("device estimate capped",
			zap.String("event_type", eventType),
			zap.Int("employees", *employeesAffected),
			zap.Int("raw_estimate", estimate),
			zap.Int("capped_at", EstimateCap),
		)
		estimate = EstimateCap
	}
	return &estimate
}

// PassesFilter reports whether the event clears the device threshold.
// Unknown estimates pass so classification can assess them.
func PassesFilter(eventType string, employeesAffected *int) bool {
	estimate := EstimateDevices(eventType, employeesAffected)
	if estimate == nil {
		return true
	}

	passes := *estimate >= DeviceThreshold
	if !passes {
		zap.L().Info("event below device threshold",
			zap.String("event_type", eventType),
			zap.Int("estimate", *estimate),
			zap.Int("threshold", DeviceThreshold),
		)
	}
	return passes
}

// CapEmployeeCount applies the extraction sanity caps to an affected-employee
// count before estimation.
func CapEmployeeCount(employees *int, sourceType, signalType string) *int {
	if employees == nil {
		return nil
	}

	capped := *employees
	if capped > EmployeeCountCap {
		zap.L().Warn("employee count capped",
			zap.Int("original", capped),
			zap.Int("capped_at", EmployeeCountCap),
		)
		capped = EmployeeCountCap
	}
	if sourceType == model.SourceSECEdgar && signalType == model.TypeRestructuring && capped > edgarRestructuringCap {
		capped = edgarRestructuringCap
	}
	return &capped
}
