// Package timing predicts where in the asset disposition lifecycle a deal
// currently sits, so reps know not just what to prioritize but when to act.
//
// Three predicted phases:
//   - Early Outreach: distress detected, assets not yet moving
//   - Active Liquidation: assets are or will soon be in play
//   - Late-Stage: opportunity aging out, most value may be claimed
//
// Rule-based, deterministic, zero API cost.
package timing

import (
	"fmt"
	"strings"

	"github.com/sells-group/disposight/internal/model"
)

// Phase is a disposition lifecycle phase.
type Phase string

const (
	PhaseEarlyOutreach     Phase = "early_outreach"
	PhaseActiveLiquidation Phase = "active_liquidation"
	PhaseLateStage         Phase = "late_stage"
)

// phaseOrder indexes phases so advancement is monotonic (never backward).
var phaseOrder = []Phase{PhaseEarlyOutreach, PhaseActiveLiquidation, PhaseLateStage}

// activeStartTypes are signal types that start directly in active_liquidation.
var activeStartTypes = map[string]bool{
	model.TypeBankruptcyCh7:     true,
	model.TypeLiquidation:       true,
	model.TypeCeasingOperations: true,
	model.TypeOfficeClosure:     true,
	model.TypeFacilityShutdown:  true,
	"shutdown":                  true,
}

type phaseMeta struct {
	label string
	verb  string
}

var phaseMetas = map[Phase]phaseMeta{
	PhaseEarlyOutreach:     {"Early Outreach", "Reach out early"},
	PhaseActiveLiquidation: {"Active Liquidation", "Act now"},
	PhaseLateStage:         {"Late-Stage", "Move fast or pass"},
}

// Prediction is the timing model output for one opportunity.
type Prediction struct {
	Phase       Phase  `json:"phase"`
	PhaseLabel  string `json:"phase_label"`
	Verb        string `json:"verb"`
	Explanation string `json:"explanation"`
	Confidence  string `json:"confidence"` // "high" | "medium" | "low"
}

// Input holds the aggregate facts the predictor consumes.
type Input struct {
	SignalTypes     []string
	DaysSinceLatest int
	SignalVelocity  float64 // signals per month
	EmployeeCount   *int
	RiskTrend       model.RiskTrend
	SignalCount     int
}

// sizeMultiplier stretches the decay windows: larger orgs take longer to
// disposition assets.
func sizeMultiplier(employeeCount *int) float64 {
	switch {
	case employeeCount == nil || *employeeCount < 500:
		return 1.0
	case *employeeCount < 5000:
		return 1.5
	default:
		return 2.0
	}
}

func initialPhase(signalTypes []string) Phase {
	for _, st := range signalTypes {
		if activeStartTypes[st] {
			return PhaseActiveLiquidation
		}
	}
	return PhaseEarlyOutreach
}

func phaseIndex(p Phase) int {
	for i, ph := range phaseOrder {
		if ph == p {
			return i
		}
	}
	return 0
}

// advance moves forward only.
func advance(current, target int) int {
	if target > current {
		return target
	}
	return current
}

func computeConfidence(signalCount, daysSinceLatest int) string {
	if signalCount >= 3 && daysSinceLatest <= 14 {
		return "high"
	}
	if signalCount >= 2 || daysSinceLatest <= 30 {
		return "medium"
	}
	return "low"
}

// PredictPhase runs the 3-step rule engine:
//  1. initial phase from signal type urgency
//  2. time-based decay with the size multiplier
//  3. velocity acceleration (only promotes early -> active)
func PredictPhase(in Input) Prediction {
	phase := initialPhase(in.SignalTypes)
	idx := phaseIndex(phase)

	mult := sizeMultiplier(in.EmployeeCount)
	days := float64(in.DaysSinceLatest)

	if phase == PhaseEarlyOutreach {
		switch {
		case days >= 90*mult:
			idx = advance(idx, 2)
		case days >= 30*mult:
			idx = advance(idx, 1)
		}
	}

	if phase == PhaseActiveLiquidation || phaseOrder[idx] == PhaseActiveLiquidation {
		if days >= 45*mult {
			idx = advance(idx, 2)
		}
	}

	if idx == 0 {
		if in.SignalVelocity >= 3.0 && in.SignalCount >= 3 {
			idx = 1
		} else if in.SignalVelocity >= 2.0 && in.RiskTrend == model.TrendRising {
			idx = 1
		}
	}

	final := phaseOrder[idx]
	meta := phaseMetas[final]

	return Prediction{
		Phase:       final,
		PhaseLabel:  meta.label,
		Verb:        meta.verb,
		Explanation: buildExplanation(final, in),
		Confidence:  computeConfidence(in.SignalCount, in.DaysSinceLatest),
	}
}

// buildExplanation selects a deterministic template from phase + the
// triggering condition.
func buildExplanation(phase Phase, in Input) string {
	var activeTypes []string
	for _, st := range in.SignalTypes {
		if activeStartTypes[st] {
			activeTypes = append(activeTypes, st)
		}
	}

	switch phase {
	case PhaseActiveLiquidation:
		if len(activeTypes) > 0 {
			typeLabel := strings.ReplaceAll(activeTypes[0], "_", " ")
			return fmt.Sprintf("Active liquidation phase — %s detected, assets are or will soon be in play.", typeLabel)
		}
		if in.SignalVelocity >= 3.0 {
			return "Accelerating signal velocity pushed this deal into active liquidation phase."
		}
		return "Time decay and signal patterns indicate assets are entering the disposition window."

	case PhaseEarlyOutreach:
		if in.EmployeeCount != nil && *in.EmployeeCount >= 5000 {
			return "Large organization in early distress — extended timeline gives you a head start."
		}
		return "Distress signals detected but assets are not yet moving — build relationships early."

	default: // late_stage
		if in.DaysSinceLatest > 90 {
			return fmt.Sprintf("Last signal was %d days ago — most value may already be claimed.", in.DaysSinceLatest)
		}
		return "Deal is aging out of the active window — move fast or consider passing."
	}
}
