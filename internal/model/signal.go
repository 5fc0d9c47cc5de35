package model

import (
	"time"

	"github.com/google/uuid"
)

// Canonical signal types produced by classification + alias normalization.
const (
	TypeBankruptcyCh7     = "bankruptcy_ch7"
	TypeBankruptcyCh11    = "bankruptcy_ch11"
	TypeLiquidation       = "liquidation"
	TypeCeasingOperations = "ceasing_operations"
	TypeOfficeClosure     = "office_closure"
	TypeFacilityShutdown  = "facility_shutdown"
	TypePlantClosing      = "plant_closing"
	TypeLayoff            = "layoff"
	TypeRestructuring     = "restructuring"
	TypeMerger            = "merger"
	TypeAcquisition       = "acquisition"
	TypeRelocation        = "relocation"
)

// Signal categories, one per independent source family.
const (
	CategoryWARN       = "warn"
	CategoryBankruptcy = "bankruptcy"
	CategoryFiling     = "filing"
	CategoryNews       = "news"
)

// Signal is the processed, scored unit: a classified event attached to a
// canonical company. Core fields are immutable after creation except the
// correlation group id and the metadata cache.
type Signal struct {
	ID                 uuid.UUID      `json:"id"`
	RawEventID         *uuid.UUID     `json:"raw_event_id,omitempty"`
	CompanyID          uuid.UUID      `json:"company_id"`
	SignalType         string         `json:"signal_type"`
	SignalCategory     string         `json:"signal_category"`
	Title              string         `json:"title"`
	Summary            string         `json:"summary,omitempty"`
	ConfidenceScore    int            `json:"confidence_score"`
	SeverityScore      int            `json:"severity_score"`
	SourceName         string         `json:"source_name"`
	SourceURL          string         `json:"source_url,omitempty"`
	SourcePublishedAt  *time.Time     `json:"source_published_at,omitempty"`
	LocationCity       string         `json:"location_city,omitempty"`
	LocationState      string         `json:"location_state,omitempty"`
	AffectedEmployees  *int           `json:"affected_employees,omitempty"`
	DeviceEstimate     *int           `json:"device_estimate,omitempty"`
	CorrelationGroupID *uuid.UUID     `json:"correlation_group_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}
