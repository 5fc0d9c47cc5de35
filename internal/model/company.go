package model

import (
	"time"

	"github.com/google/uuid"
)

// RiskTrend is the direction of a company's recent signal activity.
type RiskTrend string

const (
	TrendRising    RiskTrend = "rising"
	TrendStable    RiskTrend = "stable"
	TrendDeclining RiskTrend = "declining"
)

// EnrichmentStatus tracks firmographic enrichment progress.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentPartial  EnrichmentStatus = "partial"
	EnrichmentNotFound EnrichmentStatus = "not_found"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// Company is the canonical identity a signal attaches to. Created by the
// entity resolver on first sighting; risk fields are recomputed by the risk
// aggregator, firmographics by the enricher. Never deleted while signals
// reference it.
type Company struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	NormalizedName     string           `json:"normalized_name"`
	Ticker             string           `json:"ticker,omitempty"`
	CIK                string           `json:"cik,omitempty"`
	Domain             string           `json:"domain,omitempty"`
	Industry           string           `json:"industry,omitempty"`
	Sector             string           `json:"sector,omitempty"`
	SICCode            string           `json:"sic_code,omitempty"`
	EmployeeCount      *int             `json:"employee_count,omitempty"`
	HeadquartersCity   string           `json:"headquarters_city,omitempty"`
	HeadquartersState  string           `json:"headquarters_state,omitempty"`
	CompositeRiskScore int              `json:"composite_risk_score"`
	SignalCount        int              `json:"signal_count"`
	LastSignalAt       *time.Time       `json:"last_signal_at,omitempty"`
	RiskTrend          RiskTrend        `json:"risk_trend"`
	EnrichmentStatus   EnrichmentStatus `json:"enrichment_status"`
	EnrichedAt         *time.Time       `json:"enriched_at,omitempty"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
