package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
)

// CompanyFilter specifies criteria for listing companies.
type CompanyFilter struct {
	State        string `json:"state,omitempty"`
	Industry     string `json:"industry,omitempty"`
	MinRiskScore int    `json:"min_risk_score,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// EnrichmentPatch carries firmographic fields written back by the
// enricher. Nil pointers leave the column untouched.
type EnrichmentPatch struct {
	Ticker        *string
	CIK           *string
	SICCode       *string
	Industry      *string
	Sector        *string
	EmployeeCount *int
	Status        model.EnrichmentStatus
}

// Store defines the persistence interface for the signal pipeline.
type Store interface {
	// Raw events
	InsertRawEvent(ctx context.Context, e *model.RawEvent) (bool, error)
	ListRawEventsByStatus(ctx context.Context, status model.ProcessingStatus, limit int) ([]model.RawEvent, error)
	UpdateRawEventStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus, discardReason string) error

	// Companies
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
	UpdateCompanyRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) error
	UpdateCompanyEnrichment(ctx context.Context, id uuid.UUID, patch EnrichmentPatch) error
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)
	ListCompaniesPendingEnrichment(ctx context.Context, limit int) ([]model.Company, error)

	// Signals
	CreateSignal(ctx context.Context, s *model.Signal) error
	SignalExistsInWindow(ctx context.Context, companyID uuid.UUID, signalType string, around time.Time, window time.Duration) (bool, error)
	ListCompanySignalsSince(ctx context.Context, companyID uuid.UUID, cutoff time.Time, excludeID uuid.UUID) ([]model.Signal, error)
	ListCompanySignals(ctx context.Context, companyID uuid.UUID) ([]model.Signal, error)
	SetCorrelationGroup(ctx context.Context, signalID, groupID uuid.UUID) error

	// Source health
	RecordSourceRun(ctx context.Context, sourceType string, run model.SourceRun) error
	ListSourceHealth(ctx context.Context) ([]model.SourceHealth, error)

	// Justification cache
	GetJustification(ctx context.Context, companyID uuid.UUID) (*model.Justification, error)
	SetJustification(ctx context.Context, j model.Justification) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
