// Package entity maps free-text organization names from raw events to
// canonical Company records.
package entity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
)

// ErrRejectedName marks a company name too meaningless to resolve. The
// caller discards the raw event instead of creating a junk Company.
var ErrRejectedName = eris.New("entity: rejected company name")

// CompanyStore is the persistence surface the resolver needs.
type CompanyStore interface {
	GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) error
}

// Resolver deduplicates company identity by normalized name.
type Resolver struct {
	store CompanyStore
}

// NewResolver creates a company resolver.
func NewResolver(store CompanyStore) *Resolver {
	return &Resolver{store: store}
}

// ValidateName normalizes a name and rejects placeholder or too-short
// values with ErrRejectedName. Returns the normalized form on success.
func ValidateName(name string) (string, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return "", eris.Wrap(ErrRejectedName, "empty after normalization")
	}
	if rejectedNames[normalized] {
		return "", eris.Wrapf(ErrRejectedName, "placeholder name %q", normalized)
	}
	if len(normalized) < 3 && !shortNameAllowlist[normalized] {
		return "", eris.Wrapf(ErrRejectedName, "name too short %q", normalized)
	}
	return normalized, nil
}

// FindOrCreate looks up a Company by normalized name, creating one if
// absent. Resolving the same name twice never creates two Companies.
// Headquarters city/state seed the new record only when valid; an
// invalid state code is dropped, not stored.
func (r *Resolver) FindOrCreate(ctx context.Context, name, city, state string) (*model.Company, bool, error) {
	normalized, err := ValidateName(name)
	if err != nil {
		return nil, false, err
	}

	existing, err := r.store.GetCompanyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, false, eris.Wrap(err, "entity: lookup by normalized name")
	}
	if existing != nil {
		return existing, false, nil
	}

	company := &model.Company{
		ID:                uuid.New(),
		Name:              trimTo(name, 255),
		NormalizedName:    normalized,
		HeadquartersCity:  CleanValue(city),
		HeadquartersState: ValidateStateCode(CleanValue(state)),
		RiskTrend:         model.TrendStable,
		EnrichmentStatus:  model.EnrichmentPending,
	}
	if err := r.store.CreateCompany(ctx, company); err != nil {
		return nil, false, eris.Wrap(err, "entity: create company")
	}

	zap.L().Info("entity: created company",
		zap.String("company_id", company.ID.String()),
		zap.String("name", company.Name),
		zap.String("normalized", normalized),
	)
	return company, true, nil
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
