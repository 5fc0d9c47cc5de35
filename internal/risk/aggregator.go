// Package risk recomputes a company's time-decayed composite risk score
// and trend from its trailing signal history.
package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
)

const (
	// WindowDays is the scoring lookback window.
	WindowDays = 90
	// trendSplitDays separates the recent bucket used for trend detection.
	trendSplitDays = 14
	// decayFloor keeps old in-window signals contributing something.
	decayFloor = 0.3
)

// categoryWeights favor regulatory and court categories over news.
var categoryWeights = map[string]float64{
	model.CategoryWARN:       1.0,
	model.CategoryBankruptcy: 1.2,
	model.CategoryFiling:     0.8,
	model.CategoryNews:       0.6,
}

const defaultCategoryWeight = 0.5

// Assessment is the recomputed risk state for one company.
type Assessment struct {
	CompositeScore int
	Trend          model.RiskTrend
	SignalCount    int
	LastSignalAt   *time.Time
}

// Compute derives an Assessment from the company's in-window signals.
// Pure: the same signals and now always yield the same assessment. With
// zero signals, risk resets to 0 and trend to stable.
func Compute(signals []model.Signal, now time.Time) Assessment {
	if len(signals) == 0 {
		return Assessment{Trend: model.TrendStable}
	}

	var totalWeight, weightedScore float64
	categories := make(map[string]bool)
	var latest time.Time

	for _, s := range signals {
		ageDays := int(now.Sub(s.CreatedAt).Hours() / 24)
		if ageDays < 1 {
			ageDays = 1
		}
		decay := 1.0 - float64(ageDays)/WindowDays
		if decay < decayFloor {
			decay = decayFloor
		}

		catWeight, ok := categoryWeights[s.SignalCategory]
		if !ok {
			catWeight = defaultCategoryWeight
		}
		weight := decay * catWeight

		score := float64(s.ConfidenceScore+s.SeverityScore) / 2
		weightedScore += score * weight
		totalWeight += weight
		categories[s.SignalCategory] = true

		if s.CreatedAt.After(latest) {
			latest = s.CreatedAt
		}
	}

	base := 0.0
	if totalWeight > 0 {
		base = weightedScore / totalWeight
	}

	// Multi-source confirmation and burst activity raise the score.
	diversity := 1.0 + float64(len(categories)-1)*0.15
	velocity := 1.0 + float64(len(signals))*0.05
	if velocity > 1.5 {
		velocity = 1.5
	}

	composite := int(base * diversity * velocity)
	if composite > 100 {
		composite = 100
	}

	return Assessment{
		CompositeScore: composite,
		Trend:          computeTrend(signals, now),
		SignalCount:    len(signals),
		LastSignalAt:   &latest,
	}
}

// computeTrend compares the most recent 14 days against the rest of the
// window: rising when recent activity dominates, declining when recent
// activity stopped entirely while older signals exist.
func computeTrend(signals []model.Signal, now time.Time) model.RiskTrend {
	recentCutoff := now.AddDate(0, 0, -trendSplitDays)

	recent, older := 0, 0
	for _, s := range signals {
		if !s.CreatedAt.Before(recentCutoff) {
			recent++
		} else {
			older++
		}
	}

	switch {
	case recent > older:
		return model.TrendRising
	case recent == 0 && older > 0:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

// CompanyStore is the persistence surface the aggregator needs.
type CompanyStore interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	ListCompanySignalsSince(ctx context.Context, companyID uuid.UUID, cutoff time.Time, excludeID uuid.UUID) ([]model.Signal, error)
	UpdateCompanyRisk(ctx context.Context, id uuid.UUID, a Assessment) error
}

// Aggregator persists recomputed risk scores.
type Aggregator struct {
	store CompanyStore
}

// NewAggregator creates a risk aggregator.
func NewAggregator(store CompanyStore) *Aggregator {
	return &Aggregator{store: store}
}

// Update recomputes and persists the company's risk state from its
// trailing 90 days of signals. Returns the new composite score.
func (a *Aggregator) Update(ctx context.Context, companyID uuid.UUID, now time.Time) (int, error) {
	company, err := a.store.GetCompany(ctx, companyID)
	if err != nil {
		return 0, eris.Wrap(err, "risk: load company")
	}
	if company == nil {
		return 0, eris.Errorf("risk: company %s not found", companyID)
	}

	cutoff := now.AddDate(0, 0, -WindowDays)
	signals, err := a.store.ListCompanySignalsSince(ctx, companyID, cutoff, uuid.Nil)
	if err != nil {
		return 0, eris.Wrap(err, "risk: list signals")
	}

	assessment := Compute(signals, now)
	if err := a.store.UpdateCompanyRisk(ctx, companyID, assessment); err != nil {
		return 0, eris.Wrap(err, "risk: persist assessment")
	}

	zap.L().Info("risk: updated",
		zap.String("company", company.Name),
		zap.Int("score", assessment.CompositeScore),
		zap.String("trend", string(assessment.Trend)),
		zap.Int("signal_count", assessment.SignalCount),
	)
	return assessment.CompositeScore, nil
}
