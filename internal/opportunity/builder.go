// Package opportunity assembles ranked sales opportunities from companies
// and their scored signals. Everything here is a read path: aggregates are
// computed on demand from persisted signals, never stored.
package opportunity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/disposight/internal/dealrank"
	"github.com/sells-group/disposight/internal/gaps"
	"github.com/sells-group/disposight/internal/justify"
	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/store"
	"github.com/sells-group/disposight/internal/timing"
)

// DefaultPricePerDevice is the assumed recovery value per device when no
// override is configured.
const DefaultPricePerDevice = 45.0

// defaultMaxConcurrent bounds the per-company aggregation fan-out.
const defaultMaxConcurrent = 8

// Query filters and orders an opportunity listing.
type Query struct {
	SignalType   string `json:"signal_type,omitempty"`
	State        string `json:"state,omitempty"`
	Industry     string `json:"industry,omitempty"`
	MinDevices   int    `json:"min_devices,omitempty"`
	MinDealScore int    `json:"min_deal_score,omitempty"`
	SortBy       string `json:"sort_by,omitempty"` // deal_score | revenue | devices | recency
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

// Opportunity is one ranked company with its aggregate signal evidence.
type Opportunity struct {
	CompanyID           uuid.UUID       `json:"company_id"`
	CompanyName         string          `json:"company_name"`
	Ticker              string          `json:"ticker,omitempty"`
	Industry            string          `json:"industry,omitempty"`
	HeadquartersState   string          `json:"headquarters_state,omitempty"`
	EmployeeCount       *int            `json:"employee_count,omitempty"`
	CompositeRiskScore  int             `json:"composite_risk_score"`
	RiskTrend           model.RiskTrend `json:"risk_trend"`
	DealScore           int             `json:"deal_score"`
	ScoreBand           string          `json:"score_band"`
	ScoreBandLabel      string          `json:"score_band_label"`
	TopFactors          []string        `json:"top_factors"`
	Factors             []dealrank.Factor `json:"factors,omitempty"`
	PenaltyApplied      bool            `json:"penalty_applied"`
	SignalCount         int             `json:"signal_count"`
	TotalDeviceEstimate int             `json:"total_device_estimate"`
	RevenueEstimate     float64         `json:"revenue_estimate"`
	LatestSignalAt      time.Time       `json:"latest_signal_at"`
	DispositionWindow   string          `json:"disposition_window"`
	SignalTypes         []string        `json:"signal_types"`
	SourceNames         []string        `json:"source_names"`
	SourceDiversity     int             `json:"source_diversity"`
	AvgConfidence       float64         `json:"avg_confidence"`
	AvgSeverity         float64         `json:"avg_severity"`
	Justification       string          `json:"justification"`
	PredictedPhase      timing.Phase    `json:"predicted_phase"`
	PredictedPhaseLabel string          `json:"predicted_phase_label"`
	PhaseVerb           string          `json:"phase_verb"`
}

// ListResult is a scored, sorted, paginated opportunity listing with
// whole-pipeline rollups computed before pagination.
type ListResult struct {
	Opportunities      []Opportunity `json:"opportunities"`
	Total              int           `json:"total"`
	TotalPipelineValue float64       `json:"total_pipeline_value"`
	TotalDevices       int           `json:"total_devices"`
}

// Detail pairs one opportunity with its underlying signals.
type Detail struct {
	Opportunity Opportunity    `json:"opportunity"`
	Signals     []model.Signal `json:"signals"`
}

// SignalSource is the read surface the builder needs.
type SignalSource interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	ListCompanies(ctx context.Context, filter store.CompanyFilter) ([]model.Company, error)
	ListCompanySignals(ctx context.Context, companyID uuid.UUID) ([]model.Signal, error)
}

// Builder computes opportunity aggregates.
type Builder struct {
	source         SignalSource
	pricePerDevice float64
	maxConcurrent  int
}

// NewBuilder creates a builder with the given per-device recovery value.
// Zero values fall back to defaults.
func NewBuilder(source SignalSource, pricePerDevice float64, maxConcurrent int) *Builder {
	if pricePerDevice <= 0 {
		pricePerDevice = DefaultPricePerDevice
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Builder{source: source, pricePerDevice: pricePerDevice, maxConcurrent: maxConcurrent}
}

// List builds the ranked opportunity listing for the query. Aggregation
// fans out across companies with bounded concurrency; scoring itself is
// pure. Rollup totals cover everything that passed the filters, not just
// the returned page.
func (b *Builder) List(ctx context.Context, q Query, now time.Time) (*ListResult, error) {
	companies, err := b.source.ListCompanies(ctx, store.CompanyFilter{
		State:    q.State,
		Industry: q.Industry,
	})
	if err != nil {
		return nil, eris.Wrap(err, "opportunity: list companies")
	}

	var mu sync.Mutex
	results := make([]Opportunity, 0, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrent)
	for _, company := range companies {
		g.Go(func() error {
			opp, err := b.buildOne(gctx, company, q.SignalType, now)
			if err != nil {
				return err
			}
			if opp == nil {
				return nil
			}
			mu.Lock()
			results = append(results, *opp)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, opp := range results {
		if q.MinDevices > 0 && opp.TotalDeviceEstimate < q.MinDevices {
			continue
		}
		if q.MinDealScore > 0 && opp.DealScore < q.MinDealScore {
			continue
		}
		filtered = append(filtered, opp)
	}

	sortOpportunities(filtered, q.SortBy)

	result := &ListResult{Total: len(filtered)}
	for _, opp := range filtered {
		result.TotalPipelineValue += opp.RevenueEstimate
		result.TotalDevices += opp.TotalDeviceEstimate
	}
	result.Opportunities = paginate(filtered, q.Offset, q.Limit)
	return result, nil
}

// Get builds the detail view for one company. Returns nil when the company
// does not exist or has no scoreable signals.
func (b *Builder) Get(ctx context.Context, companyID uuid.UUID, now time.Time) (*Detail, error) {
	company, err := b.source.GetCompany(ctx, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "opportunity: get company")
	}
	if company == nil {
		return nil, nil
	}

	opp, err := b.buildOne(ctx, *company, "", now)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, nil
	}

	signals, err := b.source.ListCompanySignals(ctx, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "opportunity: list signals")
	}
	return &Detail{Opportunity: *opp, Signals: signals}, nil
}

// GapCandidates converts a listing into gap-detection candidates.
func GapCandidates(opportunities []Opportunity) []gaps.Candidate {
	candidates := make([]gaps.Candidate, 0, len(opportunities))
	for _, opp := range opportunities {
		candidates = append(candidates, gaps.Candidate{
			CompanyID:         opp.CompanyID,
			HeadquartersState: opp.HeadquartersState,
			Industry:          opp.Industry,
			SignalTypes:       opp.SignalTypes,
			DealScore:         opp.DealScore,
			LatestSignalAt:    opp.LatestSignalAt,
		})
	}
	return candidates
}

// buildOne aggregates one company's signals into a scored opportunity.
// Only signals carrying a device estimate count as evidence; a company
// with none is not an opportunity and returns nil.
func (b *Builder) buildOne(ctx context.Context, company model.Company, signalType string, now time.Time) (*Opportunity, error) {
	signals, err := b.source.ListCompanySignals(ctx, company.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "opportunity: signals for %s", company.ID)
	}

	agg := aggregate(signals, signalType)
	if agg.count == 0 {
		return nil, nil
	}

	daysSince := daysBetween(agg.latest, now)
	dealResult := dealrank.Compute(dealrank.Input{
		AvgSeverity:        agg.avgSeverity,
		AvgConfidence:      agg.avgConfidence,
		CompositeRiskScore: company.CompositeRiskScore,
		TotalDevices:       agg.totalDevices,
		SourceDiversity:    agg.sourceDiversity,
		SignalTypes:        agg.signalTypes,
		DaysSinceLatest:    daysSince,
		SourceNames:        agg.sourceNames,
		RiskTrend:          company.RiskTrend,
		SignalCount:        agg.count,
	})

	revenue := float64(agg.totalDevices) * b.pricePerDevice
	disposition := timing.GetDispositionWindow(agg.signalTypes)

	justification := justify.Compact(justify.CompactInput{
		CompanyName:       company.Name,
		SignalTypes:       agg.signalTypes,
		SourceNames:       agg.sourceNames,
		TotalDevices:      agg.totalDevices,
		RevenueEstimate:   revenue,
		DispositionWindow: disposition,
		DealScore:         dealResult.Score,
		ScoreBand:         dealResult.Band,
		RiskTrend:         company.RiskTrend,
		SourceDiversity:   agg.sourceDiversity,
		DaysSinceLatest:   daysSince,
		PenaltyApplied:    dealResult.PenaltyApplied,
	})

	prediction := timing.PredictPhase(timing.Input{
		SignalTypes:     agg.signalTypes,
		DaysSinceLatest: daysSince,
		SignalVelocity:  agg.velocityPerMonth(now),
		EmployeeCount:   company.EmployeeCount,
		RiskTrend:       company.RiskTrend,
		SignalCount:     agg.count,
	})

	return &Opportunity{
		CompanyID:           company.ID,
		CompanyName:         company.Name,
		Ticker:              company.Ticker,
		Industry:            company.Industry,
		HeadquartersState:   company.HeadquartersState,
		EmployeeCount:       company.EmployeeCount,
		CompositeRiskScore:  company.CompositeRiskScore,
		RiskTrend:           company.RiskTrend,
		DealScore:           dealResult.Score,
		ScoreBand:           dealResult.Band,
		ScoreBandLabel:      dealResult.BandLabel,
		TopFactors:          dealResult.TopFactors,
		Factors:             dealResult.Factors,
		PenaltyApplied:      dealResult.PenaltyApplied,
		SignalCount:         agg.count,
		TotalDeviceEstimate: agg.totalDevices,
		RevenueEstimate:     revenue,
		LatestSignalAt:      agg.latest,
		DispositionWindow:   disposition,
		SignalTypes:         agg.signalTypes,
		SourceNames:         agg.sourceNames,
		SourceDiversity:     agg.sourceDiversity,
		AvgConfidence:       agg.avgConfidence,
		AvgSeverity:         agg.avgSeverity,
		Justification:       justification,
		PredictedPhase:      prediction.Phase,
		PredictedPhaseLabel: prediction.PhaseLabel,
		PhaseVerb:           prediction.Verb,
	}, nil
}

// aggregateStats folds signal rows into the per-company aggregate.
type aggregateStats struct {
	count           int
	totalDevices    int
	avgConfidence   float64
	avgSeverity     float64
	sourceDiversity int
	signalTypes     []string
	sourceNames     []string
	latest          time.Time
	earliest        time.Time
}

func aggregate(signals []model.Signal, signalType string) aggregateStats {
	var agg aggregateStats
	var confSum, sevSum int
	typeSet := make(map[string]bool)
	sourceSet := make(map[string]bool)

	for _, s := range signals {
		if s.DeviceEstimate == nil {
			continue
		}
		if signalType != "" && s.SignalType != signalType {
			continue
		}

		agg.count++
		agg.totalDevices += *s.DeviceEstimate
		confSum += s.ConfidenceScore
		sevSum += s.SeverityScore

		if !typeSet[s.SignalType] {
			typeSet[s.SignalType] = true
			agg.signalTypes = append(agg.signalTypes, s.SignalType)
		}
		if !sourceSet[s.SourceName] {
			sourceSet[s.SourceName] = true
			agg.sourceNames = append(agg.sourceNames, s.SourceName)
		}
		if agg.latest.IsZero() || s.CreatedAt.After(agg.latest) {
			agg.latest = s.CreatedAt
		}
		if agg.earliest.IsZero() || s.CreatedAt.Before(agg.earliest) {
			agg.earliest = s.CreatedAt
		}
	}

	if agg.count > 0 {
		agg.avgConfidence = float64(confSum) / float64(agg.count)
		agg.avgSeverity = float64(sevSum) / float64(agg.count)
		agg.sourceDiversity = len(agg.sourceNames)
		sort.Strings(agg.signalTypes)
		sort.Strings(agg.sourceNames)
	}
	return agg
}

// velocityPerMonth approximates signals per month over the observed span.
func (a aggregateStats) velocityPerMonth(now time.Time) float64 {
	span := daysBetween(a.earliest, now)
	if span <= 0 {
		return 0
	}
	return float64(a.count) / float64(span) * 30
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() {
		return 999
	}
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func sortOpportunities(opps []Opportunity, sortBy string) {
	var before func(a, b Opportunity) bool
	switch strings.ToLower(sortBy) {
	case "revenue":
		before = func(a, b Opportunity) bool { return a.RevenueEstimate > b.RevenueEstimate }
	case "devices":
		before = func(a, b Opportunity) bool { return a.TotalDeviceEstimate > b.TotalDeviceEstimate }
	case "recency":
		before = func(a, b Opportunity) bool { return a.LatestSignalAt.After(b.LatestSignalAt) }
	default:
		before = func(a, b Opportunity) bool { return a.DealScore > b.DealScore }
	}
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if before(a, b) {
			return true
		}
		if before(b, a) {
			return false
		}
		// Name tiebreak keeps pagination deterministic.
		return a.CompanyName < b.CompanyName
	})
}

func paginate(opps []Opportunity, offset, limit int) []Opportunity {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(opps) {
		return []Opportunity{}
	}
	opps = opps[offset:]
	if limit > 0 && limit < len(opps) {
		opps = opps[:limit]
	}
	return opps
}
