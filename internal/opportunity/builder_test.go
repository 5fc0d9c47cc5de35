package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/store"
)

type memorySource struct {
	companies []model.Company
	signals   map[uuid.UUID][]model.Signal
}

func (s *memorySource) GetCompany(_ context.Context, id uuid.UUID) (*model.Company, error) {
	for _, c := range s.companies {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memorySource) ListCompanies(_ context.Context, filter store.CompanyFilter) ([]model.Company, error) {
	var out []model.Company
	for _, c := range s.companies {
		if filter.State != "" && c.HeadquartersState != filter.State {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *memorySource) ListCompanySignals(_ context.Context, companyID uuid.UUID) ([]model.Signal, error) {
	return s.signals[companyID], nil
}

func intPtr(n int) *int { return &n }

func testSignal(companyID uuid.UUID, signalType, sourceName string, devices int, createdAt time.Time) model.Signal {
	return model.Signal{
		ID:              uuid.New(),
		CompanyID:       companyID,
		SignalType:      signalType,
		SignalCategory:  model.CategoryNews,
		ConfidenceScore: 75,
		SeverityScore:   70,
		SourceName:      sourceName,
		DeviceEstimate:  intPtr(devices),
		CreatedAt:       createdAt,
	}
}

func newTestSource(now time.Time) (*memorySource, model.Company, model.Company) {
	strong := model.Company{
		ID:                 uuid.New(),
		Name:               "Fading Star Inc",
		HeadquartersState:  "OH",
		Industry:           "Manufacturing",
		CompositeRiskScore: 80,
		RiskTrend:          model.TrendRising,
	}
	weak := model.Company{
		ID:                 uuid.New(),
		Name:               "Steady Goods LLC",
		HeadquartersState:  "TX",
		Industry:           "Retail",
		CompositeRiskScore: 20,
		RiskTrend:          model.TrendStable,
	}
	src := &memorySource{
		companies: []model.Company{strong, weak},
		signals: map[uuid.UUID][]model.Signal{
			strong.ID: {
				testSignal(strong.ID, model.TypeBankruptcyCh7, model.SourceCourtListener, 1500, now.Add(-24*time.Hour)),
				testSignal(strong.ID, model.TypeLayoff, model.SourceWARNAct, 600, now.Add(-72*time.Hour)),
			},
			weak.ID: {
				testSignal(weak.ID, model.TypeMerger, model.SourceGDELT, 120, now.Add(-40*24*time.Hour)),
			},
		},
	}
	return src, strong, weak
}

func TestList_RanksAndAggregates(t *testing.T) {
	now := time.Now().UTC()
	src, strong, weak := newTestSource(now)

	b := NewBuilder(src, 0, 0)
	result, err := b.List(context.Background(), Query{}, now)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 2)
	assert.Equal(t, 2, result.Total)

	top := result.Opportunities[0]
	assert.Equal(t, strong.ID, top.CompanyID)
	assert.Equal(t, 2, top.SignalCount)
	assert.Equal(t, 2100, top.TotalDeviceEstimate)
	assert.InDelta(t, 2100*DefaultPricePerDevice, top.RevenueEstimate, 0.01)
	assert.Equal(t, 2, top.SourceDiversity)
	assert.ElementsMatch(t, []string{model.TypeBankruptcyCh7, model.TypeLayoff}, top.SignalTypes)
	assert.Greater(t, top.DealScore, result.Opportunities[1].DealScore)
	assert.NotEmpty(t, top.ScoreBand)
	assert.NotEmpty(t, top.DispositionWindow)
	assert.NotEmpty(t, top.Justification)
	assert.Contains(t, top.Justification, "Fading Star Inc")
	assert.NotEmpty(t, top.PredictedPhase)

	assert.Equal(t, weak.ID, result.Opportunities[1].CompanyID)
	assert.InDelta(t, result.Opportunities[0].RevenueEstimate+result.Opportunities[1].RevenueEstimate,
		result.TotalPipelineValue, 0.01)
	assert.Equal(t, 2100+120, result.TotalDevices)
}

func TestList_StateFilter(t *testing.T) {
	now := time.Now().UTC()
	src, strong, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{State: "OH"}, now)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, strong.ID, result.Opportunities[0].CompanyID)
}

func TestList_SignalTypeFilter(t *testing.T) {
	now := time.Now().UTC()
	src, strong, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{SignalType: model.TypeLayoff}, now)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)

	opp := result.Opportunities[0]
	assert.Equal(t, strong.ID, opp.CompanyID)
	assert.Equal(t, 1, opp.SignalCount)
	assert.Equal(t, 600, opp.TotalDeviceEstimate)
}

func TestList_MinDevicesFilter(t *testing.T) {
	now := time.Now().UTC()
	src, strong, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{MinDevices: 500}, now)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, strong.ID, result.Opportunities[0].CompanyID)
	assert.Equal(t, 1, result.Total)
}

func TestList_MinDealScoreFilter(t *testing.T) {
	now := time.Now().UTC()
	src, _, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	all, err := b.List(context.Background(), Query{}, now)
	require.NoError(t, err)
	require.Len(t, all.Opportunities, 2)
	floor := all.Opportunities[1].DealScore + 1

	filtered, err := b.List(context.Background(), Query{MinDealScore: floor}, now)
	require.NoError(t, err)
	for _, opp := range filtered.Opportunities {
		assert.GreaterOrEqual(t, opp.DealScore, floor)
	}
	assert.Less(t, filtered.Total, all.Total)
}

func TestList_SortAndPaginate(t *testing.T) {
	now := time.Now().UTC()
	src, _, weak := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{SortBy: "recency", Limit: 1, Offset: 1}, now)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)
	// Oldest signal activity lands on the second page.
	assert.Equal(t, weak.ID, result.Opportunities[0].CompanyID)
	// Rollups still cover the full filtered set.
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2220, result.TotalDevices)
}

func TestList_SkipsCompaniesWithoutDeviceEstimates(t *testing.T) {
	now := time.Now().UTC()
	quiet := model.Company{ID: uuid.New(), Name: "Quiet Corp", RiskTrend: model.TrendStable}
	noEstimate := testSignal(quiet.ID, model.TypeMerger, model.SourceGDELT, 0, now)
	noEstimate.DeviceEstimate = nil

	src := &memorySource{
		companies: []model.Company{quiet},
		signals:   map[uuid.UUID][]model.Signal{quiet.ID: {noEstimate}},
	}

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{}, now)
	require.NoError(t, err)
	assert.Empty(t, result.Opportunities)
	assert.Equal(t, 0, result.Total)
}

func TestGet_Detail(t *testing.T) {
	now := time.Now().UTC()
	src, strong, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	detail, err := b.Get(context.Background(), strong.ID, now)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, strong.ID, detail.Opportunity.CompanyID)
	assert.Len(t, detail.Signals, 2)
}

func TestGet_UnknownCompany(t *testing.T) {
	now := time.Now().UTC()
	src, _, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	detail, err := b.Get(context.Background(), uuid.New(), now)
	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestGapCandidates(t *testing.T) {
	now := time.Now().UTC()
	src, strong, _ := newTestSource(now)

	b := NewBuilder(src, 45, 4)
	result, err := b.List(context.Background(), Query{}, now)
	require.NoError(t, err)

	candidates := GapCandidates(result.Opportunities)
	require.Len(t, candidates, 2)
	assert.Equal(t, strong.ID, candidates[0].CompanyID)
	assert.Equal(t, "OH", candidates[0].HeadquartersState)
	assert.Equal(t, result.Opportunities[0].DealScore, candidates[0].DealScore)
}
