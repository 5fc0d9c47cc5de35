package justify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/dealrank"
	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/pkg/anthropic"
)

func TestCompact_LayoffWithEvidence(t *testing.T) {
	got := Compact(CompactInput{
		CompanyName:       "Acme Corp",
		SignalTypes:       []string{model.TypeLayoff},
		SourceNames:       []string{model.SourceWARNAct, model.SourceGDELT},
		TotalDevices:      1500,
		RevenueEstimate:   67500,
		DispositionWindow: "1-3 months",
		DealScore:         72,
		ScoreBand:         dealrank.BandHighPriority,
		RiskTrend:         model.TrendStable,
		SourceDiversity:   2,
		DaysSinceLatest:   10,
	})

	assert.Contains(t, got, "Acme Corp announced mass layoffs")
	assert.Contains(t, got, "affecting ~1,000 employees")
	assert.Contains(t, got, "confirmed by WARN Act filing and news coverage")
	assert.Contains(t, got, "An estimated 1,500 surplus devices (~$67,500 recovery value) expected within 1-3 months.")
	assert.Contains(t, got, "Corroborated by 2 independent sources.")
}

func TestCompact_MostUrgentTypeWins(t *testing.T) {
	got := Compact(CompactInput{
		CompanyName:     "Fading Star Inc",
		SignalTypes:     []string{model.TypeLayoff, model.TypeBankruptcyCh7},
		SourceNames:     []string{model.SourceCourtListener},
		TotalDevices:    900,
		RevenueEstimate: 40500,
		RiskTrend:       model.TrendStable,
		SourceDiversity: 1,
		DaysSinceLatest: 20,
	})

	assert.Contains(t, got, "filed for Chapter 7 liquidation")
	assert.NotContains(t, got, "affecting") // headcount prose is layoff-only
}

func TestCompact_KickerPriority(t *testing.T) {
	base := CompactInput{
		CompanyName:     "Acme Corp",
		SignalTypes:     []string{model.TypeLayoff},
		SourceNames:     []string{model.SourceWARNAct},
		DaysSinceLatest: 30,
	}

	t.Run("rising trend with corroboration wins", func(t *testing.T) {
		in := base
		in.RiskTrend = model.TrendRising
		in.SourceDiversity = 3
		assert.Contains(t, Compact(in), "Risk trend rising - 3 corroborating sources.")
	})

	t.Run("high diversity without rising trend", func(t *testing.T) {
		in := base
		in.RiskTrend = model.TrendStable
		in.SourceDiversity = 3
		assert.Contains(t, Compact(in), "High confidence - verified across 3 independent sources.")
	})

	t.Run("recent detection", func(t *testing.T) {
		in := base
		in.SourceDiversity = 1
		in.DaysSinceLatest = 1
		assert.Contains(t, Compact(in), "Detected 1 day ago - time-sensitive.")
	})

	t.Run("immediate pursuit band", func(t *testing.T) {
		in := base
		in.SourceDiversity = 1
		in.ScoreBand = dealrank.BandImmediatePursuit
		in.DealScore = 88
		assert.Contains(t, Compact(in), "Immediate pursuit recommended - scored 88/100.")
	})

	t.Run("penalty caution", func(t *testing.T) {
		in := base
		in.SourceDiversity = 1
		in.PenaltyApplied = true
		assert.Contains(t, Compact(in), "Single unverified source - proceed with caution.")
	})

	t.Run("no kicker", func(t *testing.T) {
		in := base
		in.SourceDiversity = 1
		got := Compact(in)
		assert.NotContains(t, got, "caution")
		assert.NotContains(t, got, "sources")
	})
}

func TestCompact_UnknownSourceLabel(t *testing.T) {
	got := Compact(CompactInput{
		CompanyName:     "Acme Corp",
		SignalTypes:     []string{model.TypeMerger},
		SourceNames:     []string{"press_release"},
		SourceDiversity: 1,
		DaysSinceLatest: 30,
	})
	assert.Contains(t, got, "confirmed by press release")
}

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

type memoryCacheStore struct {
	entries map[uuid.UUID]model.Justification
	writes  int
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{entries: make(map[uuid.UUID]model.Justification)}
}

func (s *memoryCacheStore) GetJustification(_ context.Context, companyID uuid.UUID) (*model.Justification, error) {
	j, ok := s.entries[companyID]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (s *memoryCacheStore) SetJustification(_ context.Context, j model.Justification) error {
	s.entries[j.CompanyID] = j
	s.writes++
	return nil
}

func fullInput(companyID uuid.UUID, score int) FullInput {
	return FullInput{
		CompanyID:       companyID,
		CompanyName:     "Acme Corp",
		SignalTypes:     []string{model.TypeLayoff},
		SourceNames:     []string{model.SourceWARNAct},
		TotalDevices:    1500,
		RevenueEstimate: 67500,
		Disposition:     "1-3 months",
		DealScore:       score,
		ScoreBandLabel:  "High Priority",
		RiskTrend:       model.TrendRising,
		AvgSeverity:     70,
		AvgConfidence:   80,
		SignalCount:     3,
	}
}

func TestFull_GeneratesAndCaches(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	companyID := uuid.New()

	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("Acme Corp is shedding hardware fast."), nil).Once()

	store := newMemoryCacheStore()
	engine := NewEngine(store, ai, "claude-haiku-4-5-20251001")

	text, generated, err := engine.Full(ctx, fullInput(companyID, 72), now)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "Acme Corp is shedding hardware fast.", text)
	assert.Equal(t, 1, store.writes)

	// Second call inside the TTL with stable score hits the cache.
	text, generated, err = engine.Full(ctx, fullInput(companyID, 74), now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, "Acme Corp is shedding hardware fast.", text)
	ai.AssertExpectations(t)
}

func TestFull_RegeneratesAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	companyID := uuid.New()

	store := newMemoryCacheStore()
	store.entries[companyID] = model.Justification{
		CompanyID:         companyID,
		Text:              "stale text",
		ScoreAtGeneration: 72,
		GeneratedAt:       now.Add(-25 * time.Hour),
	}

	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("fresh text"), nil).Once()

	engine := NewEngine(store, ai, "claude-haiku-4-5-20251001")
	text, generated, err := engine.Full(ctx, fullInput(companyID, 72), now)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "fresh text", text)
}

func TestFull_RegeneratesOnScoreDrift(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	companyID := uuid.New()

	store := newMemoryCacheStore()
	store.entries[companyID] = model.Justification{
		CompanyID:         companyID,
		Text:              "old score text",
		ScoreAtGeneration: 60,
		GeneratedAt:       now.Add(-time.Hour),
	}

	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("rescored text"), nil).Once()

	engine := NewEngine(store, ai, "claude-haiku-4-5-20251001")
	text, generated, err := engine.Full(ctx, fullInput(companyID, 70), now)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "rescored text", text)
}

func TestFull_EmptyResponseFails(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("   "), nil)

	engine := NewEngine(newMemoryCacheStore(), ai, "claude-haiku-4-5-20251001")
	_, _, err := engine.Full(ctx, fullInput(companyID, 72), time.Now().UTC())
	require.Error(t, err)
}
