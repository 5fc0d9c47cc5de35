package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(n int) *int { return &n }

func testRawEvent(hash string) *model.RawEvent {
	return &model.RawEvent{
		SourceType:        model.SourceWARNAct,
		CompanyName:       "Acme Corp",
		EventType:         "layoff",
		Locations:         []string{"Fresno, CA"},
		EmployeesAffected: intPtr(250),
		SourceURL:         "https://example.com/warn/1",
		RawText:           "Acme Corp layoff notice for 250 employees",
		ContentHash:       hash,
	}
}

func createTestCompany(t *testing.T, s *SQLiteStore, name, normalized string) *model.Company {
	t.Helper()
	c := &model.Company{
		Name:              name,
		NormalizedName:    normalized,
		HeadquartersState: "CA",
	}
	require.NoError(t, s.CreateCompany(context.Background(), c))
	return c
}

func TestSQLiteRawEventLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testRawEvent("hash-1")
	inserted, err := s.InsertRawEvent(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, uuid.Nil, e.ID)

	// Same content hash is silently skipped.
	dup := testRawEvent("hash-1")
	inserted, err = s.InsertRawEvent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	pending, err := s.ListRawEventsByStatus(ctx, model.StatusRaw, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].ID)
	assert.Equal(t, []string{"Fresno, CA"}, pending[0].Locations)
	require.NotNil(t, pending[0].EmployeesAffected)
	assert.Equal(t, 250, *pending[0].EmployeesAffected)

	err = s.UpdateRawEventStatus(ctx, e.ID, model.StatusDiscarded, model.DiscardBelowDeviceThreshold)
	require.NoError(t, err)

	pending, err = s.ListRawEventsByStatus(ctx, model.StatusRaw, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	discarded, err := s.ListRawEventsByStatus(ctx, model.StatusDiscarded, 10)
	require.NoError(t, err)
	require.Len(t, discarded, 1)
	assert.Equal(t, model.DiscardBelowDeviceThreshold, discarded[0].DiscardReason)
}

func TestSQLiteUpdateRawEventStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRawEventStatus(context.Background(), uuid.New(), model.StatusProcessed, "")
	assert.Error(t, err)
}

func TestSQLiteCompanyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := createTestCompany(t, s, "Acme Corp", "acme")
	assert.Equal(t, model.TrendStable, c.RiskTrend)

	got, err := s.GetCompanyByNormalizedName(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "CA", got.HeadquartersState)

	missing, err := s.GetCompanyByNormalizedName(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Acme Corp", byID.Name)
}

func TestSQLiteUpdateCompanyRisk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := createTestCompany(t, s, "Acme Corp", "acme")

	last := time.Now().UTC().Truncate(time.Second)
	err := s.UpdateCompanyRisk(ctx, c.ID, risk.Assessment{
		CompositeScore: 72,
		Trend:          model.TrendRising,
		SignalCount:    3,
		LastSignalAt:   &last,
	})
	require.NoError(t, err)

	got, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 72, got.CompositeRiskScore)
	assert.Equal(t, model.TrendRising, got.RiskTrend)
	assert.Equal(t, 3, got.SignalCount)
	require.NotNil(t, got.LastSignalAt)
}

func TestSQLiteUpdateCompanyEnrichment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := createTestCompany(t, s, "Acme Corp", "acme")

	ticker := "ACME"
	industry := "Manufacturing"
	err := s.UpdateCompanyEnrichment(ctx, c.ID, EnrichmentPatch{
		Ticker:        &ticker,
		Industry:      &industry,
		EmployeeCount: intPtr(1200),
		Status:        model.EnrichmentEnriched,
	})
	require.NoError(t, err)

	got, err := s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Ticker)
	assert.Equal(t, "Manufacturing", got.Industry)
	require.NotNil(t, got.EmployeeCount)
	assert.Equal(t, 1200, *got.EmployeeCount)
	assert.Equal(t, model.EnrichmentEnriched, got.EnrichmentStatus)
	assert.NotNil(t, got.EnrichedAt)

	// Nil fields leave existing values untouched.
	err = s.UpdateCompanyEnrichment(ctx, c.ID, EnrichmentPatch{Status: model.EnrichmentEnriched})
	require.NoError(t, err)
	got, err = s.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Ticker)
}

func TestSQLiteSignalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := createTestCompany(t, s, "Acme Corp", "acme")

	published := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	sig := &model.Signal{
		CompanyID:         c.ID,
		SignalType:        model.TypeLayoff,
		SignalCategory:    model.CategoryWARN,
		Title:             "Acme Corp: layoff",
		Summary:           "250 employees affected",
		ConfidenceScore:   76,
		SeverityScore:     65,
		SourceName:        model.SourceWARNAct,
		SourcePublishedAt: &published,
		AffectedEmployees: intPtr(250),
		DeviceEstimate:    intPtr(375),
	}
	require.NoError(t, s.CreateSignal(ctx, sig))

	signals, err := s.ListCompanySignals(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, model.TypeLayoff, signals[0].SignalType)
	require.NotNil(t, signals[0].DeviceEstimate)
	assert.Equal(t, 375, *signals[0].DeviceEstimate)

	// Dedup window checks.
	exists, err := s.SignalExistsInWindow(ctx, c.ID, model.TypeLayoff, published, 48*time.Hour)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.SignalExistsInWindow(ctx, c.ID, model.TypeBankruptcyCh7, published, 48*time.Hour)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = s.SignalExistsInWindow(ctx, c.ID, model.TypeLayoff, published.Add(10*24*time.Hour), 48*time.Hour)
	require.NoError(t, err)
	assert.False(t, exists)

	// Correlation group stamping.
	group := uuid.New()
	require.NoError(t, s.SetCorrelationGroup(ctx, sig.ID, group))
	signals, err = s.ListCompanySignals(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, signals[0].CorrelationGroupID)
	assert.Equal(t, group, *signals[0].CorrelationGroupID)
}

func TestSQLiteListCompanySignalsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := createTestCompany(t, s, "Acme Corp", "acme")

	old := &model.Signal{
		CompanyID: c.ID, SignalType: model.TypeLayoff,
		SignalCategory: model.CategoryWARN, Title: "old",
		SourceName: model.SourceWARNAct,
		CreatedAt:  time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
	recent := &model.Signal{
		CompanyID: c.ID, SignalType: model.TypeBankruptcyCh11,
		SignalCategory: model.CategoryBankruptcy, Title: "recent",
		SourceName: model.SourceCourtListener,
	}
	require.NoError(t, s.CreateSignal(ctx, old))
	require.NoError(t, s.CreateSignal(ctx, recent))

	cutoff := time.Now().UTC().Add(-14 * 24 * time.Hour)
	got, err := s.ListCompanySignalsSince(ctx, c.ID, cutoff, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Title)

	// Exclusion filter drops the named signal.
	got, err = s.ListCompanySignalsSince(ctx, c.ID, cutoff, recent.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteListCompanies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := createTestCompany(t, s, "Acme Corp", "acme")
	b := &model.Company{Name: "Widget Works", NormalizedName: "widget works", HeadquartersState: "TX", Industry: "Retail Trade"}
	require.NoError(t, s.CreateCompany(ctx, b))

	for _, c := range []*model.Company{a, b} {
		require.NoError(t, s.UpdateCompanyRisk(ctx, c.ID, risk.Assessment{
			CompositeScore: 50, Trend: model.TrendStable, SignalCount: 1,
		}))
	}

	all, err := s.ListCompanies(ctx, CompanyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tx, err := s.ListCompanies(ctx, CompanyFilter{State: "TX"})
	require.NoError(t, err)
	require.Len(t, tx, 1)
	assert.Equal(t, "Widget Works", tx[0].Name)

	retail, err := s.ListCompanies(ctx, CompanyFilter{Industry: "Retail"})
	require.NoError(t, err)
	require.Len(t, retail, 1)

	none, err := s.ListCompanies(ctx, CompanyFilter{MinRiskScore: 80})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteListCompanies_ExcludesZeroSignal(t *testing.T) {
	s := newTestStore(t)
	createTestCompany(t, s, "No Signals Inc", "no signals")

	all, err := s.ListCompanies(context.Background(), CompanyFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteRecordSourceRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First failure.
	err := s.RecordSourceRun(ctx, model.SourceWARNAct, model.SourceRun{
		RanAt: time.Now().UTC(), Status: model.RunStatusFailed, Err: "timeout",
	})
	require.NoError(t, err)

	// Second failure increments.
	err = s.RecordSourceRun(ctx, model.SourceWARNAct, model.SourceRun{
		RanAt: time.Now().UTC(), Status: model.RunStatusFailed, Err: "timeout again",
	})
	require.NoError(t, err)

	health, err := s.ListSourceHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, 2, health[0].ErrorCount)
	assert.Equal(t, model.RunStatusFailed, health[0].LastRunStatus)
	assert.Equal(t, "timeout again", health[0].LastError)

	// Success resets the consecutive error count.
	err = s.RecordSourceRun(ctx, model.SourceWARNAct, model.SourceRun{
		RanAt: time.Now().UTC(), Status: model.RunStatusSuccess, SignalCount: 12, DurationMS: 840,
	})
	require.NoError(t, err)

	health, err = s.ListSourceHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, 0, health[0].ErrorCount)
	assert.Equal(t, model.RunStatusSuccess, health[0].LastRunStatus)
	assert.Equal(t, 12, health[0].LastRunSignals)
}

func TestSQLiteJustificationCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := createTestCompany(t, s, "Acme Corp", "acme")

	missing, err := s.GetJustification(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	j := model.Justification{
		CompanyID:         c.ID,
		Text:              "Strong multi-source distress signals.",
		ScoreAtGeneration: 82,
		GeneratedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SetJustification(ctx, j))

	got, err := s.GetJustification(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, j.Text, got.Text)
	assert.Equal(t, 82, got.ScoreAtGeneration)

	// Overwrite on regeneration.
	j.Text = "Updated narrative."
	j.ScoreAtGeneration = 90
	require.NoError(t, s.SetJustification(ctx, j))
	got, err = s.GetJustification(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated narrative.", got.Text)
	assert.Equal(t, 90, got.ScoreAtGeneration)
}
