package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/model"
)

type mockHealthStore struct {
	rows []model.SourceHealth
	err  error
}

func (m *mockHealthStore) ListSourceHealth(context.Context) ([]model.SourceHealth, error) {
	return m.rows, m.err
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	st := &mockHealthStore{rows: []model.SourceHealth{
		{
			SourceType:     model.SourceWARNAct,
			Enabled:        true,
			LastRunAt:      timePtr(now.Add(-2 * time.Hour)),
			LastRunStatus:  model.RunStatusSuccess,
			LastRunSignals: 12,
		},
		{
			SourceType:    model.SourceGDELT,
			Enabled:       true,
			LastRunAt:     timePtr(now.Add(-time.Hour)),
			LastRunStatus: model.RunStatusFailed,
			ErrorCount:    4,
			LastError:     "connection refused",
		},
		{
			SourceType:    model.SourceSECEdgar,
			Enabled:       true,
			LastRunAt:     timePtr(now.Add(-30 * time.Hour)),
			LastRunStatus: model.RunStatusSuccess,
		},
	}}

	c := NewCollector(st, 24*time.Hour)
	snap, err := c.Collect(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, snap.Sources, 3)

	assert.Equal(t, 1, snap.Healthy)
	assert.Equal(t, 1, snap.Failing)
	assert.Equal(t, 1, snap.Stale)

	warn := snap.Sources[0]
	assert.False(t, warn.Stale)
	assert.InDelta(t, 2.0, warn.HoursSinceRun, 0.01)

	gdelt := snap.Sources[1]
	assert.Equal(t, 4, gdelt.ConsecutiveErrs)
	assert.Equal(t, "connection refused", gdelt.LastError)
	assert.False(t, gdelt.Stale)

	edgar := snap.Sources[2]
	assert.True(t, edgar.Stale)
}

func TestCollector_NeverRanIsStale(t *testing.T) {
	st := &mockHealthStore{rows: []model.SourceHealth{
		{SourceType: model.SourceCourtListener, Enabled: true},
	}}

	c := NewCollector(st, 0) // default staleness window
	snap, err := c.Collect(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, snap.Sources, 1)
	assert.True(t, snap.Sources[0].Stale)
	assert.Equal(t, 1, snap.Stale)
}

func TestCollector_DisabledSourceNotStale(t *testing.T) {
	st := &mockHealthStore{rows: []model.SourceHealth{
		{SourceType: model.SourceGDELT, Enabled: false},
	}}

	c := NewCollector(st, 24*time.Hour)
	snap, err := c.Collect(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, snap.Sources[0].Stale)
	assert.Equal(t, 0, snap.Stale)
	assert.Equal(t, 1, snap.Healthy)
}

func TestCollector_StoreError(t *testing.T) {
	st := &mockHealthStore{err: assert.AnError}
	c := NewCollector(st, time.Hour)
	_, err := c.Collect(context.Background(), time.Now().UTC())
	require.Error(t, err)
}
