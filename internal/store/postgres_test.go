package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

// anyArgs returns n pgxmock.AnyArg matchers, for expectations that do not
// care about the exact statement arguments.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_InsertRawEvent_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO raw_events`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertRawEvent(context.Background(), &model.RawEvent{
		SourceType:  model.SourceWARNAct,
		CompanyName: "Acme Corp",
		EventType:   "layoff",
		ContentHash: "dupe-hash",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertRawEvent_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO raw_events`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	e := &model.RawEvent{
		SourceType:  model.SourceGDELT,
		CompanyName: "Widget Works",
		EventType:   "bankruptcy_ch7",
		ContentHash: "new-hash",
	}
	inserted, err := s.InsertRawEvent(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, model.StatusRaw, e.ProcessingStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BulkInsertRawEvents(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE tmp_raw_events_upsert`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"tmp_raw_events_upsert"}, []string{
		"id", "source_type", "company_name", "event_type", "event_date", "locations",
		"employees_affected", "source_url", "raw_text", "content_hash",
		"processing_status", "discard_reason", "created_at",
	}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO raw_events .+ ON CONFLICT \(content_hash\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := s.BulkInsertRawEvents(context.Background(), []model.RawEvent{
		{SourceType: model.SourceWARNAct, CompanyName: "Acme Corp", EventType: "layoff", ContentHash: "h1"},
		{SourceType: model.SourceWARNAct, CompanyName: "Widget Works", EventType: "layoff", ContentHash: "h2"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompanyByNormalizedName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE normalized_name = \$1`).
		WithArgs("unknown co").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompanyByNormalizedName(context.Background(), "unknown co")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCompanyRisk_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	id := uuid.New()
	mock.ExpectExec(`UPDATE companies`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCompanyRisk(context.Background(), id, risk.Assessment{
		CompositeScore: 50, Trend: model.TrendStable,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SignalExistsInWindow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	companyID := uuid.New()
	around := time.Now().UTC()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(companyID, model.TypeLayoff, around.Add(-48*time.Hour), around.Add(48*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.SignalExistsInWindow(context.Background(), companyID, model.TypeLayoff, around, 48*time.Hour)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCorrelationGroup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	signalID, groupID := uuid.New(), uuid.New()
	mock.ExpectExec(`UPDATE signals SET correlation_group_id`).
		WithArgs(groupID, signalID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetCorrelationGroup(context.Background(), signalID, groupID)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordSourceRun_FailureIncrements(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(source_type\) DO UPDATE SET.+error_count = source_health\.error_count \+ 1`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordSourceRun(context.Background(), model.SourceGDELT, model.SourceRun{
		RanAt:  time.Now().UTC(),
		Status: model.RunStatusFailed,
		Err:    "http 503",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordSourceRun_SuccessResets(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(source_type\) DO UPDATE SET.+error_count = 0`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordSourceRun(context.Background(), model.SourceGDELT, model.SourceRun{
		RanAt:       time.Now().UTC(),
		Status:      model.RunStatusSuccess,
		SignalCount: 4,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJustification_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT company_id, text, score_at_generation, generated_at`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	j, err := s.GetJustification(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, mock.ExpectationsWereMet())
}
