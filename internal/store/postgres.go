package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/disposight/internal/db"
	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (bulk collector loads).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS raw_events (
	id                 UUID PRIMARY KEY,
	source_type        TEXT NOT NULL,
	company_name       TEXT NOT NULL,
	event_type         TEXT NOT NULL,
	event_date         TIMESTAMPTZ,
	locations          JSONB,
	employees_affected INTEGER,
	source_url         TEXT,
	raw_text           TEXT,
	content_hash       TEXT NOT NULL UNIQUE,
	processing_status  TEXT NOT NULL DEFAULT 'raw',
	discard_reason     TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id                   UUID PRIMARY KEY,
	name                 TEXT NOT NULL,
	normalized_name      TEXT NOT NULL UNIQUE,
	ticker               TEXT,
	cik                  TEXT,
	domain               TEXT,
	industry             TEXT,
	sector               TEXT,
	sic_code             TEXT,
	employee_count       INTEGER,
	headquarters_city    TEXT,
	headquarters_state   TEXT,
	composite_risk_score INTEGER NOT NULL DEFAULT 0,
	signal_count         INTEGER NOT NULL DEFAULT 0,
	last_signal_at       TIMESTAMPTZ,
	risk_trend           TEXT NOT NULL DEFAULT 'stable',
	enrichment_status    TEXT NOT NULL DEFAULT 'pending',
	enriched_at          TIMESTAMPTZ,
	metadata             JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id                   UUID PRIMARY KEY,
	raw_event_id         UUID REFERENCES raw_events(id),
	company_id           UUID NOT NULL REFERENCES companies(id),
	signal_type          TEXT NOT NULL,
	signal_category      TEXT NOT NULL,
	title                TEXT NOT NULL,
	summary              TEXT,
	confidence_score     INTEGER NOT NULL DEFAULT 50,
	severity_score       INTEGER NOT NULL DEFAULT 50,
	source_name          TEXT NOT NULL,
	source_url           TEXT,
	source_published_at  TIMESTAMPTZ,
	location_city        TEXT,
	location_state       TEXT,
	affected_employees   INTEGER,
	device_estimate      INTEGER,
	correlation_group_id UUID,
	metadata             JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_health (
	id                   UUID PRIMARY KEY,
	name                 TEXT NOT NULL,
	source_type          TEXT NOT NULL UNIQUE,
	schedule_cron        TEXT,
	enabled              BOOLEAN NOT NULL DEFAULT true,
	last_run_at          TIMESTAMPTZ,
	last_run_status      TEXT,
	last_run_signals     INTEGER NOT NULL DEFAULT 0,
	last_run_duration_ms INTEGER NOT NULL DEFAULT 0,
	error_count          INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS justifications (
	company_id          UUID PRIMARY KEY REFERENCES companies(id),
	text                TEXT NOT NULL,
	score_at_generation INTEGER NOT NULL,
	generated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_events_status ON raw_events(processing_status, created_at);
CREATE INDEX IF NOT EXISTS idx_signals_company ON signals(company_id, created_at);
CREATE INDEX IF NOT EXISTS idx_signals_dedup ON signals(company_id, signal_type, source_published_at);
CREATE INDEX IF NOT EXISTS idx_signals_group ON signals(correlation_group_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertRawEvent(ctx context.Context, e *model.RawEvent) (bool, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ProcessingStatus == "" {
		e.ProcessingStatus = model.StatusRaw
	}

	locations, err := json.Marshal(e.Locations)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal locations")
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO raw_events
			(id, source_type, company_name, event_type, event_date, locations,
			 employees_affected, source_url, raw_text, content_hash,
			 processing_status, discard_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (content_hash) DO NOTHING`,
		e.ID, e.SourceType, e.CompanyName, e.EventType, e.EventDate, locations,
		e.EmployeesAffected, e.SourceURL, e.RawText, e.ContentHash,
		string(e.ProcessingStatus), nullableString(e.DiscardReason), e.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert raw event")
	}
	return tag.RowsAffected() > 0, nil
}

// BulkInsertRawEvents lands a collector batch through the COPY-based upsert,
// skipping rows whose content hash is already present. Returns the number of
// rows actually inserted. Callers must fingerprint and status the events
// beforehand.
func (s *PostgresStore) BulkInsertRawEvents(ctx context.Context, events []model.RawEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for i := range events {
		e := &events[i]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		if e.ProcessingStatus == "" {
			e.ProcessingStatus = model.StatusRaw
		}
		locations, err := json.Marshal(e.Locations)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal locations")
		}
		rows = append(rows, []any{
			e.ID, e.SourceType, e.CompanyName, e.EventType, e.EventDate, locations,
			e.EmployeesAffected, e.SourceURL, e.RawText, e.ContentHash,
			string(e.ProcessingStatus), nullableString(e.DiscardReason), e.CreatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "raw_events",
		Columns: []string{
			"id", "source_type", "company_name", "event_type", "event_date", "locations",
			"employees_affected", "source_url", "raw_text", "content_hash",
			"processing_status", "discard_reason", "created_at",
		},
		ConflictKeys: []string{"content_hash"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert raw events")
	}
	return n, nil
}

func (s *PostgresStore) ListRawEventsByStatus(ctx context.Context, status model.ProcessingStatus, limit int) ([]model.RawEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_type, company_name, event_type, event_date, locations,
		       employees_affected, source_url, raw_text, content_hash,
		       processing_status, discard_reason, created_at
		FROM raw_events
		WHERE processing_status = $1
		ORDER BY created_at
		LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw events")
	}
	defer rows.Close()

	var events []model.RawEvent
	for rows.Next() {
		var (
			e                            model.RawEvent
			locations                    []byte
			sourceURL, rawText, discard  *string
		)
		if err := rows.Scan(&e.ID, &e.SourceType, &e.CompanyName, &e.EventType,
			&e.EventDate, &locations, &e.EmployeesAffected, &sourceURL,
			&rawText, &e.ContentHash, &e.ProcessingStatus, &discard,
			&e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw event")
		}
		e.SourceURL = deref(sourceURL)
		e.RawText = deref(rawText)
		e.DiscardReason = deref(discard)
		if len(locations) > 0 {
			if err := json.Unmarshal(locations, &e.Locations); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal locations")
			}
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate raw events")
}

func (s *PostgresStore) UpdateRawEventStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus, discardReason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE raw_events SET processing_status = $1, discard_reason = $2 WHERE id = $3`,
		string(status), nullableString(discardReason), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update raw event status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: raw event %s not found", id)
	}
	return nil
}

const companyColumns = `id, name, normalized_name, ticker, cik, domain,
	industry, sector, sic_code, employee_count, headquarters_city,
	headquarters_state, composite_risk_score, signal_count, last_signal_at,
	risk_trend, enrichment_status, enriched_at, metadata, created_at, updated_at`

func (s *PostgresStore) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	return s.getCompanyWhere(ctx, "id = $1", id)
}

func (s *PostgresStore) GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error) {
	return s.getCompanyWhere(ctx, "normalized_name = $1", normalized)
}

func (s *PostgresStore) getCompanyWhere(ctx context.Context, where string, arg any) (*model.Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE `+where, arg)
	c, err := scanPgCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.RiskTrend == "" {
		c.RiskTrend = model.TrendStable
	}
	if c.EnrichmentStatus == "" {
		c.EnrichmentStatus = model.EnrichmentPending
	}

	metadata, err := marshalMetadata(c.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.Name, c.NormalizedName, nullableString(c.Ticker),
		nullableString(c.CIK), nullableString(c.Domain),
		nullableString(c.Industry), nullableString(c.Sector),
		nullableString(c.SICCode), c.EmployeeCount,
		nullableString(c.HeadquartersCity), nullableString(c.HeadquartersState),
		c.CompositeRiskScore, c.SignalCount, c.LastSignalAt,
		string(c.RiskTrend), string(c.EnrichmentStatus), c.EnrichedAt, metadata,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert company")
}

func (s *PostgresStore) UpdateCompanyRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET composite_risk_score = $1, risk_trend = $2, signal_count = $3,
		    last_signal_at = $4, updated_at = now()
		WHERE id = $5`,
		a.CompositeScore, string(a.Trend), a.SignalCount, a.LastSignalAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company risk %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: company %s not found", id)
	}
	return nil
}

func (s *PostgresStore) UpdateCompanyEnrichment(ctx context.Context, id uuid.UUID, patch EnrichmentPatch) error {
	var enrichedAt *time.Time
	if patch.Status != "" && patch.Status != model.EnrichmentPending {
		now := time.Now().UTC()
		enrichedAt = &now
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET ticker = COALESCE($1, ticker),
		    cik = COALESCE($2, cik),
		    sic_code = COALESCE($3, sic_code),
		    industry = COALESCE($4, industry),
		    sector = COALESCE($5, sector),
		    employee_count = COALESCE($6, employee_count),
		    enrichment_status = $7,
		    enriched_at = COALESCE($8, enriched_at),
		    updated_at = now()
		WHERE id = $9`,
		patch.Ticker, patch.CIK, patch.SICCode, patch.Industry, patch.Sector,
		patch.EmployeeCount, string(patch.Status), enrichedAt, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company enrichment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: company %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE signal_count > 0`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.State != "" {
		query += ` AND headquarters_state = ` + arg(filter.State)
	}
	if filter.Industry != "" {
		query += ` AND industry ILIKE ` + arg("%"+filter.Industry+"%")
	}
	if filter.MinRiskScore > 0 {
		query += ` AND composite_risk_score >= ` + arg(filter.MinRiskScore)
	}
	query += ` ORDER BY composite_risk_score DESC, last_signal_at DESC NULLS LAST`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()
	return collectPgCompanies(rows)
}

func (s *PostgresStore) ListCompaniesPendingEnrichment(ctx context.Context, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+companyColumns+` FROM companies
		WHERE enrichment_status = 'pending' AND signal_count > 0
		ORDER BY composite_risk_score DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending enrichment")
	}
	defer rows.Close()
	return collectPgCompanies(rows)
}

func (s *PostgresStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	if sig.ID == uuid.Nil {
		sig.ID = uuid.New()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	metadata, err := marshalMetadata(sig.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO signals
			(id, raw_event_id, company_id, signal_type, signal_category, title,
			 summary, confidence_score, severity_score, source_name, source_url,
			 source_published_at, location_city, location_state,
			 affected_employees, device_estimate, correlation_group_id,
			 metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19)`,
		sig.ID, sig.RawEventID, sig.CompanyID, sig.SignalType,
		sig.SignalCategory, sig.Title, nullableString(sig.Summary),
		sig.ConfidenceScore, sig.SeverityScore, sig.SourceName,
		nullableString(sig.SourceURL), sig.SourcePublishedAt,
		nullableString(sig.LocationCity), nullableString(sig.LocationState),
		sig.AffectedEmployees, sig.DeviceEstimate, sig.CorrelationGroupID,
		metadata, sig.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert signal")
}

func (s *PostgresStore) SignalExistsInWindow(ctx context.Context, companyID uuid.UUID, signalType string, around time.Time, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM signals
			WHERE company_id = $1 AND signal_type = $2
			  AND source_published_at >= $3 AND source_published_at <= $4
		)`,
		companyID, signalType, around.Add(-window), around.Add(window),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: signal exists in window")
	}
	return exists, nil
}

const signalColumns = `id, raw_event_id, company_id, signal_type,
	signal_category, title, summary, confidence_score, severity_score,
	source_name, source_url, source_published_at, location_city,
	location_state, affected_employees, device_estimate,
	correlation_group_id, metadata, created_at`

func (s *PostgresStore) ListCompanySignalsSince(ctx context.Context, companyID uuid.UUID, cutoff time.Time, excludeID uuid.UUID) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+signalColumns+` FROM signals
		WHERE company_id = $1 AND created_at >= $2 AND id != $3
		ORDER BY created_at DESC`,
		companyID, cutoff, excludeID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list company signals since")
	}
	defer rows.Close()
	return collectPgSignals(rows)
}

func (s *PostgresStore) ListCompanySignals(ctx context.Context, companyID uuid.UUID) ([]model.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+signalColumns+` FROM signals
		WHERE company_id = $1
		ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list company signals")
	}
	defer rows.Close()
	return collectPgSignals(rows)
}

func (s *PostgresStore) SetCorrelationGroup(ctx context.Context, signalID, groupID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET correlation_group_id = $1 WHERE id = $2`,
		groupID, signalID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set correlation group %s", signalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: signal %s not found", signalID)
	}
	return nil
}

func (s *PostgresStore) RecordSourceRun(ctx context.Context, sourceType string, run model.SourceRun) error {
	errorDelta := "0"
	if run.Status == model.RunStatusFailed {
		errorDelta = "source_health.error_count + 1"
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_health
			(id, name, source_type, last_run_at, last_run_status,
			 last_run_signals, last_run_duration_ms, error_count, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_type) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			last_run_status = EXCLUDED.last_run_status,
			last_run_signals = EXCLUDED.last_run_signals,
			last_run_duration_ms = EXCLUDED.last_run_duration_ms,
			error_count = `+errorDelta+`,
			last_error = EXCLUDED.last_error,
			updated_at = now()`,
		uuid.New(), sourceType, sourceType, run.RanAt, run.Status,
		run.SignalCount, run.DurationMS, initialErrorCount(run),
		nullableString(run.Err),
	)
	return eris.Wrapf(err, "postgres: record source run %s", sourceType)
}

func (s *PostgresStore) ListSourceHealth(ctx context.Context) ([]model.SourceHealth, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, source_type, schedule_cron, enabled, last_run_at,
		       last_run_status, last_run_signals, last_run_duration_ms,
		       error_count, last_error, created_at, updated_at
		FROM source_health
		ORDER BY source_type`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list source health")
	}
	defer rows.Close()

	var out []model.SourceHealth
	for rows.Next() {
		var (
			h                     model.SourceHealth
			cron, status, lastErr *string
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.SourceType, &cron, &h.Enabled,
			&h.LastRunAt, &status, &h.LastRunSignals, &h.LastRunDuration,
			&h.ErrorCount, &lastErr, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source health")
		}
		if cron != nil {
			h.ScheduleCron = *cron
		}
		if status != nil {
			h.LastRunStatus = *status
		}
		if lastErr != nil {
			h.LastError = *lastErr
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate source health")
}

func (s *PostgresStore) GetJustification(ctx context.Context, companyID uuid.UUID) (*model.Justification, error) {
	var j model.Justification
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, text, score_at_generation, generated_at
		FROM justifications WHERE company_id = $1`,
		companyID,
	).Scan(&j.CompanyID, &j.Text, &j.ScoreAtGeneration, &j.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get justification")
	}
	return &j, nil
}

func (s *PostgresStore) SetJustification(ctx context.Context, j model.Justification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO justifications (company_id, text, score_at_generation, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id) DO UPDATE SET
			text = EXCLUDED.text,
			score_at_generation = EXCLUDED.score_at_generation,
			generated_at = EXCLUDED.generated_at`,
		j.CompanyID, j.Text, j.ScoreAtGeneration, j.GeneratedAt,
	)
	return eris.Wrap(err, "postgres: set justification")
}

// --- scan helpers ---

func scanPgCompany(row pgx.Row) (*model.Company, error) {
	var (
		c                         model.Company
		ticker, cik, domain       *string
		industry, sector, sicCode *string
		hqCity, hqState           *string
		metadata                  []byte
	)
	if err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &ticker, &cik,
		&domain, &industry, &sector, &sicCode, &c.EmployeeCount, &hqCity,
		&hqState, &c.CompositeRiskScore, &c.SignalCount, &c.LastSignalAt,
		&c.RiskTrend, &c.EnrichmentStatus, &c.EnrichedAt, &metadata,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan company")
	}
	c.Ticker = deref(ticker)
	c.CIK = deref(cik)
	c.Domain = deref(domain)
	c.Industry = deref(industry)
	c.Sector = deref(sector)
	c.SICCode = deref(sicCode)
	c.HeadquartersCity = deref(hqCity)
	c.HeadquartersState = deref(hqState)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal company metadata")
		}
	}
	return &c, nil
}

func collectPgCompanies(rows pgx.Rows) ([]model.Company, error) {
	var out []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func collectPgSignals(rows pgx.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		var (
			sig                         model.Signal
			summary, sourceURL          *string
			locCity, locState           *string
			metadata                    []byte
		)
		if err := rows.Scan(&sig.ID, &sig.RawEventID, &sig.CompanyID,
			&sig.SignalType, &sig.SignalCategory, &sig.Title, &summary,
			&sig.ConfidenceScore, &sig.SeverityScore, &sig.SourceName,
			&sourceURL, &sig.SourcePublishedAt, &locCity, &locState,
			&sig.AffectedEmployees, &sig.DeviceEstimate,
			&sig.CorrelationGroupID, &metadata, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		sig.Summary = deref(summary)
		sig.SourceURL = deref(sourceURL)
		sig.LocationCity = deref(locCity)
		sig.LocationState = deref(locState)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &sig.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal signal metadata")
			}
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate signals")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

