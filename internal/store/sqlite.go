package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS raw_events (
	id                 TEXT PRIMARY KEY,
	source_type        TEXT NOT NULL,
	company_name       TEXT NOT NULL,
	event_type         TEXT NOT NULL,
	event_date         DATETIME,
	locations          TEXT,
	employees_affected INTEGER,
	source_url         TEXT,
	raw_text           TEXT,
	content_hash       TEXT NOT NULL UNIQUE,
	processing_status  TEXT NOT NULL DEFAULT 'raw',
	discard_reason     TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id                   TEXT PRIMARY KEY,
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
	last_signal_at       DATETIME,
	risk_trend           TEXT NOT NULL DEFAULT 'stable',
	enrichment_status    TEXT NOT NULL DEFAULT 'pending',
	enriched_at          DATETIME,
	metadata             TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS signals (
	id                   TEXT PRIMARY KEY,
	raw_event_id         TEXT REFERENCES raw_events(id),
	company_id           TEXT NOT NULL REFERENCES companies(id),
	signal_type          TEXT NOT NULL,
	signal_category      TEXT NOT NULL,
	title                TEXT NOT NULL,
	summary              TEXT,
	confidence_score     INTEGER NOT NULL DEFAULT 50,
	severity_score       INTEGER NOT NULL DEFAULT 50,
	source_name          TEXT NOT NULL,
	source_url           TEXT,
	source_published_at  DATETIME,
	location_city        TEXT,
	location_state       TEXT,
	affected_employees   INTEGER,
	device_estimate      INTEGER,
	correlation_group_id TEXT,
	metadata             TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS source_health (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	source_type          TEXT NOT NULL UNIQUE,
	schedule_cron        TEXT,
	enabled              INTEGER NOT NULL DEFAULT 1,
	last_run_at          DATETIME,
	last_run_status      TEXT,
	last_run_signals     INTEGER NOT NULL DEFAULT 0,
	last_run_duration_ms INTEGER NOT NULL DEFAULT 0,
	error_count          INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS justifications (
	company_id          TEXT PRIMARY KEY REFERENCES companies(id),
	text                TEXT NOT NULL,
	score_at_generation INTEGER NOT NULL,
	generated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_events_status ON raw_events(processing_status, created_at);
CREATE INDEX IF NOT EXISTS idx_companies_normalized ON companies(normalized_name);
CREATE INDEX IF NOT EXISTS idx_signals_company ON signals(company_id, created_at);
CREATE INDEX IF NOT EXISTS idx_signals_dedup ON signals(company_id, signal_type, source_published_at);
CREATE INDEX IF NOT EXISTS idx_signals_group ON signals(correlation_group_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertRawEvent(ctx context.Context, e *model.RawEvent) (bool, error) {
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
		return false, eris.Wrap(err, "sqlite: marshal locations")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_events
			(id, source_type, company_name, event_type, event_date, locations,
			 employees_affected, source_url, raw_text, content_hash,
			 processing_status, discard_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING`,
		e.ID.String(), e.SourceType, e.CompanyName, e.EventType, e.EventDate,
		string(locations), e.EmployeesAffected, e.SourceURL, e.RawText,
		e.ContentHash, string(e.ProcessingStatus), e.DiscardReason, e.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert raw event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert raw event rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListRawEventsByStatus(ctx context.Context, status model.ProcessingStatus, limit int) ([]model.RawEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_type, company_name, event_type, event_date, locations,
		       employees_affected, source_url, raw_text, content_hash,
		       processing_status, discard_reason, created_at
		FROM raw_events
		WHERE processing_status = ?
		ORDER BY created_at
		LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw events")
	}
	defer rows.Close()

	var events []model.RawEvent
	for rows.Next() {
		e, err := scanRawEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate raw events")
}

func (s *SQLiteStore) UpdateRawEventStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus, discardReason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE raw_events SET processing_status = ?, discard_reason = ? WHERE id = ?`,
		string(status), nullableString(discardReason), id.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update raw event status %s", id)
	}
	return checkRowsAffected(res, "raw event", id.String())
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	return s.getCompanyWhere(ctx, "id = ?", id.String())
}

func (s *SQLiteStore) GetCompanyByNormalizedName(ctx context.Context, normalized string) (*model.Company, error) {
	return s.getCompanyWhere(ctx, "normalized_name = ?", normalized)
}

func (s *SQLiteStore) getCompanyWhere(ctx context.Context, where string, arg any) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, ticker, cik, domain, industry, sector,
		       sic_code, employee_count, headquarters_city, headquarters_state,
		       composite_risk_score, signal_count, last_signal_at, risk_trend,
		       enrichment_status, enriched_at, metadata, created_at, updated_at
		FROM companies WHERE `+where,
		arg,
	)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companies
			(id, name, normalized_name, ticker, cik, domain, industry, sector,
			 sic_code, employee_count, headquarters_city, headquarters_state,
			 composite_risk_score, signal_count, last_signal_at, risk_trend,
			 enrichment_status, enriched_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.Name, c.NormalizedName, c.Ticker, c.CIK, c.Domain,
		c.Industry, c.Sector, c.SICCode, c.EmployeeCount, c.HeadquartersCity,
		c.HeadquartersState, c.CompositeRiskScore, c.SignalCount, c.LastSignalAt,
		string(c.RiskTrend), string(c.EnrichmentStatus), c.EnrichedAt, metadata,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert company")
}

func (s *SQLiteStore) UpdateCompanyRisk(ctx context.Context, id uuid.UUID, a risk.Assessment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies
		SET composite_risk_score = ?, risk_trend = ?, signal_count = ?,
		    last_signal_at = ?, updated_at = ?
		WHERE id = ?`,
		a.CompositeScore, string(a.Trend), a.SignalCount, a.LastSignalAt,
		time.Now().UTC(), id.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company risk %s", id)
	}
	return checkRowsAffected(res, "company", id.String())
}

func (s *SQLiteStore) UpdateCompanyEnrichment(ctx context.Context, id uuid.UUID, patch EnrichmentPatch) error {
	var enrichedAt *time.Time
	if patch.Status != "" && patch.Status != model.EnrichmentPending {
		now := time.Now().UTC()
		enrichedAt = &now
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE companies
		SET ticker = COALESCE(?, ticker),
		    cik = COALESCE(?, cik),
		    sic_code = COALESCE(?, sic_code),
		    industry = COALESCE(?, industry),
		    sector = COALESCE(?, sector),
		    employee_count = COALESCE(?, employee_count),
		    enrichment_status = ?,
		    enriched_at = COALESCE(?, enriched_at),
		    updated_at = ?
		WHERE id = ?`,
		patch.Ticker, patch.CIK, patch.SICCode, patch.Industry, patch.Sector,
		patch.EmployeeCount, string(patch.Status), enrichedAt,
		time.Now().UTC(), id.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company enrichment %s", id)
	}
	return checkRowsAffected(res, "company", id.String())
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `
		SELECT id, name, normalized_name, ticker, cik, domain, industry, sector,
		       sic_code, employee_count, headquarters_city, headquarters_state,
		       composite_risk_score, signal_count, last_signal_at, risk_trend,
		       enrichment_status, enriched_at, metadata, created_at, updated_at
		FROM companies WHERE signal_count > 0`
	var args []any
	if filter.State != "" {
		query += ` AND headquarters_state = ?`
		args = append(args, filter.State)
	}
	if filter.Industry != "" {
		query += ` AND industry LIKE ?`
		args = append(args, "%"+filter.Industry+"%")
	}
	if filter.MinRiskScore > 0 {
		query += ` AND composite_risk_score >= ?`
		args = append(args, filter.MinRiskScore)
	}
	query += ` ORDER BY composite_risk_score DESC, last_signal_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (s *SQLiteStore) ListCompaniesPendingEnrichment(ctx context.Context, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, normalized_name, ticker, cik, domain, industry, sector,
		       sic_code, employee_count, headquarters_city, headquarters_state,
		       composite_risk_score, signal_count, last_signal_at, risk_trend,
		       enrichment_status, enriched_at, metadata, created_at, updated_at
		FROM companies
		WHERE enrichment_status = 'pending' AND signal_count > 0
		ORDER BY composite_risk_score DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending enrichment")
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (s *SQLiteStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO signals
			(id, raw_event_id, company_id, signal_type, signal_category, title,
			 summary, confidence_score, severity_score, source_name, source_url,
			 source_published_at, location_city, location_state,
			 affected_employees, device_estimate, correlation_group_id,
			 metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID.String(), uuidPtrString(sig.RawEventID), sig.CompanyID.String(),
		sig.SignalType, sig.SignalCategory, sig.Title, sig.Summary,
		sig.ConfidenceScore, sig.SeverityScore, sig.SourceName, sig.SourceURL,
		sig.SourcePublishedAt, sig.LocationCity, sig.LocationState,
		sig.AffectedEmployees, sig.DeviceEstimate,
		uuidPtrString(sig.CorrelationGroupID), metadata, sig.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert signal")
}

func (s *SQLiteStore) SignalExistsInWindow(ctx context.Context, companyID uuid.UUID, signalType string, around time.Time, window time.Duration) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM signals
		WHERE company_id = ? AND signal_type = ?
		  AND source_published_at >= ? AND source_published_at <= ?
		LIMIT 1`,
		companyID.String(), signalType, around.Add(-window), around.Add(window),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: signal exists in window")
	}
	return exists > 0, nil
}

func (s *SQLiteStore) ListCompanySignalsSince(ctx context.Context, companyID uuid.UUID, cutoff time.Time, excludeID uuid.UUID) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_event_id, company_id, signal_type, signal_category, title,
		       summary, confidence_score, severity_score, source_name, source_url,
		       source_published_at, location_city, location_state,
		       affected_employees, device_estimate, correlation_group_id,
		       metadata, created_at
		FROM signals
		WHERE company_id = ? AND created_at >= ? AND id != ?
		ORDER BY created_at DESC`,
		companyID.String(), cutoff, excludeID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list company signals since")
	}
	defer rows.Close()
	return collectSignals(rows)
}

func (s *SQLiteStore) ListCompanySignals(ctx context.Context, companyID uuid.UUID) ([]model.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_event_id, company_id, signal_type, signal_category, title,
		       summary, confidence_score, severity_score, source_name, source_url,
		       source_published_at, location_city, location_state,
		       affected_employees, device_estimate, correlation_group_id,
		       metadata, created_at
		FROM signals
		WHERE company_id = ?
		ORDER BY created_at DESC`,
		companyID.String(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list company signals")
	}
	defer rows.Close()
	return collectSignals(rows)
}

func (s *SQLiteStore) SetCorrelationGroup(ctx context.Context, signalID, groupID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET correlation_group_id = ? WHERE id = ?`,
		groupID.String(), signalID.String(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set correlation group %s", signalID)
	}
	return checkRowsAffected(res, "signal", signalID.String())
}

func (s *SQLiteStore) RecordSourceRun(ctx context.Context, sourceType string, run model.SourceRun) error {
	now := time.Now().UTC()
	var errorDelta string
	if run.Status == model.RunStatusFailed {
		errorDelta = "error_count + 1"
	} else {
		errorDelta = "0"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_health
			(id, name, source_type, enabled, last_run_at, last_run_status,
			 last_run_signals, last_run_duration_ms, error_count, last_error,
			 created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_type) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			last_run_signals = excluded.last_run_signals,
			last_run_duration_ms = excluded.last_run_duration_ms,
			error_count = `+errorDelta+`,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		uuid.New().String(), sourceType, sourceType, run.RanAt, run.Status,
		run.SignalCount, run.DurationMS, initialErrorCount(run), nullableString(run.Err),
		now, now,
	)
	return eris.Wrapf(err, "sqlite: record source run %s", sourceType)
}

func initialErrorCount(run model.SourceRun) int {
	if run.Status == model.RunStatusFailed {
		return 1
	}
	return 0
}

func (s *SQLiteStore) ListSourceHealth(ctx context.Context) ([]model.SourceHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_type, schedule_cron, enabled, last_run_at,
		       last_run_status, last_run_signals, last_run_duration_ms,
		       error_count, last_error, created_at, updated_at
		FROM source_health
		ORDER BY source_type`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list source health")
	}
	defer rows.Close()

	var out []model.SourceHealth
	for rows.Next() {
		var (
			h                          model.SourceHealth
			id                         string
			cron, status, lastErr      sql.NullString
			lastRunAt                  sql.NullTime
		)
		if err := rows.Scan(&id, &h.Name, &h.SourceType, &cron, &h.Enabled,
			&lastRunAt, &status, &h.LastRunSignals, &h.LastRunDuration,
			&h.ErrorCount, &lastErr, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source health")
		}
		h.ID, _ = uuid.Parse(id)
		h.ScheduleCron = cron.String
		h.LastRunStatus = status.String
		h.LastError = lastErr.String
		if lastRunAt.Valid {
			t := lastRunAt.Time
			h.LastRunAt = &t
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate source health")
}

func (s *SQLiteStore) GetJustification(ctx context.Context, companyID uuid.UUID) (*model.Justification, error) {
	var j model.Justification
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT company_id, text, score_at_generation, generated_at
		FROM justifications WHERE company_id = ?`,
		companyID.String(),
	).Scan(&id, &j.Text, &j.ScoreAtGeneration, &j.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get justification")
	}
	j.CompanyID, _ = uuid.Parse(id)
	return &j, nil
}

func (s *SQLiteStore) SetJustification(ctx context.Context, j model.Justification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO justifications (company_id, text, score_at_generation, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (company_id) DO UPDATE SET
			text = excluded.text,
			score_at_generation = excluded.score_at_generation,
			generated_at = excluded.generated_at`,
		j.CompanyID.String(), j.Text, j.ScoreAtGeneration, j.GeneratedAt,
	)
	return eris.Wrap(err, "sqlite: set justification")
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanRawEvent(row scannable) (*model.RawEvent, error) {
	var (
		e                       model.RawEvent
		id                      string
		eventDate               sql.NullTime
		locations               sql.NullString
		employees               sql.NullInt64
		sourceURL, rawText      sql.NullString
		discardReason           sql.NullString
	)
	if err := row.Scan(&id, &e.SourceType, &e.CompanyName, &e.EventType,
		&eventDate, &locations, &employees, &sourceURL, &rawText,
		&e.ContentHash, &e.ProcessingStatus, &discardReason, &e.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan raw event")
	}
	e.ID, _ = uuid.Parse(id)
	if eventDate.Valid {
		t := eventDate.Time
		e.EventDate = &t
	}
	if locations.Valid && locations.String != "" && locations.String != "null" {
		if err := json.Unmarshal([]byte(locations.String), &e.Locations); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal locations")
		}
	}
	if employees.Valid {
		n := int(employees.Int64)
		e.EmployeesAffected = &n
	}
	e.SourceURL = sourceURL.String
	e.RawText = rawText.String
	e.DiscardReason = discardReason.String
	return &e, nil
}

func scanCompany(row scannable) (*model.Company, error) {
	var (
		c                                  model.Company
		id                                 string
		ticker, cik, domain                sql.NullString
		industry, sector, sicCode          sql.NullString
		employeeCount                      sql.NullInt64
		hqCity, hqState                    sql.NullString
		lastSignalAt, enrichedAt           sql.NullTime
		metadata                           sql.NullString
	)
	if err := row.Scan(&id, &c.Name, &c.NormalizedName, &ticker, &cik, &domain,
		&industry, &sector, &sicCode, &employeeCount, &hqCity, &hqState,
		&c.CompositeRiskScore, &c.SignalCount, &lastSignalAt, &c.RiskTrend,
		&c.EnrichmentStatus, &enrichedAt, &metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	c.ID, _ = uuid.Parse(id)
	c.Ticker = ticker.String
	c.CIK = cik.String
	c.Domain = domain.String
	c.Industry = industry.String
	c.Sector = sector.String
	c.SICCode = sicCode.String
	if employeeCount.Valid {
		n := int(employeeCount.Int64)
		c.EmployeeCount = &n
	}
	c.HeadquartersCity = hqCity.String
	c.HeadquartersState = hqState.String
	if lastSignalAt.Valid {
		t := lastSignalAt.Time
		c.LastSignalAt = &t
	}
	if enrichedAt.Valid {
		t := enrichedAt.Time
		c.EnrichedAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal company metadata")
		}
	}
	return &c, nil
}

func collectCompanies(rows *sql.Rows) ([]model.Company, error) {
	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func scanSignal(row scannable) (*model.Signal, error) {
	var (
		sig                               model.Signal
		id, companyID                     string
		rawEventID, groupID               sql.NullString
		summary, sourceURL                sql.NullString
		publishedAt                       sql.NullTime
		locCity, locState                 sql.NullString
		affected, devices                 sql.NullInt64
		metadata                          sql.NullString
	)
	if err := row.Scan(&id, &rawEventID, &companyID, &sig.SignalType,
		&sig.SignalCategory, &sig.Title, &summary, &sig.ConfidenceScore,
		&sig.SeverityScore, &sig.SourceName, &sourceURL, &publishedAt,
		&locCity, &locState, &affected, &devices, &groupID, &metadata,
		&sig.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan signal")
	}
	sig.ID, _ = uuid.Parse(id)
	sig.CompanyID, _ = uuid.Parse(companyID)
	if rawEventID.Valid {
		if parsed, err := uuid.Parse(rawEventID.String); err == nil {
			sig.RawEventID = &parsed
		}
	}
	if groupID.Valid {
		if parsed, err := uuid.Parse(groupID.String); err == nil {
			sig.CorrelationGroupID = &parsed
		}
	}
	sig.Summary = summary.String
	sig.SourceURL = sourceURL.String
	if publishedAt.Valid {
		t := publishedAt.Time
		sig.SourcePublishedAt = &t
	}
	sig.LocationCity = locCity.String
	sig.LocationState = locState.String
	if affected.Valid {
		n := int(affected.Int64)
		sig.AffectedEmployees = &n
	}
	if devices.Valid {
		n := int(devices.Int64)
		sig.DeviceEstimate = &n
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &sig.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal signal metadata")
		}
	}
	return &sig, nil
}

func collectSignals(rows *sql.Rows) ([]model.Signal, error) {
	var out []model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate signals")
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal metadata")
	}
	return string(b), nil
}

func uuidPtrString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", entity, id)
	}
	return nil
}
