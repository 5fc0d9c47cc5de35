// Package ingest is the gate between collectors and the pipeline: it
// fingerprints raw events, drops duplicates, and filters events too small
// to yield a recoverable asset volume, keeping an audit trail either way.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
)

// MinAffectedEmployees is the person-count floor below which an event is
// persisted as discarded. Chosen so a 1.5x device multiplier yields under
// 100 devices.
const MinAffectedEmployees = 67

// EventStore is the persistence surface the gate needs.
type EventStore interface {
	InsertRawEvent(ctx context.Context, e *model.RawEvent) (bool, error)
	RecordSourceRun(ctx context.Context, sourceType string, run model.SourceRun) error
}

// BulkEventStore is implemented by stores that can land a whole batch in one
// round trip.
type BulkEventStore interface {
	BulkInsertRawEvents(ctx context.Context, events []model.RawEvent) (int64, error)
}

// Summary is the per-batch outcome returned to the collector.
type Summary struct {
	Found     int `json:"found"`
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Filtered  int `json:"filtered"`
}

// Gate persists collector batches with dedup and volume filtering.
type Gate struct {
	store        EventStore
	minEmployees int
}

// NewGate creates an ingestion gate with the default volume threshold.
func NewGate(store EventStore) *Gate {
	return &Gate{store: store, minEmployees: MinAffectedEmployees}
}

// NewGateWithThreshold creates a gate with a custom person-count floor.
func NewGateWithThreshold(store EventStore, minEmployees int) *Gate {
	return &Gate{store: store, minEmployees: minEmployees}
}

// Fingerprint derives the dedup key for a raw event from its identity
// fields. Events from re-runs of the same collector hash identically.
func Fingerprint(companyName, eventType string, eventDate *time.Time, sourceURL string) string {
	date := ""
	if eventDate != nil {
		date = eventDate.UTC().Format("2006-01-02")
	}
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(companyName)),
		eventType,
		date,
		sourceURL,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Ingest persists one collector batch and records the source's health.
// Each event is fingerprinted; duplicates are skipped, events below the
// volume threshold are persisted as discarded for the audit trail, and
// everything else lands as raw for the pipeline. The source health record
// is updated even when ingestion fails partway.
func (g *Gate) Ingest(ctx context.Context, sourceType string, events []model.RawEvent) (Summary, error) {
	start := time.Now()
	summary, err := g.ingest(ctx, sourceType, events)
	g.recordRun(ctx, sourceType, start, summary, err)
	return summary, err
}

// IngestBulk persists a batch through the store's COPY-based path when the
// store has one, falling back to row-by-row ingestion otherwise. Passing and
// filtered events land separately so the summary keeps exact counts.
func (g *Gate) IngestBulk(ctx context.Context, sourceType string, events []model.RawEvent) (Summary, error) {
	bulk, ok := g.store.(BulkEventStore)
	if !ok {
		return g.Ingest(ctx, sourceType, events)
	}

	start := time.Now()
	summary, err := g.ingestBulk(ctx, bulk, sourceType, events)
	g.recordRun(ctx, sourceType, start, summary, err)
	return summary, err
}

func (g *Gate) ingestBulk(ctx context.Context, bulk BulkEventStore, sourceType string, events []model.RawEvent) (Summary, error) {
	summary := Summary{Found: len(events)}

	var passing, filtered []model.RawEvent
	for i := range events {
		e := events[i]
		e.SourceType = sourceType
		e.ContentHash = Fingerprint(e.CompanyName, e.EventType, e.EventDate, e.SourceURL)
		e.ProcessingStatus = model.StatusRaw
		e.DiscardReason = ""

		if e.EmployeesAffected != nil && *e.EmployeesAffected < g.minEmployees {
			e.ProcessingStatus = model.StatusDiscarded
			e.DiscardReason = model.DiscardBelowDeviceThreshold
			filtered = append(filtered, e)
			continue
		}
		passing = append(passing, e)
	}

	if len(passing) > 0 {
		n, err := bulk.BulkInsertRawEvents(ctx, passing)
		if err != nil {
			return summary, eris.Wrapf(err, "ingest: %s bulk insert", sourceType)
		}
		summary.New = int(n)
	}
	if len(filtered) > 0 {
		n, err := bulk.BulkInsertRawEvents(ctx, filtered)
		if err != nil {
			return summary, eris.Wrapf(err, "ingest: %s bulk insert filtered", sourceType)
		}
		summary.Filtered = int(n)
	}
	summary.Duplicate = summary.Found - summary.New - summary.Filtered

	zap.L().Info("ingest: bulk batch complete",
		zap.String("source_type", sourceType),
		zap.Int("found", summary.Found),
		zap.Int("new", summary.New),
		zap.Int("duplicate", summary.Duplicate),
		zap.Int("filtered", summary.Filtered),
	)
	return summary, nil
}

func (g *Gate) recordRun(ctx context.Context, sourceType string, start time.Time, summary Summary, err error) {
	run := model.SourceRun{
		RanAt:       start.UTC(),
		Status:      model.RunStatusSuccess,
		SignalCount: summary.New,
		DurationMS:  int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Err = err.Error()
	}
	if healthErr := g.store.RecordSourceRun(ctx, sourceType, run); healthErr != nil {
		zap.L().Error("ingest: record source run failed",
			zap.String("source_type", sourceType),
			zap.Error(healthErr),
		)
	}
}

func (g *Gate) ingest(ctx context.Context, sourceType string, events []model.RawEvent) (Summary, error) {
	summary := Summary{Found: len(events)}

	for i := range events {
		e := &events[i]
		e.SourceType = sourceType
		e.ContentHash = Fingerprint(e.CompanyName, e.EventType, e.EventDate, e.SourceURL)
		e.ProcessingStatus = model.StatusRaw
		e.DiscardReason = ""

		filtered := e.EmployeesAffected != nil && *e.EmployeesAffected < g.minEmployees
		if filtered {
			e.ProcessingStatus = model.StatusDiscarded
			e.DiscardReason = model.DiscardBelowDeviceThreshold
		}

		inserted, err := g.store.InsertRawEvent(ctx, e)
		if err != nil {
			return summary, eris.Wrapf(err, "ingest: %s event %d", sourceType, i)
		}
		switch {
		case !inserted:
			summary.Duplicate++
		case filtered:
			summary.Filtered++
			zap.L().Debug("ingest: below device threshold",
				zap.String("company", e.CompanyName),
				zap.Int("employees_affected", *e.EmployeesAffected),
			)
		default:
			summary.New++
		}
	}

	zap.L().Info("ingest: batch complete",
		zap.String("source_type", sourceType),
		zap.Int("found", summary.Found),
		zap.Int("new", summary.New),
		zap.Int("duplicate", summary.Duplicate),
		zap.Int("filtered", summary.Filtered),
	)
	return summary, nil
}

// String renders the summary for CLI output.
func (s Summary) String() string {
	return fmt.Sprintf("found=%d new=%d duplicate=%d filtered=%d",
		s.Found, s.New, s.Duplicate, s.Filtered)
}
