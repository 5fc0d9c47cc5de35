// Package pipeline turns raw distress events into scored, correlated
// signals: entity resolution, classification, device estimation, dedup,
// correlation, and company risk recompute.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/classify"
	"github.com/sells-group/disposight/internal/correlate"
	"github.com/sells-group/disposight/internal/entity"
	"github.com/sells-group/disposight/internal/model"
	"github.com/sells-group/disposight/internal/risk"
	"github.com/sells-group/disposight/internal/store"
	"github.com/sells-group/disposight/internal/volume"
)

// DefaultBatchSize bounds one processing pass. Small enough that a stuck
// LLM call cannot stall a large backlog behind a single batch.
const DefaultBatchSize = 20

// dedupWindow is the plus-or-minus range around an event's arrival within
// which a same-company, same-type signal counts as a duplicate.
const dedupWindow = 48 * time.Hour

// Result summarizes one processing pass.
type Result struct {
	Processed  int `json:"processed"`
	Errors     int `json:"errors"`
	Duplicates int `json:"duplicates_skipped"`
}

// Processor drains raw events through the signal pipeline.
type Processor struct {
	store      store.Store
	classifier classify.Classifier
	resolver   *entity.Resolver
	correlator *correlate.Correlator
	risk       *risk.Aggregator
	batchSize  int
}

// New creates a processor over the given store and classifier.
func New(st store.Store, classifier classify.Classifier) *Processor {
	return &Processor{
		store:      st,
		classifier: classifier,
		resolver:   entity.NewResolver(st),
		correlator: correlate.NewCorrelator(st),
		risk:       risk.NewAggregator(st),
		batchSize:  DefaultBatchSize,
	}
}

// WithBatchSize overrides the per-pass event limit.
func (p *Processor) WithBatchSize(n int) *Processor {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// ProcessBatch runs one pass over pending raw events. Events that fail
// transiently keep their raw status for the next pass; rejected company
// names and duplicates are discarded with a reason. Risk scores for every
// touched company are recomputed once at the end of the pass.
func (p *Processor) ProcessBatch(ctx context.Context, now time.Time) (Result, error) {
	events, err := p.store.ListRawEventsByStatus(ctx, model.StatusRaw, p.batchSize)
	if err != nil {
		return Result{}, eris.Wrap(err, "pipeline: list raw events")
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	var result Result
	touched := make(map[uuid.UUID]struct{})

	for i := range events {
		e := &events[i]
		companyID, duplicate, err := p.processOne(ctx, e, now)
		switch {
		case eris.Is(err, entity.ErrRejectedName):
			if dErr := p.store.UpdateRawEventStatus(ctx, e.ID, model.StatusDiscarded, model.DiscardRejectedCompanyName); dErr != nil {
				zap.L().Warn("pipeline: discard failed", zap.String("raw_event_id", e.ID.String()), zap.Error(dErr))
			}
			zap.L().Info("pipeline: rejected company name",
				zap.String("raw_event_id", e.ID.String()),
				zap.String("name", e.CompanyName),
			)
		case err != nil:
			// Keep the event raw for retry on the next pass.
			result.Errors++
			zap.L().Error("pipeline: event failed",
				zap.String("raw_event_id", e.ID.String()),
				zap.Error(err),
			)
		case duplicate:
			result.Duplicates++
		default:
			result.Processed++
			touched[companyID] = struct{}{}
		}
	}

	for companyID := range touched {
		if _, err := p.risk.Update(ctx, companyID, now); err != nil {
			zap.L().Error("pipeline: risk update failed",
				zap.String("company_id", companyID.String()),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
		zap.Int("duplicates_skipped", result.Duplicates),
		zap.Int("companies_updated", len(touched)),
	)
	return result, nil
}

// processOne carries a single raw event through resolution, classification,
// dedup, signal creation, and correlation. Returns the company touched and
// whether the event was discarded as a duplicate.
func (p *Processor) processOne(ctx context.Context, e *model.RawEvent, now time.Time) (uuid.UUID, bool, error) {
	city, state := splitLocation(e.Locations)

	company, _, err := p.resolver.FindOrCreate(ctx, e.CompanyName, city, state)
	if err != nil {
		return uuid.Nil, false, err
	}

	text := e.RawText
	if text == "" {
		text = e.CompanyName + " " + e.EventType
	}
	classification, err := p.classifier.Classify(ctx, text, company.Name, e.SourceType)
	if err != nil {
		return uuid.Nil, false, eris.Wrap(err, "pipeline: classify")
	}

	signalType := classify.NormalizeType(classification.SignalType)

	// Free-text extraction often reports whole-company headcounts; cap
	// before estimating, falling back to enriched firmographics.
	employees := e.EmployeesAffected
	if employees == nil && company.EmployeeCount != nil {
		employees = company.EmployeeCount
	}
	employees = volume.CapEmployeeCount(employees, e.SourceType, signalType)
	deviceEstimate := volume.EstimateDevices(signalType, employees)

	publishedAt := e.CreatedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}
	exists, err := p.store.SignalExistsInWindow(ctx, company.ID, signalType, publishedAt, dedupWindow)
	if err != nil {
		return uuid.Nil, false, eris.Wrap(err, "pipeline: dedup check")
	}
	if exists {
		if err := p.store.UpdateRawEventStatus(ctx, e.ID, model.StatusDiscarded, model.DiscardDuplicateSignal); err != nil {
			return uuid.Nil, false, eris.Wrap(err, "pipeline: discard duplicate")
		}
		zap.L().Info("pipeline: duplicate skipped",
			zap.String("raw_event_id", e.ID.String()),
			zap.String("company_id", company.ID.String()),
			zap.String("signal_type", signalType),
		)
		return uuid.Nil, true, nil
	}

	signal := &model.Signal{
		ID:                uuid.New(),
		RawEventID:        &e.ID,
		CompanyID:         company.ID,
		SignalType:        signalType,
		SignalCategory:    classification.SignalCategory,
		Title:             fmt.Sprintf("%s: %s", company.Name, e.EventType),
		Summary:           e.RawText,
		ConfidenceScore:   classification.ConfidenceScore,
		SeverityScore:     classification.SeverityScore,
		SourceName:        e.SourceType,
		SourceURL:         e.SourceURL,
		SourcePublishedAt: &publishedAt,
		LocationCity:      entity.CleanValue(city),
		LocationState:     entity.ValidateStateCode(entity.CleanValue(state)),
		AffectedEmployees: employees,
		DeviceEstimate:    deviceEstimate,
	}
	if err := p.store.CreateSignal(ctx, signal); err != nil {
		return uuid.Nil, false, eris.Wrap(err, "pipeline: create signal")
	}

	if _, err := p.correlator.Correlate(ctx, signal, now); err != nil {
		return uuid.Nil, false, eris.Wrap(err, "pipeline: correlate")
	}

	if err := p.store.UpdateRawEventStatus(ctx, e.ID, model.StatusProcessed, ""); err != nil {
		return uuid.Nil, false, eris.Wrap(err, "pipeline: mark processed")
	}

	zap.L().Info("pipeline: signal processed",
		zap.String("signal_id", signal.ID.String()),
		zap.String("company", company.Name),
		zap.String("type", signal.SignalType),
		zap.Int("confidence", signal.ConfidenceScore),
		zap.Int("severity", signal.SeverityScore),
	)
	return company.ID, false, nil
}

// splitLocation parses the first "City, ST" location into its parts.
func splitLocation(locations []string) (city, state string) {
	if len(locations) == 0 {
		return "", ""
	}
	parts := strings.SplitN(locations[0], ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		state = strings.TrimSpace(parts[1])
	}
	return city, state
}
