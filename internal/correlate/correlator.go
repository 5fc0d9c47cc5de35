// Package correlate links signals about the same company from independent
// source categories into correlation groups. Multi-source confirmation is
// the strongest distress indicator the pipeline has, so grouping is
// conservative: it only strengthens confidence, never creates signals.
package correlate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/model"
)

// WindowDays is the correlation lookback window.
const WindowDays = 14

// SignalStore is the persistence surface the correlator needs.
type SignalStore interface {
	// ListCompanySignalsSince returns signals for the company created at or
	// after cutoff, newest first, excluding excludeID.
	ListCompanySignalsSince(ctx context.Context, companyID uuid.UUID, cutoff time.Time, excludeID uuid.UUID) ([]model.Signal, error)
	SetCorrelationGroup(ctx context.Context, signalID, groupID uuid.UUID) error
}

// Correlator groups cross-category signals within the lookback window.
type Correlator struct {
	store SignalStore
}

// NewCorrelator creates a correlator.
func NewCorrelator(store SignalStore) *Correlator {
	return &Correlator{store: store}
}

// Correlate finds or creates a correlation group for a freshly created
// signal. An existing group on any related signal is adopted; otherwise a
// new group is minted only when the signal's category differs from every
// related signal's category. Same-category-only matches return nil: a
// second article from the same source family is not corroboration.
// Un-grouped related signals are stamped with the chosen group.
func (c *Correlator) Correlate(ctx context.Context, signal *model.Signal, now time.Time) (*uuid.UUID, error) {
	cutoff := now.AddDate(0, 0, -WindowDays)

	related, err := c.store.ListCompanySignalsSince(ctx, signal.CompanyID, cutoff, signal.ID)
	if err != nil {
		return nil, eris.Wrap(err, "correlate: list related signals")
	}
	if len(related) == 0 {
		return nil, nil
	}

	var existingGroup *uuid.UUID
	for _, s := range related {
		if s.CorrelationGroupID != nil {
			existingGroup = s.CorrelationGroupID
			break
		}
	}

	relatedCategories := make(map[string]bool, len(related))
	for _, s := range related {
		relatedCategories[s.SignalCategory] = true
	}

	crossCategory := !relatedCategories[signal.SignalCategory]
	if !crossCategory && existingGroup == nil {
		return nil, nil
	}

	groupID := uuid.New()
	if existingGroup != nil {
		groupID = *existingGroup
	}

	if err := c.store.SetCorrelationGroup(ctx, signal.ID, groupID); err != nil {
		return nil, eris.Wrap(err, "correlate: stamp new signal")
	}
	signal.CorrelationGroupID = &groupID

	stamped := 1
	for _, s := range related {
		if s.CorrelationGroupID != nil {
			continue
		}
		if err := c.store.SetCorrelationGroup(ctx, s.ID, groupID); err != nil {
			return nil, eris.Wrap(err, "correlate: stamp related signal")
		}
		stamped++
	}

	categories := make([]string, 0, len(relatedCategories)+1)
	for cat := range relatedCategories {
		categories = append(categories, cat)
	}
	if crossCategory {
		categories = append(categories, signal.SignalCategory)
	}

	zap.L().Info("correlate: group formed",
		zap.String("company_id", signal.CompanyID.String()),
		zap.String("group_id", groupID.String()),
		zap.Int("signal_count", len(related)+1),
		zap.Int("stamped", stamped),
		zap.Strings("categories", categories),
	)
	return &groupID, nil
}
