package snapshot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ozonscout/internal/model"
	"ozonscout/internal/observability"
)

// Probe loads one product page and reads its stock/review signals. Either
// signal may be absent for a given navigation.
type Probe interface {
	Probe(ctx context.Context, productID string) (stock *int, reviews *int, err error)
}

// Invalidator drops any cached estimate for a product. New snapshots make
// cached estimates stale by definition.
type Invalidator interface {
	Invalidate(ctx context.Context, productID string) error
}

// Tracker runs one observation pass over a set of products and appends the
// results to the store.
type Tracker struct {
	store      Store
	probe      Probe
	invalidate Invalidator
	pace       time.Duration
	log        *zap.SugaredLogger
}

func NewTracker(store Store, probe Probe, invalidate Invalidator, pace time.Duration, log *zap.SugaredLogger) *Tracker {
	return &Tracker{store: store, probe: probe, invalidate: invalidate, pace: pace, log: log}
}

// TrackStock observes each product once and streams the appended snapshots to
// the handler. A failed probe skips the product; cancellation stops the pass
// between products.
func (t *Tracker) TrackStock(ctx context.Context, productIDs []string, handler func(model.StockSnapshot)) error {
	for i, id := range productIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		stock, reviews, err := t.probe.Probe(ctx, id)
		if err != nil {
			t.log.Warnw("stock probe failed", "product_id", id, "err", err)
			continue
		}
		if stock == nil && reviews == nil {
			t.log.Debugw("no stock signal on page", "product_id", id)
			continue
		}

		snap := model.StockSnapshot{
			ProductID:      id,
			ObservedAt:     time.Now(),
			StockRemaining: stock,
			ReviewCount:    reviews,
		}
		if err := t.store.Append(ctx, snap); err != nil {
			t.log.Errorw("snapshot append failed", "product_id", id, "err", err)
			continue
		}
		observability.SnapshotsAppended.Inc()
		if t.invalidate != nil {
			if err := t.invalidate.Invalidate(ctx, id); err != nil {
				t.log.Debugw("estimate cache invalidation failed", "product_id", id, "err", err)
			}
		}
		handler(snap)

		if t.pace > 0 && i < len(productIDs)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.pace):
			}
		}
	}
	return nil
}
