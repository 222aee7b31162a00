package collector

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ozonscout/internal/model"
	"ozonscout/internal/observability"
)

// ListSource is one scrollable list view. Visible returns the items currently
// extractable from the view plus the count of items dropped for missing
// identity; LoadMore triggers further content loading and reports whether the
// view can still grow.
type ListSource interface {
	Visible(ctx context.Context) ([]model.ProductRecord, int, error)
	LoadMore(ctx context.Context) (bool, error)
}

// DetailSource performs the per-item two-step deep extraction.
type DetailSource interface {
	Detail(ctx context.Context, sku string) (model.ProductRecord, error)
}

// Status is the terminal state of a collection task.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusExhausted Status = "exhausted"
	StatusAborted   Status = "aborted"
)

// Result is the task report: the merged records plus the accounting the
// caller always gets, whatever the terminal status.
type Result struct {
	TaskID     string
	Keyword    string
	Records    []model.ProductRecord
	Merged     int
	Degraded   int
	Discarded  int
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options bound one collection task.
type Options struct {
	MaxItems          int
	Deep              bool
	MaxNoGrowthPasses int
	MaxDetailFailures int
	DetailRetries     int
	DelayMin          time.Duration
	DelayMax          time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxItems <= 0 {
		o.MaxItems = 5000
	}
	if o.MaxNoGrowthPasses <= 0 {
		o.MaxNoGrowthPasses = 10
	}
	if o.MaxDetailFailures <= 0 {
		o.MaxDetailFailures = 8
	}
	if o.DetailRetries <= 0 {
		o.DetailRetries = 3
	}
	if o.DelayMin <= 0 {
		o.DelayMin = time.Second
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	return o
}

// itemState keeps the two phase partials separately so the final union is
// independent of which phase landed first.
type itemState struct {
	list     model.ProductRecord
	detail   model.ProductRecord
	degraded bool
}

// Coordinator drives one collection task over one list view. It is task
// scoped: the seen-SKU set is owned by the task and never shared.
type Coordinator struct {
	list   ListSource
	detail DetailSource
	opts   Options
	log    *zap.SugaredLogger

	seen  map[string]*itemState
	order []string
}

func NewCoordinator(list ListSource, detail DetailSource, opts Options, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		list:   list,
		detail: detail,
		opts:   opts.withDefaults(),
		log:    log,
		seen:   make(map[string]*itemState),
	}
}

// Run executes the task to a terminal status. Cancellation is observed at
// every suspension point; already-merged items are always flushed into the
// result, never discarded.
func (c *Coordinator) Run(ctx context.Context, keyword string) Result {
	res := Result{TaskID: uuid.NewString(), Keyword: keyword, StartedAt: time.Now()}

	status := c.collectList(ctx, keyword, &res)
	if status != StatusAborted && c.opts.Deep {
		status = c.collectDetails(ctx, status)
	}

	c.flush(keyword, &res)
	res.Status = status
	res.FinishedAt = time.Now()
	if status == StatusAborted {
		observability.TaskAborts.Inc()
	}
	c.log.Infow("task finished",
		"task_id", res.TaskID,
		"keyword", keyword,
		"status", string(status),
		"merged", res.Merged,
		"degraded", res.Degraded,
		"discarded", res.Discarded,
	)
	return res
}

func (c *Coordinator) collectList(ctx context.Context, keyword string, res *Result) Status {
	noGrowth := 0
	for len(c.order) < c.opts.MaxItems {
		if ctx.Err() != nil {
			return StatusAborted
		}

		items, discarded, err := c.list.Visible(ctx)
		if err != nil {
			if errors.Is(err, ErrAntiBot) || ctx.Err() != nil {
				c.log.Warnw("list extraction blocked", "keyword", keyword, "err", err)
				return StatusAborted
			}
			c.log.Warnw("list extraction failed", "keyword", keyword, "err", err)
		}
		if discarded > 0 {
			res.Discarded += discarded
			observability.ItemsDiscarded.Add(float64(discarded))
		}

		if fresh := c.ingestList(items); fresh > 0 {
			noGrowth = 0
			c.log.Infow("list pass", "keyword", keyword, "new", fresh, "total", len(c.order))
		} else {
			noGrowth++
			if noGrowth >= c.opts.MaxNoGrowthPasses {
				return StatusExhausted
			}
		}
		if len(c.order) >= c.opts.MaxItems {
			return StatusCompleted
		}

		more, err := c.list.LoadMore(ctx)
		if err != nil {
			if errors.Is(err, ErrAntiBot) || ctx.Err() != nil {
				return StatusAborted
			}
			c.log.Debugw("load more failed", "err", err)
		} else if !more {
			// A single height sample can miss a slow lazy-load render, so a
			// failed load counts toward the bound instead of ending the task.
			noGrowth++
			if noGrowth >= c.opts.MaxNoGrowthPasses {
				return StatusExhausted
			}
		}

		if !c.pause(ctx) {
			return StatusAborted
		}
	}
	return StatusCompleted
}

// ingestList folds visible items into the task state and reports how many
// SKUs were new. A repeated SKU only fills fields still empty in its
// list-phase partial.
func (c *Coordinator) ingestList(items []model.ProductRecord) int {
	fresh := 0
	for _, item := range items {
		if item.SKU == "" {
			continue
		}
		st, ok := c.seen[item.SKU]
		if !ok {
			if len(c.order) >= c.opts.MaxItems {
				continue
			}
			c.seen[item.SKU] = &itemState{list: item}
			c.order = append(c.order, item.SKU)
			fresh++
			continue
		}
		st.list = model.Merge(st.list, item)
	}
	return fresh
}

func (c *Coordinator) collectDetails(ctx context.Context, status Status) Status {
	consecutiveFailures := 0
	for _, sku := range c.order {
		if ctx.Err() != nil {
			return StatusAborted
		}
		st := c.seen[sku]

		rec, err := c.detailWithRetry(ctx, sku)
		if err != nil {
			if errors.Is(err, ErrAntiBot) || ctx.Err() != nil {
				c.log.Warnw("detail phase blocked", "sku", sku, "err", err)
				return StatusAborted
			}
			st.degraded = true
			consecutiveFailures++
			c.log.Warnw("item degraded to list data", "sku", sku, "err", err)
			if consecutiveFailures >= c.opts.MaxDetailFailures {
				c.log.Errorw("too many consecutive detail failures", "count", consecutiveFailures)
				return StatusAborted
			}
			continue
		}

		st.detail = rec
		consecutiveFailures = 0

		if !c.pause(ctx) {
			return StatusAborted
		}
	}
	return status
}

func (c *Coordinator) detailWithRetry(ctx context.Context, sku string) (model.ProductRecord, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.DetailRetries; attempt++ {
		rec, err := c.detail.Detail(ctx, sku)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if errors.Is(err, ErrAntiBot) || !IsTransient(err) || ctx.Err() != nil {
			return model.ProductRecord{}, err
		}
		if !c.pause(ctx) {
			return model.ProductRecord{}, ctx.Err()
		}
	}
	return model.ProductRecord{}, lastErr
}

// flush turns the per-item phase partials into final records. The detail
// partial is primary so higher-fidelity values always win regardless of
// arrival order.
func (c *Coordinator) flush(keyword string, res *Result) {
	now := time.Now()
	for _, sku := range c.order {
		st := c.seen[sku]
		rec := model.Merge(st.detail, st.list)
		rec.SKU = sku
		rec.Keyword = keyword
		rec.ScrapedAt = now
		res.Records = append(res.Records, rec)
		if st.degraded {
			res.Degraded++
			observability.ItemsDegraded.Inc()
		} else {
			res.Merged++
			observability.ItemsMerged.Inc()
		}
	}
}

// pause sleeps a randomized inter-request delay, returning false when the
// task was cancelled mid-wait.
func (c *Coordinator) pause(ctx context.Context) bool {
	span := c.opts.DelayMax - c.opts.DelayMin
	d := c.opts.DelayMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
