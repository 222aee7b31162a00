package browser

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ozonscout/internal/collector"
	"ozonscout/internal/extract"
	"ozonscout/internal/model"
)

// Factory opens extraction sources over one shared session. Tasks run
// sequentially through it; each OpenSearch call repoints the tab.
type Factory struct {
	sess  *Session
	icept *Interceptor
	log   *zap.SugaredLogger
}

func NewFactory(sess *Session, log *zap.SugaredLogger) *Factory {
	icept := NewInterceptor(0, log)
	icept.Attach(sess.Context())
	return &Factory{sess: sess, icept: icept, log: log}
}

func (f *Factory) OpenSearch(ctx context.Context, keyword string, importOnly bool) (collector.ListSource, collector.DetailSource, func(), error) {
	if err := f.sess.NavigateSearch(ctx, keyword, importOnly); err != nil {
		return nil, nil, nil, err
	}
	f.icept.Drain() // discard captures from previous navigations
	v := &view{sess: f.sess, icept: f.icept, log: f.log}
	return v, v, func() {}, nil
}

// view is one search task's window onto the session.
type view struct {
	sess  *Session
	icept *Interceptor
	log   *zap.SugaredLogger
}

// Visible extracts the currently rendered list items. At list granularity the
// rendered cards are the richest per-item source; structured captures for the
// search feed carry the same fields under volatile keys, so the DOM heuristics
// stay primary here and interception takes over on product pages.
func (v *view) Visible(ctx context.Context) ([]model.ProductRecord, int, error) {
	html, err := v.sess.HTML(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := v.sess.checkBlocked(ctx); err != nil {
		return nil, 0, err
	}
	records, discarded := extract.ListCards(html)
	return records, discarded, nil
}

func (v *view) LoadMore(ctx context.Context) (bool, error) {
	return v.sess.Scroll(ctx)
}

// Detail runs the two-phase deep extraction for one item: navigate, let the
// first-phase widgets land, scroll to trigger the second phase, then resolve
// everything captured. The DOM complements whatever interception missed.
func (v *view) Detail(ctx context.Context, sku string) (model.ProductRecord, error) {
	v.icept.Drain()
	if err := v.sess.NavigateProduct(ctx, sku); err != nil {
		return model.ProductRecord{}, err
	}
	if err := v.sess.TriggerDetailPhase(ctx); err != nil {
		return model.ProductRecord{}, err
	}

	pageURL := fmt.Sprintf("%s/product/%s/", baseURL, sku)
	widgets := mergeCaptures(v.icept.Drain())

	rec, err := extract.Resolve(pageURL, widgets)
	if err != nil && !errors.Is(err, extract.ErrIdentityMissing) {
		return model.ProductRecord{}, collector.Transient(err)
	}
	rec.SKU = sku

	if html, herr := v.sess.HTML(ctx); herr == nil {
		if domRec, derr := extract.DetailFromHTML(pageURL, html); derr == nil {
			rec = model.Merge(rec, domRec)
		}
	}
	if rec.IsEmpty() {
		return model.ProductRecord{}, collector.Transient(fmt.Errorf("detail: no data for sku %s", sku))
	}
	return rec, nil
}

// Probe implements the stock tracker's page observation: structured widgets
// first, rendered text as the fallback for both signals.
func (f *Factory) Probe(ctx context.Context, productID string) (*int, *int, error) {
	f.icept.Drain()
	if err := f.sess.NavigateProduct(ctx, productID); err != nil {
		return nil, nil, err
	}
	widgets := mergeCaptures(f.icept.Drain())

	stock := extract.StockFromWidgets(widgets)
	reviews := extract.ReviewCountFromWidgets(widgets)
	if stock == nil || reviews == nil {
		if text, err := f.sess.BodyText(ctx); err == nil {
			if stock == nil {
				stock = extract.StockFromText(text)
			}
			if reviews == nil {
				reviews = extract.ReviewCountFromText(text)
			}
		}
	}
	return stock, reviews, nil
}

// mergeCaptures unions the widget maps of all captures for one navigation.
// Duplicate responses re-deliver the same widgets; first capture wins so the
// union stays stable.
func mergeCaptures(captures []Capture) map[string]any {
	widgets := make(map[string]any)
	for _, c := range captures {
		for k, v := range c.Widgets {
			if _, ok := widgets[k]; !ok {
				widgets[k] = v
			}
		}
	}
	return widgets
}
