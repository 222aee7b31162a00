package estimate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ozonscout/internal/model"
	"ozonscout/internal/observability"
	"ozonscout/internal/snapshot"
)

// ProductInfo is what the estimator needs from the product record.
type ProductInfo struct {
	ListedAt     time.Time
	TotalReviews int
}

// ProductLookup resolves listing age and review totals, typically backed by
// the product repository.
type ProductLookup interface {
	ProductInfo(ctx context.Context, productID string) (ProductInfo, error)
}

// Service computes on-demand estimates over the snapshot store. EstimateSales
// never mutates stored snapshots, so it is safe to call at any time.
type Service struct {
	store  snapshot.Store
	lookup ProductLookup
	cache  *Cache
	params Params
	log    *zap.SugaredLogger
}

func NewService(store snapshot.Store, lookup ProductLookup, cache *Cache, params Params, log *zap.SugaredLogger) *Service {
	return &Service{store: store, lookup: lookup, cache: cache, params: params, log: log}
}

func (s *Service) EstimateSales(ctx context.Context, productID string) (model.SalesEstimate, error) {
	if s.cache != nil {
		if est, ok := s.cache.Get(ctx, productID); ok {
			return est, nil
		}
	}

	now := time.Now()
	// The monthly window is the widest the estimator looks at; each window
	// filters the series down further on its own.
	snaps, err := s.store.Query(ctx, productID, now.AddDate(0, 0, -30))
	if err != nil {
		return model.SalesEstimate{}, err
	}

	var info ProductInfo
	if s.lookup != nil {
		info, err = s.lookup.ProductInfo(ctx, productID)
		if err != nil {
			// Missing product metadata only disables method C.
			s.log.Debugw("product lookup failed", "product_id", productID, "err", err)
			info = ProductInfo{}
		}
	}

	est := Estimate(s.params, snaps, info.ListedAt, info.TotalReviews, now)
	est.ProductID = productID
	observability.EstimatesComputed.Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, est); err != nil {
			s.log.Debugw("estimate cache write failed", "product_id", productID, "err", err)
		}
	}
	return est, nil
}
