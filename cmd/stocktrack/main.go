package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ozonscout/internal/browser"
	"ozonscout/internal/config"
	"ozonscout/internal/db"
	"ozonscout/internal/estimate"
	"ozonscout/internal/model"
	"ozonscout/internal/observability"
	"ozonscout/internal/repository"
	"ozonscout/internal/reviews"
	"ozonscout/internal/snapshot"
)

// go run cmd/stocktrack/main.go -keyword="нож кухонный" -limit=200
// go run cmd/stocktrack/main.go -skus="123456789,987654321" -cron="0 */6 * * *"
func main() {
	skusArg := flag.String("skus", "", "comma-separated SKUs to track; defaults to stored products")
	keyword := flag.String("keyword", "", "restrict the default SKU set to one keyword")
	limit := flag.Int("limit", 200, "max products per tracking pass")
	cronSpec := flag.String("cron", "", "cron schedule for repeated passes; empty runs once")
	flag.Parse()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Sugar()

	observability.Start(cfg.MetricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("database pool failed", "err", err)
	}
	defer pool.Close()
	store := &snapshot.PGStore{Pool: pool}

	dbConn, err := db.New(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("database connection failed", "err", err)
	}
	defer dbConn.Close()
	repo := &repository.ProductRepository{DB: dbConn}

	var cache *estimate.Cache
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		cache = estimate.NewCache(redis.NewClient(opts), cfg.EstimateCacheTTL)
	} else {
		zlog.Warnw("redis unavailable, estimates uncached", "err", err)
	}

	sess, err := browser.NewSession(browser.SessionOptions{
		Headless:    cfg.Headless,
		PageTimeout: cfg.PageTimeout,
	}, zlog)
	if err != nil {
		zlog.Fatalw("browser session failed", "err", err)
	}
	defer sess.Close()
	factory := browser.NewFactory(sess, zlog)

	// The review API is an independent channel: when the page itself shows
	// no review count, the paged review feed usually still knows the total.
	probe := &reviewBackfillProbe{
		inner:    factory,
		reviews:  reviews.NewClient(zlog),
		maxPages: cfg.ReviewMaxPages,
	}

	var invalidator snapshot.Invalidator
	if cache != nil {
		invalidator = cache
	}
	tracker := snapshot.NewTracker(store, probe, invalidator, cfg.DelayMin, zlog)
	estSvc := estimate.NewService(store, repo, cache, estimate.Params{
		ConversionRate: cfg.ConversionRate,
		MinStockPairs:  cfg.MinStockPairs,
		MediumBand:     cfg.ConfidenceMedium,
		HighBand:       cfg.ConfidenceHigh,
	}, zlog)

	runPass := func() {
		skus, err := resolveSKUs(ctx, repo, *skusArg, *keyword, *limit)
		if err != nil {
			zlog.Errorw("sku listing failed", "err", err)
			return
		}
		if len(skus) == 0 {
			zlog.Warn("no products to track")
			return
		}
		zlog.Infow("tracking pass started", "products", len(skus))

		tracked := 0
		err = tracker.TrackStock(ctx, skus, func(s model.StockSnapshot) {
			tracked++
			zlog.Debugw("snapshot appended",
				"product_id", s.ProductID,
				"stock", s.StockRemaining,
				"reviews", s.ReviewCount,
			)
		})
		if err != nil {
			zlog.Warnw("tracking pass interrupted", "err", err)
		}
		zlog.Infow("tracking pass finished", "snapshots", tracked)

		recomputeEstimates(ctx, skus, estSvc, repo, cfg.WorkerCount, zlog)
	}

	if *cronSpec == "" {
		runPass()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*cronSpec, runPass); err != nil {
		zlog.Fatalw("invalid cron spec", "spec", *cronSpec, "err", err)
	}
	c.Start()
	zlog.Infow("scheduler started", "spec", *cronSpec)
	<-ctx.Done()
	<-c.Stop().Done()
}

// reviewBackfillProbe fills a missing review reading from the review API.
type reviewBackfillProbe struct {
	inner    snapshot.Probe
	reviews  *reviews.Client
	maxPages int
}

func (p *reviewBackfillProbe) Probe(ctx context.Context, productID string) (*int, *int, error) {
	stock, revs, err := p.inner.Probe(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if revs == nil {
		if sum, err := p.reviews.RecentTimestamps(ctx, productID, p.maxPages); err == nil && sum.Total > 0 {
			revs = model.IntPtr(sum.Total)
		}
	}
	return stock, revs, nil
}

func resolveSKUs(ctx context.Context, repo *repository.ProductRepository, skusArg, keyword string, limit int) ([]string, error) {
	if skusArg != "" {
		parts := strings.Split(skusArg, ",")
		skus := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				skus = append(skus, p)
			}
		}
		return skus, nil
	}
	return repo.ListSKUs(ctx, keyword, limit)
}

// recomputeEstimates refreshes derived sales fields after a pass, fanning the
// products out over a small worker pool.
func recomputeEstimates(ctx context.Context, skus []string, estSvc *estimate.Service, repo *repository.ProductRepository, workers int, zlog *zap.SugaredLogger) {
	if workers <= 0 {
		workers = 5
	}
	jobs := make(chan string, len(skus))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sku := range jobs {
				est, err := estSvc.EstimateSales(ctx, sku)
				if err != nil {
					zlog.Warnw("estimate failed", "sku", sku, "err", err)
					continue
				}
				if err := repo.UpdateSales(ctx, sku, est); err != nil {
					zlog.Warnw("sales update failed", "sku", sku, "err", err)
					continue
				}
				zlog.Debugw("sales updated",
					"sku", sku,
					"weekly", est.Weekly.Sales,
					"monthly", est.Monthly.Sales,
					"method", string(est.Monthly.Method),
					"confidence", string(est.Monthly.Confidence),
				)
			}
		}()
	}
	for _, sku := range skus {
		jobs <- sku
	}
	close(jobs)
	wg.Wait()
}
