package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"ozonscout/internal/browser"
	"ozonscout/internal/collector"
	"ozonscout/internal/config"
	"ozonscout/internal/db"
	"ozonscout/internal/model"
	"ozonscout/internal/observability"
	"ozonscout/internal/repository"
)

// go run cmd/collector/main.go -keywords="нож кухонный,сковорода" -max=500 -deep
func main() {
	keywordsArg := flag.String("keywords", "", "comma-separated search keywords")
	maxItems := flag.Int("max", 500, "max items per keyword")
	deep := flag.Bool("deep", false, "run the per-item detail phase")
	importOnly := flag.Bool("import-only", false, "restrict search to cross-border listings")
	flag.Parse()

	if *keywordsArg == "" {
		log.Fatal("no keywords given, use -keywords")
	}
	keywords := strings.Split(*keywordsArg, ",")
	for i := range keywords {
		keywords[i] = strings.TrimSpace(keywords[i])
	}

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zlog := logger.Sugar()

	observability.Start(cfg.MetricsPort)

	dbConn, err := db.New(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("database connection failed", "err", err)
	}
	defer dbConn.Close()
	repo := &repository.ProductRepository{DB: dbConn}

	sess, err := browser.NewSession(browser.SessionOptions{
		Headless:    cfg.Headless,
		PageTimeout: cfg.PageTimeout,
	}, zlog)
	if err != nil {
		zlog.Fatalw("browser session failed", "err", err)
	}
	defer sess.Close()
	factory := browser.NewFactory(sess, zlog)

	svc := collector.NewService(factory, collector.Options{
		MaxNoGrowthPasses: cfg.MaxNoGrowthPasses,
		MaxDetailFailures: cfg.MaxDetailFailures,
		DetailRetries:     cfg.NavRetries,
		DelayMin:          cfg.DelayMin,
		DelayMax:          cfg.DelayMax,
	}, zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Saves run outside the task context so records flushed by a cancelled
	// task still reach the database.
	handler := func(p model.ProductRecord) {
		if err := repo.Save(context.Background(), p); err != nil {
			zlog.Errorw("save failed", "sku", p.SKU, "err", err)
		}
	}

	for _, kw := range keywords {
		if ctx.Err() != nil {
			break
		}
		res, err := svc.CollectByKeyword(ctx, kw, *maxItems, *deep, *importOnly, handler)
		if err != nil {
			zlog.Errorw("collection failed", "keyword", kw, "err", err)
			continue
		}
		zlog.Infow("keyword done",
			"keyword", kw,
			"status", string(res.Status),
			"merged", res.Merged,
			"degraded", res.Degraded,
			"discarded", res.Discarded,
			"duration", res.FinishedAt.Sub(res.StartedAt).String(),
		)
	}
}
