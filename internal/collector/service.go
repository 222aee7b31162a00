package collector

import (
	"context"

	"go.uber.org/zap"

	"ozonscout/internal/model"
	"ozonscout/internal/observability"
)

// SourceFactory opens the extraction sources for one keyword search. The
// returned closer tears the underlying view down when the task finishes.
type SourceFactory interface {
	OpenSearch(ctx context.Context, keyword string, importOnly bool) (ListSource, DetailSource, func(), error)
}

// Service runs collection tasks and streams their records to a handler,
// one task per keyword over a shared source factory.
type Service struct {
	sources SourceFactory
	opts    Options
	log     *zap.SugaredLogger
}

func NewService(sources SourceFactory, opts Options, log *zap.SugaredLogger) *Service {
	return &Service{sources: sources, opts: opts, log: log}
}

// CollectByKeyword runs one collection task for the keyword and hands every
// merged record to the handler before returning the task report.
func (s *Service) CollectByKeyword(ctx context.Context, keyword string, maxItems int, deep bool, importOnly bool, handler func(model.ProductRecord)) (Result, error) {
	list, detail, closeView, err := s.sources.OpenSearch(ctx, keyword, importOnly)
	if err != nil {
		return Result{Keyword: keyword, Status: StatusAborted}, err
	}
	defer closeView()

	opts := s.opts
	opts.MaxItems = maxItems
	opts.Deep = deep

	res := NewCoordinator(list, detail, opts, s.log).Run(ctx, keyword)
	for _, rec := range res.Records {
		handler(rec)
	}
	return res, nil
}

// IngestBatch accepts partially-populated records from an alternate collector
// and folds duplicates with the same left-biased rule as a live task. Records
// without identity are counted, never silently dropped.
func (s *Service) IngestBatch(batch []model.ProductRecord, handler func(model.ProductRecord)) (accepted, discarded int) {
	merged := make(map[string]model.ProductRecord)
	var order []string
	for _, rec := range batch {
		if rec.SKU == "" {
			discarded++
			observability.ItemsDiscarded.Inc()
			continue
		}
		if existing, ok := merged[rec.SKU]; ok {
			merged[rec.SKU] = model.Merge(existing, rec)
			continue
		}
		merged[rec.SKU] = rec
		order = append(order, rec.SKU)
	}
	for _, sku := range order {
		handler(merged[sku])
		accepted++
		observability.ItemsMerged.Inc()
	}
	if discarded > 0 {
		s.log.Warnw("batch ingestion dropped unidentified records", "discarded", discarded)
	}
	return accepted, discarded
}
