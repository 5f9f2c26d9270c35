package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/presscan/presscan/internal/model"
)

// DefaultBatchSize is the default number of sites scraped concurrently.
const DefaultBatchSize = 4

// PipelineFactory builds a pipeline for one target URL.
//
// Design decision: The batch processor takes a factory rather than a
// shared pipeline because each site needs its own HTTP client: the
// client pins redirects to one host and carries that site's cookie jar,
// so sharing one across targets would leak session state between sites.
type PipelineFactory func(target string) (*Pipeline, error)

// BatchProcessor scrapes multiple sites concurrently with a bounded
// number of workers.
type BatchProcessor struct {
	factory   PipelineFactory
	batchSize int
	logger    *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchSize sets the number of sites processed concurrently.
// Values below one fall back to the default.
func WithBatchSize(size int) BatchOption {
	return func(b *BatchProcessor) {
		if size > 0 {
			b.batchSize = size
		}
	}
}

// WithBatchLogger sets a custom logger for the batch processor.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// NewBatchProcessor creates a BatchProcessor that builds one pipeline
// per target via the factory.
func NewBatchProcessor(factory PipelineFactory, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		factory:   factory,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// ProcessBatch scrapes all targets and returns one report per target,
// in input order.
//
// Design decision: Errors from individual sites are recorded in their
// reports rather than aborting the batch, because one blocked or
// unreachable site should not discard the results of the others. The
// returned error is non-nil only when the whole batch is cancelled.
func (b *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.ScrapeReport, error) {
	return b.process(ctx, targets, nil)
}

// ProcessBatchWithCallback scrapes all targets, invoking callback as
// each site finishes. The callback runs from worker goroutines and must
// be safe for concurrent use.
func (b *BatchProcessor) ProcessBatchWithCallback(ctx context.Context, targets []string, callback func(*model.ScrapeReport)) ([]*model.ScrapeReport, error) {
	return b.process(ctx, targets, callback)
}

func (b *BatchProcessor) process(ctx context.Context, targets []string, callback func(*model.ScrapeReport)) ([]*model.ScrapeReport, error) {
	reports := make([]*model.ScrapeReport, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.batchSize)

	b.logger.Info("starting batch scrape",
		"targets", len(targets),
		"workers", b.batchSize,
	)

	for i, target := range targets {
		g.Go(func() error {
			report := b.processOne(ctx, target)
			reports[i] = report
			if callback != nil {
				callback(report)
			}
			return nil
		})
	}

	err := g.Wait()

	b.logger.Info("batch scrape finished", "targets", len(targets))
	return reports, err
}

// processOne runs one site's pipeline and returns its report.
// Failures are recorded in the report, never returned.
func (b *BatchProcessor) processOne(ctx context.Context, target string) *model.ScrapeReport {
	report := model.NewScrapeReport(target)

	p, err := b.factory(target)
	if err != nil {
		b.logger.Error("failed to build pipeline",
			"site", report.Site,
			"error", err,
		)
		report.Error = err
		report.ErrorMessage = err.Error()
		return report
	}

	if err := p.Execute(ctx, report); err != nil {
		// Execute already recorded the error in the report.
		b.logger.Warn("site scrape failed",
			"site", report.Site,
			"error", err,
		)
	}
	return report
}
