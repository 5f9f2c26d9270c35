package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/presscan/presscan/internal/model"
)

// fakeFactory builds pipelines whose single step marks the report.
func fakeFactory() PipelineFactory {
	return func(target string) (*Pipeline, error) {
		p := New(WithLogger(discardLogger()))
		p.AddStep(&fakeStep{
			name: "mark",
			do: func(report *model.ScrapeReport) {
				report.Reachable = true
				report.PagesFetched = 1
			},
		})
		return p, nil
	}
}

// TestBatchProcessor_ProcessBatch tests concurrent multi-site runs.
func TestBatchProcessor_ProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns reports in input order", func(t *testing.T) {
		t.Parallel()

		targets := []string{
			"https://alpha.example.com",
			"https://beta.example.com",
			"https://gamma.example.com",
		}

		b := NewBatchProcessor(fakeFactory(),
			WithBatchSize(2),
			WithBatchLogger(discardLogger()),
		)

		reports, err := b.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(targets) {
			t.Fatalf("got %d reports, want %d", len(reports), len(targets))
		}

		wantSites := []string{"alpha.example.com", "beta.example.com", "gamma.example.com"}
		for i, report := range reports {
			if report == nil {
				t.Fatalf("report %d is nil", i)
			}
			if report.Site != wantSites[i] {
				t.Errorf("report %d site = %q, want %q", i, report.Site, wantSites[i])
			}
			if !report.Reachable {
				t.Errorf("report %d was not processed", i)
			}
		}
	})

	t.Run("factory failure is recorded in the report", func(t *testing.T) {
		t.Parallel()

		factoryErr := errors.New("bad proxy")
		factory := func(target string) (*Pipeline, error) {
			return nil, factoryErr
		}

		b := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))
		reports, err := b.ProcessBatch(context.Background(), []string{"https://alpha.example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[0].ErrorMessage != factoryErr.Error() {
			t.Errorf("ErrorMessage = %q", reports[0].ErrorMessage)
		}
	})

	t.Run("one failing site does not abort the batch", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("site blocked")
		factory := func(target string) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			if target == "https://broken.example.com" {
				p.AddStep(&fakeStep{name: "fail", err: stepErr})
			} else {
				p.AddStep(&fakeStep{name: "ok", do: func(r *model.ScrapeReport) { r.Reachable = true }})
			}
			return p, nil
		}

		b := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))
		reports, err := b.ProcessBatch(context.Background(), []string{
			"https://broken.example.com",
			"https://fine.example.com",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports[0].ErrorMessage == "" {
			t.Error("expected failing site's error in its report")
		}
		if !reports[1].Reachable {
			t.Error("expected healthy site to be processed")
		}
	})

	t.Run("respects the concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		factory := func(target string) (*Pipeline, error) {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&fakeStep{
				name: "count",
				do: func(*model.ScrapeReport) {
					n := current.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					current.Add(-1)
				},
			})
			return p, nil
		}

		targets := make([]string, 8)
		for i := range targets {
			targets[i] = "https://site.example.com"
		}

		b := NewBatchProcessor(factory,
			WithBatchSize(2),
			WithBatchLogger(discardLogger()),
		)
		if _, err := b.ProcessBatch(context.Background(), targets); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want at most 2", peak.Load())
		}
	})
}

// TestBatchProcessor_ProcessBatchWithCallback tests per-site callbacks.
func TestBatchProcessor_ProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var sites []string

	b := NewBatchProcessor(fakeFactory(), WithBatchLogger(discardLogger()))
	reports, err := b.ProcessBatchWithCallback(context.Background(),
		[]string{"https://alpha.example.com", "https://beta.example.com"},
		func(report *model.ScrapeReport) {
			mu.Lock()
			sites = append(sites, report.Site)
			mu.Unlock()
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if len(sites) != 2 {
		t.Errorf("callback ran %d times, want 2", len(sites))
	}
}

// TestBatchProcessor_Defaults tests option fallbacks.
func TestBatchProcessor_Defaults(t *testing.T) {
	t.Parallel()

	b := NewBatchProcessor(fakeFactory(), WithBatchSize(-1))
	if b.batchSize != DefaultBatchSize {
		t.Errorf("batchSize = %d, want %d", b.batchSize, DefaultBatchSize)
	}
}
