package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/presscan/presscan/internal/client"
	"github.com/presscan/presscan/internal/database"
	"github.com/presscan/presscan/internal/model"
	"github.com/presscan/presscan/internal/scraper"
)

const stepsListingHTML = `<!DOCTYPE html>
<html><body>
<article>
  <h2 class="entry-title"><a href="/posts/first">First Story</a></h2>
  <time datetime="2024-06-10T08:00:00Z">June 10, 2024</time>
  <span class="tags"><a href="/tag/go">go</a></span>
</article>
<article>
  <h2 class="entry-title"><a href="/posts/second">Second Story</a></h2>
</article>
</body></html>`

const stepsEmptyHTML = `<!DOCTYPE html><html><body><p>Nothing here.</p></body></html>`

// newTestClient builds a client pointed at the test server with the
// bypass transport disabled so no headers leave the process.
func newTestClient(t *testing.T, target string) *client.Client {
	t.Helper()

	c, err := client.New(target,
		client.WithBypass(false),
		client.WithUserAgent("presscan-test/1.0"),
		client.WithRetry(0, time.Millisecond, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

// TestProbeStep_Do tests reachability probing.
func TestProbeStep_Do(t *testing.T) {
	t.Parallel()

	t.Run("marks reachable site", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(stepsListingHTML))
		}))
		defer srv.Close()

		step := NewProbeStep(newTestClient(t, srv.URL), discardLogger())
		report := model.NewScrapeReport(srv.URL)

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Reachable {
			t.Error("expected Reachable to be set")
		}
		if report.ChallengeDetected {
			t.Error("unexpected challenge flag")
		}
	})

	t.Run("detects challenge but stays reachable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Server", "cloudflare")
			w.Header().Set("CF-Ray", "abc123-FRA")
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		step := NewProbeStep(newTestClient(t, srv.URL), discardLogger())
		report := model.NewScrapeReport(srv.URL)

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("challenge should not be a critical error, got: %v", err)
		}
		if !report.Reachable {
			t.Error("expected Reachable to be set on challenge response")
		}
		if !report.ChallengeDetected {
			t.Error("expected ChallengeDetected to be set")
		}
	})

	t.Run("fails on unreachable site", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		target := srv.URL
		srv.Close()

		step := NewProbeStep(newTestClient(t, target), discardLogger())
		report := model.NewScrapeReport(target)

		if err := step.Do(context.Background(), report); err == nil {
			t.Fatal("expected error for unreachable site")
		}
		if report.Reachable {
			t.Error("Reachable should stay false on transport failure")
		}
	})
}

// TestScrapeStep_Do tests pagination and report merging.
func TestScrapeStep_Do(t *testing.T) {
	t.Parallel()

	t.Run("collects articles until empty page", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			if r.URL.Path == "/" {
				_, _ = w.Write([]byte(stepsListingHTML))
				return
			}
			_, _ = w.Write([]byte(stepsEmptyHTML))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		step := NewScrapeStep(c, discardLogger(), scraper.WithDelay(0))

		report := model.NewScrapeReport(srv.URL)
		report.Reachable = true

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(report.Articles) != 2 {
			t.Errorf("got %d articles, want 2", len(report.Articles))
		}
		if report.StopReason != model.StopReasonEmptyPage {
			t.Errorf("StopReason = %q", report.StopReason)
		}
		if report.PagesFetched != 2 {
			t.Errorf("PagesFetched = %d, want 2", report.PagesFetched)
		}
		if report.Elapsed <= 0 {
			t.Error("expected Elapsed to be recorded")
		}
	})

	t.Run("skips when site unreachable", func(t *testing.T) {
		t.Parallel()

		step := NewScrapeStep(nil, discardLogger())
		report := model.NewScrapeReport("news.example.com")

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.PagesFetched != 0 {
			t.Errorf("PagesFetched = %d, want 0", report.PagesFetched)
		}
	})

	t.Run("first page failure is critical", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		step := NewScrapeStep(c, discardLogger())

		report := model.NewScrapeReport(srv.URL)
		report.Reachable = true

		if err := step.Do(context.Background(), report); err == nil {
			t.Fatal("expected error when the first page fails")
		}
		if report.StopReason != model.StopReasonFetchFailed {
			t.Errorf("StopReason = %q", report.StopReason)
		}
	})
}

// TestStoreStep_Do tests persistence of articles and runs.
func TestStoreStep_Do(t *testing.T) {
	t.Parallel()

	t.Run("saves articles and run", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		report := model.NewScrapeReport("news.example.com")
		report.AddArticles([]model.Article{
			{Title: "Saved Story", Link: "https://news.example.com/posts/saved"},
		})

		step := NewStoreStep(db, discardLogger())
		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Summary == nil {
			t.Fatal("expected Summary to be computed before saving")
		}

		count, err := db.CountArticles(context.Background(), "news.example.com")
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("stored %d articles, want 1", count)
		}

		loaded, err := db.GetLatestRun(context.Background(), "news.example.com")
		if err != nil {
			t.Fatalf("load run failed: %v", err)
		}
		if loaded == nil || loaded.Site != "news.example.com" {
			t.Errorf("loaded run = %+v", loaded)
		}
	})

	t.Run("nil database is a no-op", func(t *testing.T) {
		t.Parallel()

		step := NewStoreStep(nil, discardLogger())
		report := model.NewScrapeReport("news.example.com")

		if err := step.Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// TestDefaultPipeline tests end to end execution of the standard steps.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(stepsListingHTML))
			return
		}
		_, _ = w.Write([]byte(stepsEmptyHTML))
	}))
	defer srv.Close()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	c := newTestClient(t, srv.URL)
	p := DefaultPipeline(c, db, DefaultStepsConfig{MaxPages: 5}, discardLogger())

	names := p.StepNames()
	want := []string{"probe", "scrape", "store"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("StepNames[%d] = %q, want %q", i, names[i], name)
		}
	}

	report := model.NewScrapeReport(srv.URL)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Articles) != 2 {
		t.Errorf("got %d articles, want 2", len(report.Articles))
	}
	if len(report.PerformedSteps) != 3 {
		t.Errorf("PerformedSteps = %v", report.PerformedSteps)
	}

	count, err := db.CountArticles(context.Background(), report.Site)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("stored %d articles, want 2", count)
	}
}
