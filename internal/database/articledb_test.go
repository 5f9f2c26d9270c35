package database

import (
	"context"
	"testing"
	"time"

	"github.com/presscan/presscan/internal/model"
)

// openTestDB creates a database in a temporary directory.
func openTestDB(t *testing.T) *ArticleDB {
	t.Helper()

	adb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := adb.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})
	return adb
}

// TestOpen tests database creation behavior.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database and directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir() + "/nested/data"
		adb, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer adb.Close()

		if adb.Path() == "" {
			t.Error("expected non-empty database path")
		}
	})

	t.Run("refuses missing database without create option", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})
}

// TestArticleDB_SaveArticles tests article persistence and upserts.
func TestArticleDB_SaveArticles(t *testing.T) {
	t.Parallel()

	t.Run("saves and reads back articles", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		articles := []model.Article{
			{
				Title:       "First Story",
				Link:        "https://news.example.com/1",
				PublishedAt: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
				Tags:        []string{"go", "release"},
				Categories:  []string{"Tech"},
			},
			{
				Title: "Undated Story",
				Link:  "https://news.example.com/2",
			},
		}

		saved, err := adb.SaveArticles(ctx, "news.example.com", articles)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if saved != 2 {
			t.Errorf("saved = %d, want 2", saved)
		}

		got, err := adb.ArticlesBySite(ctx, "news.example.com", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 articles, got %d", len(got))
		}

		// Dated article sorts first.
		first := got[0]
		if first.Title != "First Story" {
			t.Errorf("Title = %q", first.Title)
		}
		if !first.PublishedAt.Equal(time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)) {
			t.Errorf("PublishedAt = %v", first.PublishedAt)
		}
		if len(first.Tags) != 2 || first.Tags[0] != "go" {
			t.Errorf("Tags = %v", first.Tags)
		}
		if len(first.Categories) != 1 || first.Categories[0] != "Tech" {
			t.Errorf("Categories = %v", first.Categories)
		}
	})

	t.Run("upsert keeps one row per link", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		article := model.Article{Title: "Original Title", Link: "https://news.example.com/1"}
		if _, err := adb.SaveArticles(ctx, "news.example.com", []model.Article{article}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		article.Title = "Updated Title"
		if _, err := adb.SaveArticles(ctx, "news.example.com", []model.Article{article}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := adb.ArticlesBySite(ctx, "news.example.com", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 article after upsert, got %d", len(got))
		}
		if got[0].Title != "Updated Title" {
			t.Errorf("Title = %q, want updated value", got[0].Title)
		}
	})

	t.Run("skips link-less articles", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		saved, err := adb.SaveArticles(ctx, "news.example.com", []model.Article{
			{Title: "No Link"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if saved != 0 {
			t.Errorf("saved = %d, want 0", saved)
		}
	})

	t.Run("sites are isolated", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		if _, err := adb.SaveArticles(ctx, "a.example.com", []model.Article{
			{Title: "A", Link: "https://a.example.com/1"},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := adb.SaveArticles(ctx, "b.example.com", []model.Article{
			{Title: "B", Link: "https://b.example.com/1"},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		count, err := adb.CountArticles(ctx, "a.example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("CountArticles(a) = %d, want 1", count)
		}
	})

	t.Run("limit bounds the result", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		articles := []model.Article{
			{Title: "1", Link: "https://news.example.com/1"},
			{Title: "2", Link: "https://news.example.com/2"},
			{Title: "3", Link: "https://news.example.com/3"},
		}
		if _, err := adb.SaveArticles(ctx, "news.example.com", articles); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := adb.ArticlesBySite(ctx, "news.example.com", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 articles with limit, got %d", len(got))
		}
	})
}

// TestArticleDB_Runs tests run report storage and history.
func TestArticleDB_Runs(t *testing.T) {
	t.Parallel()

	t.Run("save and load latest run", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		report := model.NewScrapeReport("news.example.com")
		report.PagesFetched = 3
		report.StopReason = model.StopReasonEmptyPage
		report.AddArticles([]model.Article{
			{Title: "Story", Link: "https://news.example.com/1"},
		})
		report.Summary = model.NewSummary(report)

		if err := adb.SaveRun(ctx, report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := adb.GetLatestRun(ctx, "news.example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected a stored run")
		}
		if got.PagesFetched != 3 {
			t.Errorf("PagesFetched = %d, want 3", got.PagesFetched)
		}
		if got.StopReason != model.StopReasonEmptyPage {
			t.Errorf("StopReason = %q", got.StopReason)
		}
		if len(got.Articles) != 1 {
			t.Errorf("expected 1 article, got %d", len(got.Articles))
		}
	})

	t.Run("latest run for unknown site is nil", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)

		got, err := adb.GetLatestRun(context.Background(), "unknown.example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil report, got %+v", got)
		}
	})

	t.Run("history lists runs newest first with summaries", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			report := model.NewScrapeReport("news.example.com")
			report.PagesFetched = i + 1
			report.Summary = model.NewSummary(report)
			if err := adb.SaveRun(ctx, report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		history, err := adb.GetRunHistory(ctx, "news.example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(history))
		}
		if history[0].Summary == nil {
			t.Error("expected summary on history entry")
		}
		if history[0].Summary.PagesFetched != 2 {
			t.Errorf("newest run PagesFetched = %d, want 2", history[0].Summary.PagesFetched)
		}

		full, err := adb.GetRunByID(ctx, history[1].ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if full == nil || full.PagesFetched != 1 {
			t.Errorf("GetRunByID = %+v, want oldest run", full)
		}
	})

	t.Run("list sites", func(t *testing.T) {
		t.Parallel()

		adb := openTestDB(t)
		ctx := context.Background()

		for _, site := range []string{"b.example.com", "a.example.com"} {
			report := model.NewScrapeReport(site)
			if err := adb.SaveRun(ctx, report); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		sites, err := adb.ListSites(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sites) != 2 || sites[0] != "a.example.com" || sites[1] != "b.example.com" {
			t.Errorf("ListSites = %v, want sorted sites", sites)
		}
	})
}

// TestParseTimestamp tests multi-format timestamp parsing.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "sqlite default format",
			input: "2024-06-10 08:30:00",
			want:  time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "iso 8601 with Z",
			input: "2024-06-10T08:30:00Z",
			want:  time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "unparseable returns zero",
			input: "not a timestamp",
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
