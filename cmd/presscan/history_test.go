package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/presscan/presscan/internal/database"
	"github.com/presscan/presscan/internal/model"
)

// discardTestLogger returns a logger that drops everything.
func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "history [site]" {
			t.Errorf("expected use 'history [site]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"latest", "run", "json", "db-dir"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// seedHistoryDB stores one run so history commands have data to read.
func seedHistoryDB(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	report := model.NewScrapeReport("news.example.com")
	report.PagesFetched = 2
	report.AddArticles([]model.Article{
		{Title: "Stored Story", Link: "https://news.example.com/posts/stored"},
	})

	if _, err := db.SaveArticles(context.Background(), report.Site, report.Articles); err != nil {
		t.Fatalf("failed to save articles: %v", err)
	}
	if err := db.SaveRun(context.Background(), report); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	return dir
}

// TestRunHistoryCmd tests the history command end to end.
func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists sites without arguments", func(t *testing.T) {
		t.Parallel()

		dir := seedHistoryDB(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "news.example.com") {
			t.Errorf("output missing site:\n%s", buf.String())
		}
	})

	t.Run("lists runs for a site", func(t *testing.T) {
		t.Parallel()

		dir := seedHistoryDB(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "news.example.com"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "ID") {
			t.Errorf("output missing header:\n%s", output)
		}
		if !strings.Contains(output, "1") {
			t.Errorf("output missing run row:\n%s", output)
		}
	})

	t.Run("prints latest report for a site", func(t *testing.T) {
		t.Parallel()

		dir := seedHistoryDB(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "--latest", "news.example.com"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Stored Story") {
			t.Errorf("output missing stored article:\n%s", buf.String())
		}
	})

	t.Run("prints run by id as JSON", func(t *testing.T) {
		t.Parallel()

		dir := seedHistoryDB(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "--run", "1", "--json"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"site"`) {
			t.Errorf("output is not JSON:\n%s", buf.String())
		}
	})

	t.Run("reports unknown site", func(t *testing.T) {
		t.Parallel()

		dir := seedHistoryDB(t)

		cmd := NewHistoryCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--db-dir", dir, "unknown.example.com"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No stored runs") {
			t.Errorf("expected empty notice:\n%s", buf.String())
		}
	})

	t.Run("errors when database is missing", func(t *testing.T) {
		t.Parallel()

		cmd := NewHistoryCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--db-dir", t.TempDir()})

		if err := cmd.Execute(); err == nil {
			t.Fatal("expected error for missing database")
		}
	})
}
