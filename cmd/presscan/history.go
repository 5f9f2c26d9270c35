package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/presscan/presscan/internal/config"
	"github.com/presscan/presscan/internal/database"
	"github.com/presscan/presscan/internal/model"
	"github.com/presscan/presscan/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "Show stored scrape runs from the local database",
		Long: `History lists past scrape runs saved in the local article database.

Without arguments it lists all sites that have stored runs. With a site
argument it lists that site's runs, newest first. Individual runs can be
printed in full with --run.

Examples:
  # List all sites with stored runs
  presscan history

  # List runs for one site
  presscan history news.example.com

  # Show the latest stored report for a site
  presscan history --latest news.example.com

  # Show one stored run by its ID
  presscan history --run 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("latest", false,
		"Print the full latest report for the given site")
	cmd.Flags().Int64("run", 0,
		"Print the full report for the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Print full reports as JSON instead of plain text")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: the XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	// History only reads; a missing database means there is no history.
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("no stored runs found (database: %s): %w", dbDir, err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	if runID > 0 {
		return printRunByID(ctx, cmd, db, runID)
	}

	if len(args) == 0 {
		return printSites(ctx, cmd, db)
	}

	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	if latest {
		return printLatestRun(ctx, cmd, db, args[0])
	}
	return printRunHistory(ctx, cmd, db, args[0])
}

// printSites lists all sites with stored runs.
func printSites(ctx context.Context, cmd *cobra.Command, db *database.ArticleDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if len(sites) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
		return nil
	}

	for _, site := range sites {
		count, err := db.CountArticles(ctx, site)
		if err != nil {
			return fmt.Errorf("failed to count articles for %s: %w", site, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d articles\n", site, count)
	}
	return nil
}

// printRunHistory lists a site's runs, newest first.
func printRunHistory(ctx context.Context, cmd *cobra.Command, db *database.ArticleDB, site string) error {
	runs, err := db.GetRunHistory(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored runs for %s.\n", site)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-20s %-10s %-8s\n", "ID", "Date", "Articles", "Pages")
	for _, run := range runs {
		articles, pages := "-", "-"
		if run.Summary != nil {
			articles = strconv.Itoa(run.Summary.ArticleCount)
			pages = strconv.Itoa(run.Summary.PagesFetched)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-20s %-10s %-8s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			articles,
			pages,
		)
	}
	return nil
}

// printLatestRun prints the full latest report for a site.
func printLatestRun(ctx context.Context, cmd *cobra.Command, db *database.ArticleDB, site string) error {
	r, err := db.GetLatestRun(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to load latest run: %w", err)
	}
	if r == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored runs for %s.\n", site)
		return nil
	}
	return printStoredReport(cmd, r)
}

// printRunByID prints one stored run in full.
func printRunByID(ctx context.Context, cmd *cobra.Command, db *database.ArticleDB, id int64) error {
	r, err := db.GetRunByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", id, err)
	}
	if r == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored run with ID %d.\n", id)
		return nil
	}
	return printStoredReport(cmd, r)
}

// printStoredReport writes a stored report in the requested format.
func printStoredReport(cmd *cobra.Command, r *model.ScrapeReport) error {
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	var w report.Writer
	if asJSON {
		w = report.NewJSONWriter(cmd.OutOrStdout())
	} else {
		w = report.NewSimpleWriter(cmd.OutOrStdout())
	}
	_, err = w.Write(r)
	return err
}
