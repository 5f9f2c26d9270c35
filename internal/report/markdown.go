package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/presscan/presscan/internal/model"
)

// maxTitleLength bounds headline length in markdown tables so one long
// headline does not blow up the table layout.
const maxTitleLength = 80

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScrapeReport) (int, error) {
	summary := report.Summary
	if summary == nil {
		summary = model.NewSummary(report)
	}

	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummaryTable(md, summary)
	w.writeArticles(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the run summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("presscan Summary")
	md.PlainText("")
	w.writeSummaryTable(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H1("presscan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site + "`"},
			{"Start URL", report.StartURL},
			{"Scrape Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Pages Fetched", strconv.Itoa(report.PagesFetched)},
			{"Status", statusMarkdown(report)},
		},
	})
	md.PlainText("")

	if report.ChallengeDetected {
		md.Warningf("A bot-protection challenge was encountered during this run. Results may be partial.")
		md.PlainText("")
	}
}

// statusMarkdown returns the status cell text based on report state.
func statusMarkdown(report *model.ScrapeReport) string {
	if report.TimedOut {
		return "⚠️ Cancelled (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeSummaryTable writes the summary counts section.
func (w *MarkdownWriter) writeSummaryTable(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{"Articles", strconv.Itoa(summary.ArticleCount)},
		{"Pages Fetched", strconv.Itoa(summary.PagesFetched)},
		{"Pages Failed", strconv.Itoa(summary.PagesFailed)},
		{"Unique Tags", strconv.Itoa(summary.TagCount)},
		{"Unique Categories", strconv.Itoa(summary.CategoryCount)},
	}
	if !summary.Oldest.IsZero() {
		rows = append(rows, []string{
			"Date Range",
			summary.Oldest.Format("2006-01-02") + " to " + summary.Newest.Format("2006-01-02"),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeArticles writes the extracted article table.
func (w *MarkdownWriter) writeArticles(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H2("Articles")
	md.PlainText("")

	if len(report.Articles) == 0 {
		md.PlainText("No articles extracted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Articles))
	for _, article := range report.Articles {
		date := "-"
		if article.HasDate() {
			date = article.PublishedAt.Format("2006-01-02")
		}
		title := truncate(article.Title, maxTitleLength)
		if title == "" {
			title = "(untitled)"
		}
		if article.Link != "" {
			title = "[" + title + "](" + article.Link + ")"
		}
		rows = append(rows, []string{
			date,
			title,
			strings.Join(article.Tags, ", "),
			strings.Join(article.Categories, ", "),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Date", "Title", "Tags", "Categories"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("Generated by presscan")
}

// truncate shortens a string to max runes, appending an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
