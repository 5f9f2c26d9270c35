package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/presscan/presscan/internal/model"
)

// SimpleWriter outputs human-readable plain-text reports.
// This is the default format for terminal output.
//
// Design decision: We use plain text with ASCII formatting rather than
// colors or box drawing so the output stays readable in logs and when
// piped to other tools.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in plain text.
func (w *SimpleWriter) Write(report *model.ScrapeReport) (int, error) {
	var b strings.Builder

	b.WriteString(separator())
	fmt.Fprintf(&b, "presscan report for %s\n", report.Site)
	b.WriteString(separator())
	fmt.Fprintf(&b, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(&b, "Date:           %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))
	if report.Elapsed > 0 {
		fmt.Fprintf(&b, "Elapsed:        %s\n", report.Elapsed.Round(10*time.Millisecond))
	}
	fmt.Fprintf(&b, "Pages fetched:  %d\n", report.PagesFetched)
	if report.PagesFailed > 0 {
		fmt.Fprintf(&b, "Pages failed:   %d\n", report.PagesFailed)
	}
	if report.StopReason != "" {
		fmt.Fprintf(&b, "Stopped:        %s\n", stopReasonText(report.StopReason))
	}
	fmt.Fprintf(&b, "Status:         %s\n", statusText(report))
	b.WriteString("\n")

	if len(report.Articles) == 0 {
		b.WriteString("No articles extracted.\n")
	} else {
		fmt.Fprintf(&b, "Articles (%d):\n\n", len(report.Articles))
		for i, article := range report.Articles {
			fmt.Fprintf(&b, "%3d. %s\n", i+1, titleOrLink(article))
			if article.HasDate() {
				fmt.Fprintf(&b, "     date: %s\n", article.PublishedAt.Format("2006-01-02"))
			}
			if article.Link != "" && article.Title != "" {
				fmt.Fprintf(&b, "     link: %s\n", article.Link)
			}
			if len(article.Tags) > 0 {
				fmt.Fprintf(&b, "     tags: %s\n", strings.Join(article.Tags, ", "))
			}
			if len(article.Categories) > 0 {
				fmt.Fprintf(&b, "     categories: %s\n", strings.Join(article.Categories, ", "))
			}
		}
	}

	b.WriteString(separator())
	return io.WriteString(w.output, b.String())
}

// WriteSummary outputs only the run summary in plain text.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var b strings.Builder

	b.WriteString(separator())
	fmt.Fprintf(&b, "presscan summary for %s\n", summary.Site)
	b.WriteString(separator())
	fmt.Fprintf(&b, "Date:           %s\n", summary.DateScanned.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Articles:       %d\n", summary.ArticleCount)
	fmt.Fprintf(&b, "Pages fetched:  %d\n", summary.PagesFetched)
	if summary.PagesFailed > 0 {
		fmt.Fprintf(&b, "Pages failed:   %d\n", summary.PagesFailed)
	}
	fmt.Fprintf(&b, "Unique tags:    %d\n", summary.TagCount)
	fmt.Fprintf(&b, "Categories:     %d\n", summary.CategoryCount)
	if !summary.Oldest.IsZero() {
		fmt.Fprintf(&b, "Date range:     %s to %s\n",
			summary.Oldest.Format("2006-01-02"), summary.Newest.Format("2006-01-02"))
	}
	if summary.ChallengeDetected {
		b.WriteString("Note:           bot-protection challenge encountered during run\n")
	}
	if summary.Error != "" {
		fmt.Fprintf(&b, "Error:          %s\n", summary.Error)
	}
	b.WriteString(separator())

	return io.WriteString(w.output, b.String())
}

// statusText describes the overall run outcome.
func statusText(report *model.ScrapeReport) string {
	switch {
	case report.TimedOut:
		return "cancelled (partial results)"
	case report.ErrorMessage != "":
		return "error - " + report.ErrorMessage
	case report.ChallengeDetected:
		return "complete (challenge encountered)"
	default:
		return "complete"
	}
}

// stopReasonText renders a stop reason for humans.
func stopReasonText(reason model.StopReason) string {
	switch reason {
	case model.StopReasonEmptyPage:
		return "no more articles"
	case model.StopReasonFetchFailed:
		return "page fetch failed"
	case model.StopReasonMaxPages:
		return "page limit reached"
	case model.StopReasonCancelled:
		return "cancelled"
	default:
		return string(reason)
	}
}

// titleOrLink returns the best display name for an article.
func titleOrLink(article model.Article) string {
	if article.Title != "" {
		return article.Title
	}
	return article.Link
}

func separator() string {
	return strings.Repeat("=", 60) + "\n"
}
