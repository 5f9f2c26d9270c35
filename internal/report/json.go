package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/presscan/presscan/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for machine consumption and piping into jq.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because report serialization is not performance-critical
// and the standard library output is stable across versions.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output. Defaults to true for
	// human inspection; disable for compact machine output.
	indent bool
}

// NewJSONWriter creates a JSONWriter that outputs indented JSON.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{
		baseWriter: newBaseWriter(output),
		indent:     true,
	}
}

// NewCompactJSONWriter creates a JSONWriter that outputs compact JSON.
func NewCompactJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report as JSON.
func (w *JSONWriter) Write(report *model.ScrapeReport) (int, error) {
	return w.writeJSON(report)
}

// WriteSummary outputs only the summary as JSON.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.writeJSON(summary)
}

// writeJSON marshals any value with the configured indentation.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// FullJSONReport wraps a scrape report with generator metadata.
//
// Design decision: We wrap the report rather than modifying ScrapeReport
// so the stored report format stays independent of the output envelope.
type FullJSONReport struct {
	// Generator identifies the producing tool.
	Generator string `json:"generator"`

	// Version is the tool version that produced the report.
	Version string `json:"version"`

	// GeneratedAt is when the envelope was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Report is the scrape report itself.
	Report *model.ScrapeReport `json:"report"`
}

// FullJSONWriter outputs reports wrapped in a metadata envelope.
type FullJSONWriter struct {
	inner   *JSONWriter
	version string
}

// NewFullJSONWriter creates a FullJSONWriter with the given tool version.
func NewFullJSONWriter(output io.Writer, version string) *FullJSONWriter {
	return &FullJSONWriter{
		inner:   NewJSONWriter(output),
		version: version,
	}
}

// Write outputs the report wrapped in the metadata envelope.
func (w *FullJSONWriter) Write(report *model.ScrapeReport) (int, error) {
	envelope := FullJSONReport{
		Generator:   "presscan",
		Version:     w.version,
		GeneratedAt: time.Now(),
		Report:      report,
	}
	return w.inner.writeJSON(envelope)
}

// WriteSummary outputs only the summary as JSON, without the envelope.
func (w *FullJSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.inner.WriteSummary(summary)
}
