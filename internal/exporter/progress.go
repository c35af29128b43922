// Defines progress reporting interfaces and implementations.

package exporter

import (
	"fmt"
	"io"
	"time"
)

// Failure records one entity that could not be exported, with enough
// context to retry it manually later.
type Failure struct {
	Kind  string `json:"kind"` // "doc", "table", "view", "page", "pages", "tables", "archive", "docs"
	ID    string `json:"id,omitempty"`
	DocID string `json:"docId,omitempty"`
	Err   string `json:"error"`
}

func (f Failure) String() string {
	s := f.Kind
	if f.ID != "" {
		s += " " + f.ID
	}
	if f.DocID != "" {
		s += " (doc " + f.DocID + ")"
	}
	return s + ": " + f.Err
}

// Stats contains statistics about an export run.
type Stats struct {
	Docs     int           `json:"docs"`
	Tables   int           `json:"tables"`
	Views    int           `json:"views"`
	Pages    int           `json:"pages"`
	Rows     int           `json:"rows"`
	Failures []Failure     `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ProgressReporter is the interface for reporting export progress.
type ProgressReporter interface {
	OnStart(total int)
	OnProgress(current int, item string)
	OnWarning(msg string)
	OnError(err error)
	OnComplete(stats Stats)
}

// CLIProgress writes progress to stdout/stderr.
type CLIProgress struct {
	Out io.Writer
	Err io.Writer
}

// OnStart is called when the export begins.
func (p *CLIProgress) OnStart(total int) {
	_, _ = fmt.Fprintf(p.Out, "Found %d docs to export\n\n", total)
}

// OnProgress is called for each doc processed.
func (p *CLIProgress) OnProgress(current int, item string) {
	_, _ = fmt.Fprintf(p.Out, "[%d] %s\n", current, item)
}

// OnWarning is called for non-fatal issues.
func (p *CLIProgress) OnWarning(msg string) {
	_, _ = fmt.Fprintf(p.Err, "Warning: %s\n", msg)
}

// OnError is called for entity-scoped failures.
func (p *CLIProgress) OnError(err error) {
	_, _ = fmt.Fprintf(p.Err, "Error: %v\n", err)
}

// OnComplete is called when the export finishes.
func (p *CLIProgress) OnComplete(stats Stats) {
	_, _ = fmt.Fprintf(p.Out, "\nComplete!\n")
	_, _ = fmt.Fprintf(p.Out, "---------\n")
	_, _ = fmt.Fprintf(p.Out, "Docs:   %d\n", stats.Docs)
	_, _ = fmt.Fprintf(p.Out, "Tables: %d\n", stats.Tables)
	_, _ = fmt.Fprintf(p.Out, "Views:  %d\n", stats.Views)
	_, _ = fmt.Fprintf(p.Out, "Pages:  %d\n", stats.Pages)
	_, _ = fmt.Fprintf(p.Out, "Rows:   %d\n", stats.Rows)
	if len(stats.Failures) > 0 {
		_, _ = fmt.Fprintf(p.Out, "Failed: %d\n", len(stats.Failures))
		for _, f := range stats.Failures {
			_, _ = fmt.Fprintf(p.Out, "  - %s\n", f)
		}
	}
	_, _ = fmt.Fprintf(p.Out, "Duration: %s\n", stats.Duration.Round(time.Second))
}

// NullProgress discards all progress updates.
type NullProgress struct{}

// OnStart is called when the export begins.
func (p *NullProgress) OnStart(total int) {}

// OnProgress is called for each doc processed.
func (p *NullProgress) OnProgress(current int, item string) {}

// OnWarning is called for non-fatal issues.
func (p *NullProgress) OnWarning(msg string) {}

// OnError is called for entity-scoped failures.
func (p *NullProgress) OnError(err error) {}

// OnComplete is called when the export finishes.
func (p *NullProgress) OnComplete(stats Stats) {}
