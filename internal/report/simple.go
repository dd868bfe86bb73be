package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteListings outputs one line per listing. Enrichment data is indented
// beneath its URL.
func (w *SimpleWriter) WriteListings(listings []model.Listing) (int, error) {
	var sb strings.Builder

	if len(listings) == 0 {
		sb.WriteString("No results.\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, l := range listings {
		sb.WriteString(l.URL)
		sb.WriteString("\n")
		if l.Extra == nil {
			continue
		}
		fmt.Fprintf(&sb, "    owner:     %s\n", ownerText(l.Extra))
		fmt.Fprintf(&sb, "    languages: %s\n", languagesText(l.Extra))
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per run, newest first.
func (w *SimpleWriter) WriteHistory(runs []database.RunSummary) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%-8s  %-23s  %-12s  %-7s  %s\n", "RUN", "STARTED", "TYPE", "RESULTS", "QUERY")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for _, r := range runs {
		fmt.Fprintf(&sb, "%-8s  %-23s  %-12s  %7d  %s\n",
			shortID(r.ID),
			formatTime(r.StartedAt),
			r.SearchType,
			r.ListingCount,
			r.Query,
		)
		if r.Status == model.RunStatusFailed {
			fmt.Fprintf(&sb, "          FAILED: %s\n", r.Error)
		}
		if w.verbose {
			fmt.Fprintf(&sb, "          id: %s\n", r.ID)
			if r.Fingerprint != "" {
				fmt.Fprintf(&sb, "          fingerprint: %s\n", r.Fingerprint)
			}
		}
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// shortID returns the leading part of a run ID, enough to tell runs apart
// in a listing.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
