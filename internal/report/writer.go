package report

import (
	"io"
	"time"

	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteListings outputs the listings of one crawl run.
	// Returns the number of bytes written and any error encountered.
	WriteListings(listings []model.Listing) (int, error)

	// WriteHistory outputs a list of stored runs.
	WriteHistory(runs []database.RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteListings outputs the listings to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteListings(listings []model.Listing) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteListings(listings)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the runs to all configured Writers.
func (m *MultiWriter) WriteHistory(runs []database.RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeFormat is used for timestamps in human-readable output.
const timeFormat = "2006-01-02 15:04:05 MST"

// formatTime renders t in timeFormat, or "-" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeFormat)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
