package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/model"
)

// createTestListings creates enriched listings with sample data for testing.
func createTestListings() []model.Listing {
	owner := "encode"
	return []model.Listing{
		{
			URL: "https://github.com/encode/httpx",
			Extra: &model.Extra{
				Owner:         &owner,
				LanguageStats: map[string]float64{"Python": 99.0, "Shell": 0.4, "HTML": 0.3},
			},
		},
		{
			URL:   "https://github.com/search?q=a&type=Repositories",
			Extra: &model.Extra{Owner: nil, LanguageStats: map[string]float64{}},
		},
	}
}

func createTestRuns() []database.RunSummary {
	started := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	return []database.RunSummary{
		{
			ID:           "0b6f3c1e-5d0a-4f55-9d0e-6a1c2b3d4e5f",
			Query:        "python httpx",
			SearchType:   model.SearchTypeRepositories,
			Status:       model.RunStatusDone,
			StartedAt:    started,
			FinishedAt:   started.Add(3 * time.Second),
			ListingCount: 10,
			Fingerprint:  "abc123",
		},
		{
			ID:         "9f8e7d6c-0000-4000-8000-000000000000",
			Query:      "zig",
			SearchType: model.SearchTypeIssues,
			Status:     model.RunStatusFailed,
			StartedAt:  started.Add(-time.Hour),
			Error:      "search failed",
		},
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes listings as array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())
		listings := createTestListings()

		if _, err := w.WriteListings(listings); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []model.Listing
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if diff := cmp.Diff(listings, got); diff != "" {
			t.Errorf("listings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("uses two-space indentation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.WriteListings([]model.Listing{{URL: "https://github.com/a/b"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "[\n  {\n    \"url\": \"https://github.com/a/b\"\n  }\n]\n"
		if diff := cmp.Diff(want, buf.String()); diff != "" {
			t.Errorf("output mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("does not escape ampersand", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteListings(createTestListings()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "q=a&type=Repositories") {
			t.Errorf("expected raw ampersand in output, got %s", buf.String())
		}
	})

	t.Run("writes null owner", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteListings(createTestListings()[1:]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"owner":null`) {
			t.Errorf("expected null owner, got %s", buf.String())
		}
	})

	t.Run("empty listings are an empty array", func(t *testing.T) {
		t.Parallel()

		for _, listings := range [][]model.Listing{nil, {}} {
			var buf bytes.Buffer
			w := NewJSONWriter(&buf, WithPrettyPrint())

			if _, err := w.WriteListings(listings); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := buf.String(); got != "[]\n" {
				t.Errorf("output = %q, want %q", got, "[]\n")
			}
		}
	})

	t.Run("writes history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithIndent("", "\t"))

		if _, err := w.WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d runs, want 2", len(got))
		}
		if got[0]["query"] != "python httpx" {
			t.Errorf("query = %v, want %q", got[0]["query"], "python httpx")
		}
		if got[1]["error"] != "search failed" {
			t.Errorf("error = %v, want %q", got[1]["error"], "search failed")
		}
		if !strings.Contains(buf.String(), "\n\t{") {
			t.Error("expected tab indentation")
		}
	})

	t.Run("returns bytes written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		n, err := w.WriteListings(createTestListings())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("n = %d, want %d", n, buf.Len())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes listing table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteListings(createTestListings()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# GitHub Search Results",
			"https://github.com/encode/httpx",
			"Owner",
			"encode",
			"Python 99.0%",
			"2 result(s)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("includes pie chart for enriched listings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteListings(createTestListings()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "pie") {
			t.Error("expected output to contain mermaid pie chart")
		}
		if !strings.Contains(output, "Primary Languages") {
			t.Error("expected chart title in output")
		}
	})

	t.Run("omits extra columns without enrichment", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteListings([]model.Listing{{URL: "https://github.com/a/b"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "Languages") {
			t.Error("expected no Languages column")
		}
		if strings.Contains(output, "pie") {
			t.Error("expected no pie chart")
		}
	})

	t.Run("notes empty result", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteListings(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!NOTE]") {
			t.Error("expected NOTE alert for empty result")
		}
	})

	t.Run("writes history table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl History",
			"python httpx",
			"Repositories",
			"2026-01-15 10:30:00 UTC",
			"failed: search failed",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteHistory(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!TIP]") {
			t.Error("expected TIP alert for empty history")
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes listings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.WriteListings(createTestListings()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "https://github.com/encode/httpx\n") {
			t.Error("expected URL line")
		}
		if !strings.Contains(output, "owner:     encode") {
			t.Error("expected owner line")
		}
		if !strings.Contains(output, "owner:     -") {
			t.Error("expected placeholder for missing owner")
		}
	})

	t.Run("no results", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.WriteListings(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "No results.\n" {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("writes history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf)

		if _, err := w.WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "0b6f3c1e") {
			t.Error("expected short run id")
		}
		if strings.Contains(output, "0b6f3c1e-5d0a") {
			t.Error("expected full id only in verbose mode")
		}
		if !strings.Contains(output, "FAILED: search failed") {
			t.Error("expected failure line")
		}
	})

	t.Run("verbose history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))

		if _, err := w.WriteHistory(createTestRuns()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "id: 0b6f3c1e-5d0a-4f55-9d0e-6a1c2b3d4e5f") {
			t.Error("expected full id")
		}
		if !strings.Contains(output, "fingerprint: abc123") {
			t.Error("expected fingerprint")
		}
	})
}

type failingWriter struct{}

func (failingWriter) WriteListings([]model.Listing) (int, error) {
	return 0, errors.New("disk full")
}

func (failingWriter) WriteHistory([]database.RunSummary) (int, error) {
	return 0, errors.New("disk full")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var jsonBuf, textBuf bytes.Buffer
		m := NewMultiWriter(NewJSONWriter(&jsonBuf), NewSimpleWriter(&textBuf))

		n, err := m.WriteListings(createTestListings())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != jsonBuf.Len()+textBuf.Len() {
			t.Errorf("n = %d, want %d", n, jsonBuf.Len()+textBuf.Len())
		}
		if jsonBuf.Len() == 0 || textBuf.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf))

		if _, err := m.WriteHistory(createTestRuns()); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"ab", 5, "ab"},
		{"日本語のテキスト", 5, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			result := truncateString(tt.input, tt.maxLen)
			if result != tt.expected {
				t.Errorf("truncateString(%q, %d) = %q, want %q",
					tt.input, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestSortedLanguages(t *testing.T) {
	t.Parallel()

	extra := &model.Extra{LanguageStats: map[string]float64{"C": 10, "Go": 45, "Assembly": 45}}
	got := sortedLanguages(extra)
	want := []languageShare{{"Assembly", 45}, {"Go", 45}, {"C", 10}}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(languageShare{})); diff != "" {
		t.Errorf("sortedLanguages() mismatch (-want +got):\n%s", diff)
	}

	if sortedLanguages(nil) != nil {
		t.Error("sortedLanguages(nil) should be nil")
	}
}
