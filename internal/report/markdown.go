package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/model"
)

// MarkdownWriter outputs results in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteListings outputs the listings as a Markdown table. When any listing
// carries language statistics, a chart of primary languages follows.
func (w *MarkdownWriter) WriteListings(listings []model.Listing) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("GitHub Search Results")
	md.PlainText("")

	if len(listings) == 0 {
		md.Note("The search returned no results.")
		return len(md.String()), md.Build()
	}

	enriched := hasExtra(listings)
	header := []string{"#", "URL"}
	if enriched {
		header = append(header, "Owner", "Languages")
	}

	rows := make([][]string, len(listings))
	for i, l := range listings {
		row := []string{strconv.Itoa(i + 1), l.URL}
		if enriched {
			row = append(row, ownerText(l.Extra), languagesText(l.Extra))
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")

	if enriched {
		w.writeLanguageChart(md, listings)
	}

	md.PlainTextf("%d result(s)", len(listings))

	return len(md.String()), md.Build()
}

// WriteHistory outputs the runs as a Markdown table.
func (w *MarkdownWriter) WriteHistory(runs []database.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(runs) == 0 {
		md.Tip("No runs recorded yet. Run `ghcrawler search` to start one.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			"`" + r.ID + "`",
			formatTime(r.StartedAt),
			r.Query,
			r.SearchType.String(),
			statusText(r),
			strconv.Itoa(r.ListingCount),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Query", "Type", "Status", "Results"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeLanguageChart writes a mermaid pie chart counting listings by their
// largest language.
func (w *MarkdownWriter) writeLanguageChart(md *markdown.Markdown, listings []model.Listing) {
	counts := primaryLanguageCounts(listings)
	if len(counts) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Primary Languages"),
		piechart.WithShowData(true),
	)
	for _, lang := range slices.Sorted(maps.Keys(counts)) {
		chart.LabelAndIntValue(lang, uint64(counts[lang]))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func hasExtra(listings []model.Listing) bool {
	return slices.ContainsFunc(listings, func(l model.Listing) bool {
		return l.Extra != nil
	})
}

func ownerText(extra *model.Extra) string {
	if extra == nil || extra.Owner == nil {
		return "-"
	}
	return *extra.Owner
}

type languageShare struct {
	name    string
	percent float64
}

// sortedLanguages returns the languages of extra, largest share first.
// Ties are ordered by name so output is stable.
func sortedLanguages(extra *model.Extra) []languageShare {
	if extra == nil {
		return nil
	}
	shares := make([]languageShare, 0, len(extra.LanguageStats))
	for name, pct := range extra.LanguageStats {
		shares = append(shares, languageShare{name: name, percent: pct})
	}
	slices.SortFunc(shares, func(a, b languageShare) int {
		if c := cmp.Compare(b.percent, a.percent); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return shares
}

func languagesText(extra *model.Extra) string {
	shares := sortedLanguages(extra)
	if len(shares) == 0 {
		return "-"
	}
	parts := make([]string, len(shares))
	for i, s := range shares {
		parts[i] = fmt.Sprintf("%s %.1f%%", s.name, s.percent)
	}
	return strings.Join(parts, ", ")
}

func primaryLanguageCounts(listings []model.Listing) map[string]int {
	counts := make(map[string]int)
	for _, l := range listings {
		if shares := sortedLanguages(l.Extra); len(shares) > 0 {
			counts[shares[0].name]++
		}
	}
	return counts
}

func statusText(r database.RunSummary) string {
	if r.Status == model.RunStatusFailed {
		if r.Error != "" {
			return "failed: " + truncateString(r.Error, 40)
		}
		return "failed"
	}
	return string(r.Status)
}
