package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	ghlog "github.com/nao1215/ghcrawler/internal/log"
	"github.com/nao1215/ghcrawler/internal/model"
)

// Selectors for GitHub's markup.
const (
	// resultSelector matches the anchor of each search result.
	resultSelector = `div[class*="search-title"] > a[href]`

	// sidebarHeadingSelector matches headings of the repository sidebar.
	// The sidebar's class attribute must be exactly "Layout-sidebar".
	sidebarHeadingSelector = `div[class="Layout-sidebar"] h2`

	// languagesHeading is the sidebar heading above the language list.
	languagesHeading = "Languages"
)

// errEmptyDocument is logged for blank input.
var errEmptyDocument = errors.New("document is empty")

// Parser extracts data from GitHub pages. The zero value is not usable;
// create one with New.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser that reports malformed input to logger.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = ghlog.Discard()
	}
	return &Parser{logger: logger}
}

// ExtractListingURLs returns the normalized absolute URL of every search
// result in document order. It returns an empty slice when nothing matches.
func (p *Parser) ExtractListingURLs(html string) []string {
	urls := []string{}

	doc, err := parseDocument(html)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Error parsing search results: %T: %v", err, err), "error", err)
		return urls
	}

	doc.Find(resultSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		urls = append(urls, model.NormalizeURL(strings.TrimSpace(href)))
	})
	return urls
}

// ExtractLanguageBreakdown returns the language percentages listed in a
// repository page's sidebar. Entries whose percentage cannot be read are
// skipped with a warning.
func (p *Parser) ExtractLanguageBreakdown(html string) map[string]float64 {
	stats := map[string]float64{}

	doc, err := parseDocument(html)
	if err != nil {
		p.logger.Error(fmt.Sprintf("Error parsing language stats: %T: %v", err, err), "error", err)
		return stats
	}

	doc.Find(sidebarHeadingSelector).Each(func(_ int, h2 *goquery.Selection) {
		if !strings.Contains(h2.Text(), languagesHeading) {
			return
		}
		h2.Parent().Find("a").Each(func(_ int, a *goquery.Selection) {
			spans := a.ChildrenFiltered("span")
			if spans.Length() == 0 {
				return
			}
			lang := normalizeSpace(spans.First().Text())
			raw := normalizeSpace(spans.Last().Text())
			if lang == "" || raw == "" {
				return
			}
			pct, err := parsePercentage(raw)
			if err != nil {
				p.logger.Warn(fmt.Sprintf("Could not parse percentage for language '%s': '%s'", lang, raw),
					"language", lang, "value", raw)
				return
			}
			stats[lang] = pct
		})
	})
	return stats
}

func parseDocument(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errEmptyDocument
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// parsePercentage reads values like "99.0%" or "0,4 %".
func parsePercentage(s string) (float64, error) {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// normalizeSpace trims s and collapses inner whitespace runs to one space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
