package model

import (
	"net/url"
	"strings"
)

// BaseURL is the site root every listing URL is resolved against.
const BaseURL = "https://github.com/"

// SearchType is the kind of result a GitHub search returns.
type SearchType string

// Supported search types. The values are sent verbatim as the "type" query
// parameter of the search page.
const (
	SearchTypeRepositories SearchType = "Repositories"
	SearchTypeIssues       SearchType = "Issues"
	SearchTypeWikis        SearchType = "Wikis"
)

// SearchTypes lists every supported search type in display order.
func SearchTypes() []SearchType {
	return []SearchType{SearchTypeRepositories, SearchTypeIssues, SearchTypeWikis}
}

// ParseSearchType returns the SearchType named by s.
// The match is exact; ok is false for unknown names.
func ParseSearchType(s string) (SearchType, bool) {
	for _, t := range SearchTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// String implements fmt.Stringer.
func (t SearchType) String() string {
	return string(t)
}

// SupportsExtra reports whether listings of this type can be enriched
// with owner and language statistics.
func (t SearchType) SupportsExtra() bool {
	return t == SearchTypeRepositories
}

// Listing is one search result.
type Listing struct {
	// URL is the absolute, fragment-free address of the result.
	URL string `json:"url"`

	// Extra holds enrichment data. It is only set for repository searches
	// run with enrichment enabled, and only when the detail page was fetched
	// and parsed successfully.
	Extra *Extra `json:"extra,omitempty"`
}

// Extra is the data attached to a repository listing by enrichment.
type Extra struct {
	// Owner is the account that owns the repository, or nil when it could
	// not be derived from the URL.
	Owner *string `json:"owner"`

	// LanguageStats maps language name to its share of the code base in percent.
	LanguageStats map[string]float64 `json:"language_stats"`
}

// NewListing creates a Listing with a normalized URL.
func NewListing(rawURL string) Listing {
	return Listing{URL: NormalizeURL(rawURL)}
}

// NormalizeURL resolves rawURL against BaseURL and strips the fragment.
// The result is always absolute and NormalizeURL(NormalizeURL(u)) equals
// NormalizeURL(u). Input that cannot be parsed as a URL reference is
// resolved as an escaped path so the absolute-URL guarantee still holds.
func NormalizeURL(rawURL string) string {
	base, _ := url.Parse(BaseURL) //nolint:errcheck // BaseURL is a constant, valid URL

	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		ref = &url.URL{Path: rawURL}
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

// OwnerFromURL returns the second to last path segment of a repository URL,
// which is the owning account for URLs of the form https://github.com/owner/repo.
// ok is false when the path has fewer than two segments.
func OwnerFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", false
	}
	return parts[len(parts)-2], true
}
