package model

import "github.com/samber/lo"

// ListingDiff is the difference between the listings of two runs, by URL.
type ListingDiff struct {
	// Added holds URLs present only in the newer run, in its order.
	Added []string `json:"added"`

	// Removed holds URLs present only in the older run, in its order.
	Removed []string `json:"removed"`

	// Kept holds URLs present in both runs, in the newer run's order.
	Kept []string `json:"kept"`
}

// Changed reports whether any URL was added or removed.
func (d ListingDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// DiffListings compares the listing URLs of an older and a newer run.
// Enrichment data is ignored.
func DiffListings(older, newer []Listing) ListingDiff {
	oldURLs := lo.Uniq(listingURLs(older))
	newURLs := lo.Uniq(listingURLs(newer))

	removed, added := lo.Difference(oldURLs, newURLs)
	kept := lo.Filter(newURLs, func(u string, _ int) bool {
		return lo.Contains(oldURLs, u)
	})
	return ListingDiff{
		Added:   nonNil(added),
		Removed: nonNil(removed),
		Kept:    nonNil(kept),
	}
}

func listingURLs(listings []Listing) []string {
	return lo.Map(listings, func(l Listing, _ int) string {
		return l.URL
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
