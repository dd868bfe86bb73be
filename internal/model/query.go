package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// JoinKeywords builds a search query: the keywords in NFC form joined by
// single spaces. Visually identical keywords therefore give the same query.
func JoinKeywords(keywords []string) string {
	normalized := make([]string, len(keywords))
	for i, k := range keywords {
		normalized[i] = norm.NFC.String(k)
	}
	return strings.Join(normalized, " ")
}
