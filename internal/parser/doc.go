// Package parser extracts listings and repository details from GitHub HTML.
//
// The selectors mirror GitHub's markup: search results are the links inside
// a "search-title" block, and a repository's language breakdown is the list
// of links under the "Languages" heading of the sidebar. Malformed or empty
// input never fails: it is logged and yields an empty result.
package parser
