// Package report renders crawl results and run history.
//
// This package contains writers for different output formats:
//   - JSONWriter: the listing array printed to stdout and the output file
//   - MarkdownWriter: a Markdown table for sharing results
//   - SimpleWriter: plain text for the terminal
//
// Writers implement the Writer interface and can be combined with
// MultiWriter to send the same result to several destinations.
package report
