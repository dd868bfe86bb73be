// Package model defines the data structures shared by the crawler, the
// parser and the report writers.
//
// The main types are:
//   - Listing: one search result, optionally enriched with Extra
//   - SearchType: the kind of GitHub search being crawled
//   - Run: the record of one crawl run as stored in the history database
//
// Listing and Extra serialize to the JSON shape printed by the CLI:
//
//	[
//	  {
//	    "url": "https://github.com/owner/repo",
//	    "extra": {"owner": "owner", "language_stats": {"Go": 98.5}}
//	  }
//	]
package model
