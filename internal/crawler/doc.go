// Package crawler runs one GitHub search crawl.
//
// # Run
//
// A Crawler is built for a single query and executes exactly once:
//
//	Idle -> SearchFetching -> Parsed -> EnrichmentFetching -> Done
//	                      \-> Failed
//
// The search page is fetched and parsed before any enrichment fetch starts.
// Enrichment fetches run concurrently, one per listing, and share the
// fetcher's permit pool with everything else in the run.
//
// # Errors
//
// Only run-level failures are returned, as failure codes: the search page
// could not be fetched (ErrSearchFailed), the context was done
// (ErrInterrupted) or the run panicked (ErrRunPanicked). A listing whose detail page cannot be fetched or parsed
// is logged and returned without extra data; it never fails the run.
//
// # Resources
//
// The Crawler owns the HTTP client handed to it and closes it exactly once,
// after every fetch of the run has settled, on every exit path.
//
// # Usage
//
//	c := crawler.New(crawler.Params{
//		Keywords:   []string{"openstack", "nova"},
//		SearchType: model.SearchTypeRepositories,
//		Proxy:      proxyURL,
//		WithExtra:  true,
//	}, fetcher, client, crawler.WithLogger(logger))
//	listings, err := c.Run(ctx)
package crawler
