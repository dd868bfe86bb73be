package crawler

// ErrorCode identifies why a crawl run failed.
type ErrorCode string

const (
	// ErrSearchFailed means the search page returned no usable body.
	ErrSearchFailed ErrorCode = "SearchFailed"

	// ErrRunPanicked means an unexpected panic escaped the run and was
	// recovered at the top level.
	ErrRunPanicked ErrorCode = "RunPanicked"

	// ErrInterrupted means the context was done before the run finished.
	ErrInterrupted ErrorCode = "Interrupted"

	// ErrAlreadyRun means Run was called on a Crawler that had already run.
	ErrAlreadyRun ErrorCode = "AlreadyRun"
)
