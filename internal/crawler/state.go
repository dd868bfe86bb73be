package crawler

// State is the lifecycle state of a crawl run.
type State int

const (
	StateIdle State = iota
	StateSearchFetching
	StateParsed
	StateEnrichmentFetching
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearchFetching:
		return "search_fetching"
	case StateParsed:
		return "parsed"
	case StateEnrichmentFetching:
		return "enrichment_fetching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
