package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidSearchType is returned when the search type is missing or
	// not one of Repositories, Issues, Wikis.
	ErrInvalidSearchType = errors.New("invalid search type")

	// ErrNoKeywords is returned when no keyword, or an empty keyword, is given.
	ErrNoKeywords = errors.New("no keywords specified")

	// ErrNoProxy is returned when neither a proxy nor the embedded Tor
	// daemon is configured.
	ErrNoProxy = errors.New("no proxy specified: provide --proxies or use --embedded-tor")

	ErrInvalidConcurrency = errors.New("invalid max concurrency: must be positive")
	ErrInvalidMaxRetries  = errors.New("invalid max retries: must be non-negative")
	ErrInvalidTimeout     = errors.New("invalid timeout: must be positive")

	// ErrInvalidBackoff is returned when a backoff duration is not positive
	// or the cap is below the base.
	ErrInvalidBackoff = errors.New("invalid backoff: base and cap must be positive and cap >= base")

	ErrInvalidRate        = errors.New("invalid requests per second: must be non-negative")
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrOutputDirNotFound is returned when the directory of the output
	// file does not exist. It is never created implicitly.
	ErrOutputDirNotFound = errors.New("Output directory does not exist") //nolint:staticcheck // shown verbatim to CLI users
)
