package model

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// RunStatus is the terminal state of a crawl run.
type RunStatus string

const (
	// RunStatusDone means the search page was fetched and parsed.
	// Individual listings may still lack enrichment data.
	RunStatusDone RunStatus = "done"

	// RunStatusFailed means the run produced no result.
	RunStatusFailed RunStatus = "failed"
)

// Run records one crawl run: what was asked for and what came back.
type Run struct {
	// ID uniquely identifies the run. It is also attached to every log
	// record emitted while the run is in progress.
	ID string `json:"id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Keywords   []string   `json:"keywords"`
	SearchType SearchType `json:"search_type"`

	// Proxy is the proxy the run went through, with any credentials removed.
	Proxy string `json:"proxy"`

	WithExtra bool      `json:"with_extra"`
	Status    RunStatus `json:"status"`
	Listings  []Listing `json:"listings"`

	// Error is the failure message of a failed run.
	Error string `json:"error,omitempty"`
}

// NewRun creates a Run with a fresh ID and StartedAt set to now.
func NewRun(keywords []string, searchType SearchType, proxy string, withExtra bool) *Run {
	return &Run{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		Keywords:   keywords,
		SearchType: searchType,
		Proxy:      proxy,
		WithExtra:  withExtra,
		Listings:   make([]Listing, 0),
	}
}

// Query returns the search query the run sent. See JoinKeywords.
func (r *Run) Query() string {
	return JoinKeywords(r.Keywords)
}

// Finish marks the run as done with the given listings.
func (r *Run) Finish(listings []Listing) {
	r.FinishedAt = time.Now().UTC()
	r.Status = RunStatusDone
	r.Listings = listings
}

// Fail marks the run as failed.
func (r *Run) Fail(err error) {
	r.FinishedAt = time.Now().UTC()
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Fingerprint returns the hex SHA3-256 digest of the run's listings in JSON
// form. Two runs with the same results in the same order share a fingerprint.
// Failed runs and runs without listings have an empty fingerprint.
func (r *Run) Fingerprint() string {
	if r.Status != RunStatusDone || len(r.Listings) == 0 {
		return ""
	}

	data, err := json.Marshal(r.Listings)
	if err != nil {
		return ""
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
