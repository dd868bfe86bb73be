package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	ghlog "github.com/nao1215/ghcrawler/internal/log"
)

// Defaults used when no option overrides them.
const (
	DefaultMaxRetries  = 5
	DefaultMaxBodySize = 10 * 1024 * 1024
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 20 * time.Second
)

// retryableStatus is the set of statuses worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Doer sends an HTTP request. *http.Client and *proxy.Client implement it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Stats counts the work done by a Fetcher.
type Stats struct {
	// Fetches is the number of Fetch calls.
	Fetches int64
	// Attempts is the number of network calls, retries included.
	Attempts int64
	// Retries is the number of attempts that were followed by another one.
	Retries int64
	// Failures is the number of Fetch calls that returned absence.
	Failures int64
}

// Fetcher performs resilient GET requests. It is safe for concurrent use;
// all requests share its Limiter.
type Fetcher struct {
	// client sends the requests. Its timeout bounds every attempt.
	client Doer

	// limiter bounds the attempts in flight. A permit is held for the
	// network call only, never during a backoff sleep.
	limiter *Limiter

	// backoff computes the delay before each retry.
	backoff Backoff

	// maxRetries is the number of retries after the first attempt.
	maxRetries int

	// maxBodySize limits how many bytes of a body are read.
	maxBodySize int64

	// pacer spaces attempt starts when a request rate is set; nil
	// disables pacing.
	pacer *rate.Limiter

	logger *slog.Logger

	// sleep waits between attempts. Tests replace it.
	sleep func(ctx context.Context, d time.Duration) error

	// Counters behind Stats.
	fetches  atomic.Int64
	attempts atomic.Int64
	retries  atomic.Int64
	failures atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithBackoff sets the retry delay calculator.
func WithBackoff(b Backoff) Option {
	return func(f *Fetcher) {
		f.backoff = b
	}
}

// WithLimiter shares an existing Limiter with the Fetcher.
func WithLimiter(l *Limiter) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.limiter = l
		}
	}
}

// WithRateLimit paces attempt starts to rps per second. Zero or less
// disables pacing.
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.pacer = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			f.pacer = nil
		}
	}
}

// WithMaxBodySize limits how many bytes of a body are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger for retry and failure reports.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher sending requests through client.
func New(client Doer, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		limiter:     NewLimiter(1),
		backoff:     NewBackoff(defaultBackoffBase, defaultBackoffCap),
		maxRetries:  DefaultMaxRetries,
		maxBodySize: DefaultMaxBodySize,
		logger:      ghlog.Discard(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limiter returns the permit pool used by the Fetcher.
func (f *Fetcher) Limiter() *Limiter {
	return f.limiter
}

// Stats returns a snapshot of the counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Fetches:  f.fetches.Load(),
		Attempts: f.attempts.Load(),
		Retries:  f.retries.Load(),
		Failures: f.failures.Load(),
	}
}

// Fetch resolves req with up to maxRetries+1 attempts. It returns nil when
// no usable response was obtained; the reason is logged.
func (f *Fetcher) Fetch(ctx context.Context, req Request) *Response {
	f.fetches.Add(1)
	resp := f.fetch(ctx, req)
	if resp == nil {
		f.failures.Add(1)
	}
	return resp
}

func (f *Fetcher) fetch(ctx context.Context, req Request) *Response {
	target := req.Target()
	attempts := f.maxRetries + 1

	for attempt := range attempts {
		res := f.attempt(ctx, target)

		switch res.kind {
		case attemptSuccess:
			return res.resp

		case attemptPermanent:
			f.logger.Error(fmt.Sprintf("HTTP %d for %s - not retrying", res.status, target),
				"url", target, "status_code", res.status)
			return nil

		case attemptUnexpected:
			f.logger.Error(fmt.Sprintf("Unexpected error for %s: %v", target, res.err),
				"url", target, "error", res.err)
			return nil

		case attemptRetryable:
			if attempt == attempts-1 {
				f.logExhausted(target, attempts, res)
				return nil
			}

			delay := f.backoff.Delay(attempt)
			f.logRetry(target, attempt, delay, res)
			f.retries.Add(1)

			if err := f.sleep(ctx, delay); err != nil {
				f.logger.Error(fmt.Sprintf("Unexpected error for %s: %v", target, err),
					"url", target, "error", err)
				return nil
			}
		}
	}
	return nil
}

func (f *Fetcher) logRetry(target string, attempt int, delay time.Duration, res attemptResult) {
	if res.status != 0 {
		f.logger.Warn(fmt.Sprintf("HTTP %d for %s. Retrying in %.2fs", res.status, target, delay.Seconds()),
			"url", target, "status_code", res.status, "attempt", attempt+1, "delay", delay)
		return
	}
	f.logger.Warn(fmt.Sprintf("Request failed for %s: %T %v. Retrying in %.2fs", target, res.err, res.err, delay.Seconds()),
		"url", target, "error", res.err, "attempt", attempt+1, "delay", delay)
}

func (f *Fetcher) logExhausted(target string, attempts int, res attemptResult) {
	if res.status != 0 {
		f.logger.Error(fmt.Sprintf("HTTP %d for %s after %d attempts", res.status, target, attempts),
			"url", target, "status_code", res.status, "attempts", attempts)
		return
	}
	f.logger.Error(fmt.Sprintf("Failed to fetch %s after %d attempts: %v", target, attempts, res.err),
		"url", target, "error", res.err, "attempts", attempts)
}

// attemptKind tags the outcome of a single network call.
type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptRetryable
	attemptPermanent
	attemptUnexpected
)

// attemptResult is the classified outcome of one attempt. status is set
// whenever a response was received; err is set for failed calls.
type attemptResult struct {
	kind   attemptKind
	resp   *Response
	status int
	err    error
}

// attempt performs one network call while holding a limiter permit.
func (f *Fetcher) attempt(ctx context.Context, target string) (res attemptResult) {
	defer func() {
		if r := recover(); r != nil {
			res = attemptResult{kind: attemptUnexpected, err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			return attemptResult{kind: attemptUnexpected, err: err}
		}
	}

	err := f.limiter.Do(ctx, func() error {
		f.attempts.Add(1)
		res = f.roundTrip(ctx, target)
		return nil
	})
	if err != nil {
		return attemptResult{kind: attemptUnexpected, err: err}
	}
	return res
}

func (f *Fetcher) roundTrip(ctx context.Context, target string) attemptResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return attemptResult{kind: attemptUnexpected, err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return classifyError(ctx, err)
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	switch {
	case retryableStatus[status]:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodySize)) //nolint:errcheck // drain for connection reuse
		return attemptResult{kind: attemptRetryable, status: status}
	case status < 200 || status >= 400:
		return attemptResult{kind: attemptPermanent, status: status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return attemptResult{kind: attemptUnexpected, err: err}
		}
		return attemptResult{kind: attemptRetryable, err: fmt.Errorf("failed to read body: %w", err)}
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return attemptResult{
		kind:   attemptSuccess,
		status: status,
		resp: &Response{
			StatusCode: status,
			Body:       string(body),
			URL:        finalURL,
		},
	}
}

// classifyError sorts a failed call into retryable or unexpected.
// A done ctx always counts as unexpected: the caller gave up.
func classifyError(ctx context.Context, err error) attemptResult {
	if ctx.Err() != nil {
		return attemptResult{kind: attemptUnexpected, err: err}
	}
	if isTransient(err) {
		return attemptResult{kind: attemptRetryable, err: err}
	}
	return attemptResult{kind: attemptUnexpected, err: err}
}

// isTransient reports whether err is a network failure expected to go away
// on a later attempt.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
