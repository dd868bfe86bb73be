// Package fetch implements the resilient GET used for every page of a crawl.
//
// A Fetcher performs one logical request as a bounded series of attempts.
// Each attempt holds one permit of a shared Limiter for exactly the duration
// of the network call and body read. The outcome of an attempt is classified
// as success, retryable, permanent or unexpected:
//
//   - 2xx and 3xx responses are returned immediately.
//   - 429, 500, 502, 503 and 504 responses and transient network errors
//     (timeouts, refused or reset connections, truncated bodies) are retried
//     with jittered exponential backoff until the retry budget is spent.
//   - Any other status is returned as absence without a retry.
//   - Anything else, including a cancelled context, is logged and returned
//     as absence without a retry.
//
// Fetch never returns an error; a nil *Response is the absence signal.
package fetch
