// Package log builds the structured loggers used by ghcrawler on top of
// log/slog.
//
// Every logger created here routes records through SecureHandler, which masks
// credentials before they are written:
//   - attributes named like cookies, tokens or passwords
//   - values that look like bearer tokens, JWTs or GitHub tokens
//   - the user:password part of URLs, which is how proxy credentials appear
//
// Loggers are passed explicitly to the components that need them; the
// crawler scopes one to each run with logger.With("run", id).
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Info("Using proxy", "proxy", "http://bob:pw@proxy:8080")
//	// proxy=http://***REDACTED***@proxy:8080
//
// NewHTTPTransport adds request/response debug logging to an
// http.RoundTripper.
package log
