package log

import (
	"log/slog"
	"net/http"

	"github.com/motemen/go-loghttp"
)

// NewHTTPTransport wraps base so that every request and response is logged
// at debug level. Headers are logged through the secure handler, so cookies
// and authorization values are masked.
func NewHTTPTransport(base http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loghttp.Transport{
		Transport: base,
		LogRequest: func(req *http.Request) {
			logger.Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
				"headers", headerGroup(req.Header),
			)
		},
		LogResponse: func(resp *http.Response) {
			logger.Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status_code", resp.StatusCode,
				"headers", headerGroup(resp.Header),
			)
		},
	}
}

// headerGroup turns headers into a group attribute so that each header is
// checked by name against the sensitive key list.
func headerGroup(h http.Header) slog.Value {
	attrs := make([]slog.Attr, 0, len(h))
	for name := range h {
		attrs = append(attrs, slog.String(name, h.Get(name)))
	}
	return slog.GroupValue(attrs...)
}
