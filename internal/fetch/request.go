package fetch

import (
	"net/url"
	"strings"
)

// Param is one query parameter. Params keep their order on the wire.
type Param struct {
	Key   string
	Value string
}

// Request is one logical GET. It is immutable once built.
type Request struct {
	url    string
	params []Param
}

// NewRequest builds a request for rawURL with the given query parameters.
func NewRequest(rawURL string, params ...Param) Request {
	return Request{url: rawURL, params: append([]Param(nil), params...)}
}

// URL returns the request URL without the query parameters.
func (r Request) URL() string {
	return r.url
}

// Params returns a copy of the query parameters.
func (r Request) Params() []Param {
	return append([]Param(nil), r.params...)
}

// Target returns the URL with the query parameters appended in order.
// Keys and values use standard query encoding, so non-ASCII text is
// percent-encoded as UTF-8 and spaces become "+".
func (r Request) Target() string {
	if len(r.params) == 0 {
		return r.url
	}

	var b strings.Builder
	b.WriteString(r.url)
	if strings.Contains(r.url, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	for i, p := range r.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Response is a successful fetch outcome.
type Response struct {
	// StatusCode is a 2xx or 3xx status.
	StatusCode int

	// Body is the response body, truncated to the fetcher's body limit.
	Body string

	// URL is the final URL after redirects.
	URL string
}
