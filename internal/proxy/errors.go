package proxy

import "errors"

var (
	// ErrInvalidProxy is returned when a proxy string cannot be normalized
	// to scheme://host:port.
	ErrInvalidProxy = errors.New("Invalid proxy format") //nolint:staticcheck // shown verbatim to CLI users

	// ErrUnsupportedScheme is returned for proxy schemes other than
	// http, https, socks5 and socks5h.
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")

	// ErrNoProxies is returned by Choose callers when the list is empty.
	ErrNoProxies = errors.New("no proxies available")

	// ErrTooManyRedirects is returned by Client.Do when a redirect chain
	// is longer than the configured limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrClientClosed is returned by Client.Do after Close.
	ErrClientClosed = errors.New("proxy client is closed")

	// ErrTorNotRunning is returned when the embedded Tor daemon is used
	// before Start succeeded.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// Status is the result of checking whether a proxy answers.
type Status int

const (
	// StatusOK indicates the proxy accepted a connection and, for SOCKS5,
	// completed method negotiation.
	StatusOK Status = iota

	// StatusWrongType indicates something answered that does not speak
	// the protocol of the proxy scheme.
	StatusWrongType

	// StatusCannotConnect indicates the TCP connection failed.
	StatusCannotConnect

	// StatusTimeout indicates the check ran out of time.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
