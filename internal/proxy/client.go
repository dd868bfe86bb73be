package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	xproxy "golang.org/x/net/proxy"

	ghlog "github.com/nao1215/ghcrawler/internal/log"
)

const (
	// defaultMaxRedirects bounds redirect chains followed by a Client.
	defaultMaxRedirects = 10

	// checkTimeout bounds Client.Check. It is a connectivity probe only,
	// not a request through the proxy.
	checkTimeout = 2 * time.Second
)

// Client is an HTTP client whose traffic goes through one proxy.
// It is safe for concurrent use. Close may be called any number of times.
type Client struct {
	// proxyURL is the normalized proxy every request goes through.
	proxyURL *url.URL

	// http sends the requests. Its transport chain is header injection,
	// then optional debug logging, then base.
	http *http.Client

	// base owns the pooled connections; Close drops them.
	base *http.Transport

	// mu guards closed. Requests already in flight when Close is called
	// are not interrupted.
	mu     sync.RWMutex
	closed bool
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout      time.Duration
	maxRedirects int
	headers      map[string]string

	// logger enables HTTP debug logging when set.
	logger *slog.Logger
}

// WithTimeout bounds each request made by the client, body read included.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithMaxRedirects sets how many redirects are followed per request.
func WithMaxRedirects(n int) ClientOption {
	return func(o *clientOptions) {
		o.maxRedirects = n
	}
}

// WithHeaders sets headers injected into every request, redirects included.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) {
		o.headers = headers
	}
}

// WithHTTPLogging logs every request and response at debug level.
func WithHTTPLogging(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// NewClient creates a client that sends all requests through proxyURL.
// proxyURL must already be normalized (see Normalize). No connection is made
// until the first request.
func NewClient(proxyURL string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{maxRedirects: defaultMaxRedirects}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProxy, RedactedString(proxyURL))
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	switch u.Scheme {
	case SchemeHTTP, SchemeHTTPS:
		transport.Proxy = http.ProxyURL(u)
	case SchemeSOCKS5, SchemeSOCKS5H:
		dialer, err := xproxy.FromURL(u, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = contextDialer(dialer)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	var rt http.RoundTripper = transport
	if o.logger != nil {
		rt = ghlog.NewHTTPTransport(rt, o.logger)
	}
	if len(o.headers) > 0 {
		rt = &headerInjectingTransport{base: rt, headers: o.headers}
	}

	maxRedirects := o.maxRedirects
	return &Client{
		proxyURL: u,
		base:     transport,
		http: &http.Client{
			Transport: rt,
			Timeout:   o.timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("%w: stopped after %d redirects", ErrTooManyRedirects, maxRedirects)
				}
				return nil
			},
		},
	}, nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// SOCKS dialers from x/net/proxy implement proxy.ContextDialer; for anything
// else the dial runs in a goroutine so cancellation is still honored.
func contextDialer(d xproxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(xproxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Do sends req through the proxy. It fails with ErrClientClosed once the
// client has been closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClientClosed
	}
	return c.http.Do(req)
}

// Close releases idle connections and marks the client closed.
// Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.base.CloseIdleConnections()
	return nil
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ProxyURL returns the proxy URL with the password redacted.
func (c *Client) ProxyURL() string {
	return c.proxyURL.Redacted()
}

// SOCKS5 method negotiation constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// Check verifies that the proxy accepts connections. For SOCKS5 proxies it
// also performs method negotiation so that a port running something else is
// reported as StatusWrongType. HTTP proxies are only dialed.
func (c *Client) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyURL.Host)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	if c.proxyURL.Scheme != SchemeSOCKS5 && c.proxyURL.Scheme != SchemeSOCKS5H {
		return StatusOK
	}

	if err := conn.SetDeadline(time.Now().Add(checkTimeout)); err != nil {
		return StatusCannotConnect
	}

	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if c.proxyURL.User != nil {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthPassword}
	}
	if _, err := conn.Write(greeting); err != nil {
		return StatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return StatusTimeout
		}
		return StatusWrongType
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept {
		return StatusWrongType
	}
	if resp[1] == socks5AuthPassword && c.proxyURL.User == nil {
		return StatusWrongType
	}
	if resp[1] != socks5AuthNone && resp[1] != socks5AuthPassword {
		return StatusWrongType
	}
	return StatusOK
}

// headerInjectingTransport sets fixed headers on every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}
	return t.base.RoundTrip(clone)
}
