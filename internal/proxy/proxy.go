package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Supported proxy schemes.
const (
	SchemeHTTP    = "http"
	SchemeHTTPS   = "https"
	SchemeSOCKS5  = "socks5"
	SchemeSOCKS5H = "socks5h"
)

// Normalize validates a proxy string and returns it as scheme://host:port,
// keeping credentials and any path if present. Only the host and the port
// are checked. A string without a scheme is treated as
// an HTTP proxy, so "10.0.0.1:3128" becomes "http://10.0.0.1:3128".
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidProxy)
	}
	if !strings.Contains(raw, "://") {
		raw = SchemeHTTP + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidProxy, RedactedString(raw))
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeSOCKS5, SchemeSOCKS5H:
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %s", ErrInvalidProxy, RedactedString(raw))
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: missing or invalid port in %s", ErrInvalidProxy, RedactedString(raw))
	}
	normalized := &url.URL{
		Scheme: scheme,
		User:   u.User,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   strings.TrimSuffix(u.Path, "/"),
	}
	return normalized.String(), nil
}

// NormalizeAll normalizes every proxy and stops at the first invalid one.
// It returns nil for an empty list.
func NormalizeAll(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		n, err := Normalize(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Choose picks one proxy uniformly at random. It returns "" for an empty list.
func Choose(proxies []string) string {
	return lo.Sample(proxies)
}

// RedactedString returns raw with any password replaced, for use in logs
// and error messages.
func RedactedString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
