package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/ghcrawler/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "ghcrawler"

	// DefaultMaxConcurrency is the number of requests allowed in flight at
	// once during a crawl run.
	DefaultMaxConcurrency = 5

	// DefaultTimeout bounds each individual HTTP request. A request that
	// exceeds it is treated as a transient failure and retried.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt,
	// so a request is tried at most DefaultMaxRetries+1 times.
	DefaultMaxRetries = 5

	// DefaultBackoffBase is the delay before the first retry, prior to jitter.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultBackoffCap bounds the exponential part of the retry delay.
	DefaultBackoffCap = 20 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxRedirects is the number of redirects followed per request.
	DefaultMaxRedirects = 10

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultUserAgent is sent with every request. GitHub serves the full
	// search markup only to browser user agents.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"
)

// DefaultHeaders returns the headers sent with every request, User-Agent
// included. The returned map is a fresh copy.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                DefaultUserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           "en-US;q=0.9,en;q=0.8",
		"Dnt":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Referer":                   model.BaseURL,
	}
}

// Config holds every option of a search run. It is populated from defaults,
// then the configuration file, then CLI flags, and passed down explicitly.
type Config struct {
	// SearchType selects what GitHub searches for.
	SearchType model.SearchType `validate:"required,oneof=Repositories Issues Wikis"`

	// Keywords are joined with single spaces to form the query.
	Keywords []string `validate:"min=1,dive,required"`

	// Proxies are normalized proxy URLs (scheme://host:port). One of them is
	// picked at random for the whole run.
	Proxies []string `validate:"required_without=EmbeddedTor"`

	// EmbeddedTor starts a Tor daemon and uses its SOCKS port as the proxy
	// instead of Proxies.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// WithExtra enables enrichment of repository listings.
	WithExtra bool

	// OutputFile is an optional path the result is also written to.
	// Its directory must already exist.
	OutputFile string

	// Markdown renders the result as a Markdown table instead of JSON.
	Markdown bool

	// Verbose enables debug logging, including every HTTP exchange.
	Verbose bool

	// JSONLogs switches the log format from text to JSON.
	JSONLogs bool

	// MaxConcurrency bounds the number of in-flight requests of one run.
	MaxConcurrency int `validate:"gt=0"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `validate:"gte=0"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `validate:"gt=0"`

	// BackoffBase and BackoffCap parameterize the retry delay.
	BackoffBase time.Duration `validate:"gt=0"`
	BackoffCap  time.Duration `validate:"gt=0"`

	// RequestsPerSecond paces request starts across the run. Zero disables
	// pacing.
	RequestsPerSecond float64 `validate:"gte=0"`

	// MaxBodySize limits how many bytes of a response body are read.
	MaxBodySize int64 `validate:"gt=0"`

	// Headers are sent with every request.
	Headers map[string]string

	// ConfigFilePath is the configuration file to load. Empty means search
	// the default locations.
	ConfigFilePath string

	// SaveHistory stores every run in the history database under DBDir.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxConcurrency:    DefaultMaxConcurrency,
		MaxRetries:        DefaultMaxRetries,
		Timeout:           DefaultTimeout,
		BackoffBase:       DefaultBackoffBase,
		BackoffCap:        DefaultBackoffCap,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Headers:           DefaultHeaders(),
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for ghcrawler,
// e.g. ~/.local/share/ghcrawler on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ghcrawler,
// e.g. ~/.config/ghcrawler on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyExtraPolicy turns WithExtra off when the search type cannot be
// enriched. It reports whether the flag was changed so the caller can warn.
func (c *Config) ApplyExtraPolicy() bool {
	if c.WithExtra && !c.SearchType.SupportsExtra() {
		c.WithExtra = false
		return true
	}
	return false
}

// HeadersCopy returns a copy of Headers safe to hand to other components.
func (c *Config) HeadersCopy() map[string]string {
	return maps.Clone(c.Headers)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrors maps a struct field to the sentinel error reported when it
// fails validation.
var fieldErrors = map[string]error{
	"SearchType":        ErrInvalidSearchType,
	"Keywords":          ErrNoKeywords,
	"Proxies":           ErrNoProxy,
	"MaxConcurrency":    ErrInvalidConcurrency,
	"MaxRetries":        ErrInvalidMaxRetries,
	"Timeout":           ErrInvalidTimeout,
	"BackoffBase":       ErrInvalidBackoff,
	"BackoffCap":        ErrInvalidBackoff,
	"RequestsPerSecond": ErrInvalidRate,
	"MaxBodySize":       ErrInvalidMaxBodySize,
}

// Validate checks the configuration and returns the first problem found
// as one of the sentinel errors of this package, wrapped with detail where
// useful.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		fe := verrs[0]
		// Element failures of dive are reported as "Keywords[1]".
		field, _, _ := strings.Cut(fe.StructField(), "[")
		if sentinel, ok := fieldErrors[field]; ok {
			if field == "SearchType" {
				return fmt.Errorf("%w: %q", sentinel, string(c.SearchType))
			}
			return sentinel
		}
		return err
	}

	// required_without accepts an empty, non-nil slice.
	if len(c.Proxies) == 0 && !c.EmbeddedTor {
		return ErrNoProxy
	}

	if c.BackoffCap < c.BackoffBase {
		return ErrInvalidBackoff
	}

	if c.OutputFile != "" {
		dir := filepath.Dir(c.OutputFile)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrOutputDirNotFound, dir)
		}
	}

	return nil
}
