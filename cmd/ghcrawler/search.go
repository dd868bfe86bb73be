package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/morikuni/failure/v2"
	"github.com/spf13/cobra"

	"github.com/nao1215/ghcrawler/internal/config"
	"github.com/nao1215/ghcrawler/internal/crawler"
	"github.com/nao1215/ghcrawler/internal/database"
	"github.com/nao1215/ghcrawler/internal/fetch"
	ghlog "github.com/nao1215/ghcrawler/internal/log"
	"github.com/nao1215/ghcrawler/internal/model"
	"github.com/nao1215/ghcrawler/internal/proxy"
	"github.com/nao1215/ghcrawler/internal/report"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var searchType model.SearchType

	cmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Search GitHub and print the result URLs as JSON",
		Long: `Search fetches one GitHub search result page through a proxy and prints
the URLs of the results as a JSON array.

With --with-extra, every repository result is enriched with its owner and
language statistics. Enrichment is only available for Repositories searches;
for other types the flag is ignored with a warning.

Keywords may be given with --keywords, as positional arguments, or both.
They are joined by single spaces to form the query.

Examples:
  # Search repositories through an HTTP proxy
  ghcrawler search --type Repositories --proxies 127.0.0.1:8080 --keywords python httpx

  # Pick one of several proxies at random and add owner and languages
  ghcrawler search -t Repositories -p 10.0.0.1:3128,socks5://10.0.0.2:1080 -k openstack --with-extra

  # Search issues and also write the result to a file
  ghcrawler search -t Issues -p 127.0.0.1:8080 -k "css grid" -o result.json

  # Route through an embedded Tor daemon
  ghcrawler search -t Wikis --embedded-tor -k golang`,
		Args: cobra.ArbitraryArgs,
		RunE: runSearchCmd,
	}

	// Query flags
	cmd.Flags().VarP(newSearchTypeValue(&searchType), "type", "t",
		"Type of search to perform ("+searchTypeChoices()+")")
	cmd.Flags().StringArrayP("keywords", "k", nil,
		"Search keyword (repeatable; further keywords may follow as arguments)")
	cmd.Flags().BoolP("with-extra", "x", false,
		"Repositories only: include owner and language stats")

	// Proxy flags
	cmd.Flags().StringSliceP("proxies", "p", nil,
		"Proxies as host:port or URL (comma separated or repeated); one is chosen at random")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon and use it as the proxy")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Fetch behavior flags
	cmd.Flags().IntP("max-concurrency", "n", config.DefaultMaxConcurrency,
		"Maximum number of requests in flight")
	cmd.Flags().IntP("max-retries", "r", config.DefaultMaxRetries,
		"Retries after the first attempt of a request")
	cmd.Flags().DurationP("timeout", "T", config.DefaultTimeout,
		"Timeout of a single request")
	cmd.Flags().Float64("rps", 0,
		"Maximum request starts per second (0 disables pacing)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ghcrawler in current or home directory)")

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Also write the result to this file (its directory must exist)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Render the result as a Markdown table instead of JSON")

	// History flags
	cmd.Flags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := ghlog.NewLogger(cmd.ErrOrStderr(), ghlog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLogs,
	})

	if !cfg.EmbeddedTor {
		proxies, err := proxy.NormalizeAll(cfg.Proxies)
		if err != nil {
			if !errors.Is(err, proxy.ErrInvalidProxy) {
				err = fmt.Errorf("%w: %w", proxy.ErrInvalidProxy, err)
			}
			return newUsageError(err)
		}
		cfg.Proxies = proxies
	}

	if err := cfg.Validate(); err != nil {
		return newUsageError(err)
	}

	if cfg.ApplyExtraPolicy() {
		logger.Warn("--with-extra ignored: only Repositories searches can be enriched",
			"type", cfg.SearchType.String())
	}

	// Cancel the run on interrupt; partial work is recorded as a failed run.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newSearcher(cfg, logger, cmd.OutOrStdout())
	return s.run(ctx)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogJSONFlag retrieves the log-json flag from the command or its parent.
func getLogJSONFlag(cmd *cobra.Command) bool {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, err = cmd.Root().PersistentFlags().GetBool("log-json")
		if err != nil {
			return false
		}
	}
	return jsonLogs
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named configuration file must exist. Without one, the
	// default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, newUsageError(fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath))
	}

	if st := flags.Lookup("type").Value.String(); st != "" {
		cfg.SearchType = model.SearchType(st)
	}

	keywords, err := flags.GetStringArray("keywords")
	if err != nil {
		return nil, err
	}
	cfg.Keywords = append(keywords, args...)

	if cfg.WithExtra, err = flags.GetBool("with-extra"); err != nil {
		return nil, err
	}
	if flags.Changed("proxies") {
		if cfg.Proxies, err = flags.GetStringSlice("proxies"); err != nil {
			return nil, err
		}
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if flags.Changed("max-concurrency") {
		if cfg.MaxConcurrency, err = flags.GetInt("max-concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-retries") {
		if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rps") {
		if cfg.RequestsPerSecond, err = flags.GetFloat64("rps"); err != nil {
			return nil, err
		}
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.JSONLogs = getLogJSONFlag(cmd)

	return cfg, nil
}

// httpClient is the part of *proxy.Client a search run uses.
type httpClient interface {
	fetch.Doer
	io.Closer
	Check(ctx context.Context) proxy.Status
	ProxyURL() string
}

// clientFactory creates the client a run sends its requests through.
type clientFactory func(proxyURL string, opts ...proxy.ClientOption) (httpClient, error)

func newProxyClient(proxyURL string, opts ...proxy.ClientOption) (httpClient, error) {
	c, err := proxy.NewClient(proxyURL, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// searcher performs one search run for the CLI.
type searcher struct {
	cfg       *config.Config
	logger    *slog.Logger
	out       io.Writer
	newClient clientFactory
}

func newSearcher(cfg *config.Config, logger *slog.Logger, out io.Writer) *searcher {
	return &searcher{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		newClient: newProxyClient,
	}
}

// run executes the crawl and writes its result. A crawl that fails is
// logged and recorded but is not an error; errors are returned only when
// the run could not be set up.
func (s *searcher) run(ctx context.Context) error {
	if s.cfg.EmbeddedTor {
		tor, err := s.startEmbeddedTor(ctx)
		if err != nil {
			return err
		}
		defer func() {
			s.logger.Info("stopping embedded Tor daemon...")
			if err := tor.Stop(); err != nil {
				s.logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
	}

	chosen := proxy.Choose(s.cfg.Proxies)
	if chosen == "" {
		return proxy.ErrNoProxies
	}
	s.logger.Info(fmt.Sprintf("Using proxy: %s", proxy.RedactedString(chosen)))

	client, err := s.newClient(chosen, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create proxy client: %w", err)
	}

	if status := client.Check(ctx); status != proxy.StatusOK {
		s.logger.Warn("proxy check failed, trying anyway",
			"proxy", client.ProxyURL(),
			"status", status.String(),
		)
	}

	run := model.NewRun(s.cfg.Keywords, s.cfg.SearchType, client.ProxyURL(), s.cfg.WithExtra)
	logger := s.logger.With("run_id", run.ID)

	f := fetch.New(client,
		fetch.WithLimiter(fetch.NewLimiter(s.cfg.MaxConcurrency)),
		fetch.WithMaxRetries(s.cfg.MaxRetries),
		fetch.WithBackoff(fetch.NewBackoff(s.cfg.BackoffBase, s.cfg.BackoffCap)),
		fetch.WithRateLimit(s.cfg.RequestsPerSecond),
		fetch.WithMaxBodySize(s.cfg.MaxBodySize),
		fetch.WithLogger(logger),
	)

	c := crawler.New(crawler.Params{
		Keywords:   s.cfg.Keywords,
		SearchType: s.cfg.SearchType,
		Proxy:      client.ProxyURL(),
		WithExtra:  s.cfg.WithExtra,
	}, f, client,
		crawler.WithLogger(logger),
		crawler.WithEnrichWorkers(s.cfg.MaxConcurrency),
	)

	listings, err := c.Run(ctx)

	stats := f.Stats()
	logger.Debug("fetch statistics",
		"fetches", stats.Fetches,
		"attempts", stats.Attempts,
		"retries", stats.Retries,
		"failures", stats.Failures,
	)

	if err != nil {
		run.Fail(err)
		if failure.Is(err, crawler.ErrRunPanicked) {
			logger.Error(fmt.Sprintf("Crawler execution failed: %v", err))
		} else {
			logger.Error("Crawler returned no results", "error", err)
		}
		s.saveRun(ctx, run, logger)
		return nil
	}

	run.Finish(listings)
	logger.Info(fmt.Sprintf("Found %d results", len(listings)))

	data, err := s.render(listings)
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	if _, err := s.out.Write(data); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	if s.cfg.OutputFile != "" {
		if err := os.WriteFile(s.cfg.OutputFile, data, 0600); err != nil {
			logger.Error(fmt.Sprintf("Failed to write output file %s: %T: %v", s.cfg.OutputFile, err, err))
		} else {
			logger.Info(fmt.Sprintf("Results written to %s", s.cfg.OutputFile))
		}
	}

	s.saveRun(ctx, run, logger)
	return nil
}

func (s *searcher) clientOptions() []proxy.ClientOption {
	opts := []proxy.ClientOption{
		proxy.WithTimeout(s.cfg.Timeout),
		proxy.WithMaxRedirects(config.DefaultMaxRedirects),
		proxy.WithHeaders(s.cfg.HeadersCopy()),
	}
	if s.cfg.Verbose {
		opts = append(opts, proxy.WithHTTPLogging(s.logger))
	}
	return opts
}

// render formats listings as the JSON array, or as Markdown when requested.
func (s *searcher) render(listings []model.Listing) ([]byte, error) {
	var buf bytes.Buffer
	var w report.Writer = report.NewJSONWriter(&buf, report.WithPrettyPrint())
	if s.cfg.Markdown {
		w = report.NewMarkdownWriter(&buf)
	}
	if _, err := w.WriteListings(listings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// startEmbeddedTor starts the Tor daemon and makes it the only proxy.
func (s *searcher) startEmbeddedTor(ctx context.Context) (*proxy.EmbeddedTor, error) {
	s.logger.Info("starting embedded Tor daemon, this may take 1-3 minutes...")

	tor, err := proxy.StartEmbeddedTor(ctx,
		proxy.WithStartupTimeout(s.cfg.TorStartupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	proxyURL, err := tor.ProxyURL()
	if err != nil {
		_ = tor.Stop() //nolint:errcheck // best effort cleanup
		return nil, err
	}

	s.logger.Info("embedded Tor daemon started",
		"socksAddr", tor.SocksAddr(),
		"controlAddr", tor.ControlAddr(),
	)
	s.cfg.Proxies = []string{proxyURL}
	return tor, nil
}

// saveRun records the run in the history database and reports whether its
// results differ from the previous run of the same query. History problems
// are logged and never fail the search.
func (s *searcher) saveRun(ctx context.Context, run *model.Run, logger *slog.Logger) {
	if !s.cfg.SaveHistory {
		return
	}

	// An interrupted run is still recorded.
	ctx = context.WithoutCancel(ctx)

	db, err := database.Open(s.cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("failed to open history database", "dir", s.cfg.DBDir, "error", err)
		return
	}
	defer db.Close()

	if run.Status == model.RunStatusDone {
		s.compareWithPrevious(ctx, db, run, logger)
	}

	if err := db.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to save run to history", "error", err)
		return
	}
	logger.Debug("run saved to history", "db", db.Path())
}

func (s *searcher) compareWithPrevious(ctx context.Context, db *database.RunDB, run *model.Run, logger *slog.Logger) {
	prev, err := db.PreviousRun(ctx, run.Query(), run.SearchType, run.StartedAt)
	switch {
	case err != nil:
		logger.Warn("failed to look up previous run", "error", err)
	case prev == nil:
		logger.Debug("no previous run of this query")
	case prev.Fingerprint() == run.Fingerprint():
		logger.Info("results unchanged since previous run", "previous_run", prev.ID)
	default:
		diff := model.DiffListings(prev.Listings, run.Listings)
		logger.Info("results changed since previous run",
			"previous_run", prev.ID,
			"added", len(diff.Added),
			"removed", len(diff.Removed),
		)
	}
}
