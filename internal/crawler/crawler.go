package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/morikuni/failure/v2"

	"github.com/nao1215/ghcrawler/internal/fetch"
	ghlog "github.com/nao1215/ghcrawler/internal/log"
	"github.com/nao1215/ghcrawler/internal/model"
	"github.com/nao1215/ghcrawler/internal/parser"
	"github.com/nao1215/ghcrawler/internal/pipeline"
)

// Fetcher resolves a request to a response, or nil when none was obtained.
// *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) *fetch.Response
}

// Parser extracts data from GitHub pages. *parser.Parser implements it.
type Parser interface {
	ExtractListingURLs(html string) []string
	ExtractLanguageBreakdown(html string) map[string]float64
}

// Params describes what a run searches for.
type Params struct {
	Keywords   []string
	SearchType model.SearchType

	// Proxy is the proxy the client was built for. It is only used in log
	// messages and should be redacted.
	Proxy string

	// WithExtra requests enrichment. It is ignored unless SearchType
	// supports it.
	WithExtra bool
}

// Crawler runs one search crawl.
type Crawler struct {
	params Params

	// fetcher performs every request of the run. Its limiter bounds the
	// search fetch and the enrichment fetches together.
	fetcher Fetcher

	parser Parser

	// client is owned by the Crawler and closed once when Run returns.
	client    io.Closer
	closeOnce sync.Once

	logger *slog.Logger

	// enrichWorkers bounds the enrichment goroutines alive at once. Zero
	// starts one per listing and leaves the bounding to the fetcher.
	enrichWorkers int

	// mu guards state and started. started makes Run a one-shot call.
	mu      sync.Mutex
	state   State
	started bool
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger of the run.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithParser replaces the default goquery based parser.
func WithParser(p Parser) Option {
	return func(c *Crawler) {
		if p != nil {
			c.parser = p
		}
	}
}

// WithEnrichWorkers bounds how many listings are enriched at once. Zero or
// less means one goroutine per listing.
func WithEnrichWorkers(n int) Option {
	return func(c *Crawler) {
		c.enrichWorkers = n
	}
}

// New creates a Crawler. The Crawler takes ownership of client and closes it
// when Run returns; client may be nil.
func New(params Params, fetcher Fetcher, client io.Closer, opts ...Option) *Crawler {
	c := &Crawler{
		params:  params,
		fetcher: fetcher,
		client:  client,
		logger:  ghlog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.parser == nil {
		c.parser = parser.New(c.logger)
	}
	return c
}

// State returns the current state of the run.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Crawler) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// SearchRequest returns the request for the search page: q is the keywords
// joined by single spaces and type is the search type.
func (c *Crawler) SearchRequest() fetch.Request {
	return fetch.NewRequest(model.NormalizeURL("search"),
		fetch.Param{Key: "q", Value: model.JoinKeywords(c.params.Keywords)},
		fetch.Param{Key: "type", Value: c.params.SearchType.String()},
	)
}

// Run executes the crawl and returns the listings found. The returned error
// carries one of the ErrorCode values; Run never panics. The client is
// closed before Run returns.
func (c *Crawler) Run(ctx context.Context) (listings []model.Listing, err error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, failure.New(ErrAlreadyRun, failure.Message("crawler has already run"))
	}
	c.started = true
	c.mu.Unlock()

	st := &runState{}

	defer c.closeClient()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Sprintf("Crawler run failed: %T: %v", r, r), "panic", r, "step", st.stepName)
			c.setState(StateFailed)
			listings = nil
			err = failure.New(ErrRunPanicked,
				failure.Message("crawler run failed unexpectedly"),
				failure.Context{"panic": fmt.Sprint(r)},
			)
		}
	}()

	var p *pipeline.Pipeline[*runState]
	p = pipeline.New[*runState](
		pipeline.WithLogger(c.logger),
		pipeline.WithStepHook(func(name string) {
			st.step++
			st.stepName = name
			c.logger.Debug(fmt.Sprintf("crawl step %d/%d: %s", st.step, p.StepCount(), name))
		}),
	)
	p.AddSteps(
		pipeline.StepFunc[*runState]{StepName: "search", Fn: c.searchStep},
		pipeline.StepFunc[*runState]{StepName: "parse", Fn: c.parseStep},
		pipeline.StepFunc[*runState]{StepName: "enrich", Fn: c.enrichStep},
	)
	c.logger.Debug("crawl started",
		"query", model.JoinKeywords(c.params.Keywords),
		"type", c.params.SearchType.String(),
		"steps", p.StepNames(),
	)

	if err := p.Execute(ctx, st); err != nil {
		c.setState(StateFailed)
		if !failure.Is(err, ErrSearchFailed) {
			err = failure.Wrap(err, failure.WithCode(ErrInterrupted),
				failure.Message("crawl interrupted"))
		}
		return nil, err
	}

	c.setState(StateDone)
	c.logger.Info("crawl finished",
		"listings", len(st.listings),
		"enriched", st.enriched,
	)
	return st.listings, nil
}

// runState is passed between the steps of one run.
type runState struct {
	// step counts the steps started so far; stepName is the current one.
	step     int
	stepName string

	searchBody string
	listings   []model.Listing
	enriched   int
}

func (c *Crawler) searchStep(ctx context.Context, st *runState) error {
	c.setState(StateSearchFetching)

	req := c.SearchRequest()
	resp := c.fetcher.Fetch(ctx, req)
	if resp == nil || resp.Body == "" {
		c.logger.Error(fmt.Sprintf("Could not get search results for %v and type %s with %s proxy",
			c.params.Keywords, c.params.SearchType, c.params.Proxy),
			"url", req.Target(),
		)
		return failure.New(ErrSearchFailed,
			failure.Message("could not get search results"),
			failure.Context{
				"query": model.JoinKeywords(c.params.Keywords),
				"type":  c.params.SearchType.String(),
			},
		)
	}
	st.searchBody = resp.Body
	return nil
}

func (c *Crawler) parseStep(_ context.Context, st *runState) error {
	urls := c.parser.ExtractListingURLs(st.searchBody)
	st.listings = make([]model.Listing, 0, len(urls))
	for _, u := range urls {
		st.listings = append(st.listings, model.NewListing(u))
	}
	st.searchBody = ""
	c.setState(StateParsed)

	c.logger.Debug("search results parsed", "listings", len(st.listings))
	return nil
}

func (c *Crawler) enrichStep(ctx context.Context, st *runState) error {
	if !c.params.WithExtra || !c.params.SearchType.SupportsExtra() || len(st.listings) == 0 {
		return nil
	}
	c.setState(StateEnrichmentFetching)

	// Network concurrency is bounded by the fetcher's limiter; enrichWorkers
	// only bounds the goroutines.
	bp := pipeline.NewBatchProcessor(
		pipeline.WithBatchLogger(c.logger),
		pipeline.WithConcurrency(c.enrichWorkers),
	)
	result := bp.Process(ctx, len(st.listings), func(ctx context.Context, i int) error {
		return c.enrichListing(ctx, &st.listings[i])
	})

	for i, err := range result.Errors {
		var panicErr *pipeline.PanicError
		if errors.As(err, &panicErr) {
			c.logger.Error(fmt.Sprintf("Error parsing repo %s: %T: %v", st.listings[i].URL, panicErr.Value, panicErr.Value),
				"url", st.listings[i].URL)
		}
	}
	st.enriched = result.Succeeded
	return nil
}

// Local enrichment failures. They are logged where they happen.
var (
	errMissingURL = errors.New("listing has no url")
	errNoDetails  = errors.New("no repository details")
)

// enrichListing fetches a repository page and attaches owner and language
// data to l. l is left untouched on failure.
func (c *Crawler) enrichListing(ctx context.Context, l *model.Listing) error {
	if l.URL == "" {
		c.logger.Error("Repository dict missing 'url' key.")
		return errMissingURL
	}

	resp := c.fetcher.Fetch(ctx, fetch.NewRequest(l.URL))
	if resp == nil || resp.Body == "" {
		c.logger.Error(fmt.Sprintf("Could not get details for repository %s", l.URL), "url", l.URL)
		return errNoDetails
	}

	stats := c.parser.ExtractLanguageBreakdown(resp.Body)

	var owner *string
	if name, ok := model.OwnerFromURL(l.URL); ok {
		owner = &name
	} else {
		c.logger.Error(fmt.Sprintf("Could not extract owner from repository url: %s", l.URL), "url", l.URL)
	}

	l.Extra = &model.Extra{Owner: owner, LanguageStats: stats}
	return nil
}

func (c *Crawler) closeClient() {
	c.closeOnce.Do(func() {
		if c.client == nil {
			return
		}
		if err := c.client.Close(); err != nil {
			c.logger.Warn("failed to close HTTP client", "error", err)
		}
	})
}
