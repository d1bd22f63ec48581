package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/repoharvest/ghfetch/pkg/query"
	"github.com/repoharvest/ghfetch/pkg/ratelimit"
	"github.com/repoharvest/ghfetch/pkg/search"
)

// ErrSequenceDone is returned by Next once a sequence is exhausted.
var ErrSequenceDone = errors.New("sequence exhausted")

// Prometheus metrics for page fetching.
var (
	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghfetch_pages_total",
		Help: "Total search pages fetched",
	})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghfetch_records_total",
		Help: "Total repository records emitted",
	})

	pageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ghfetch_page_duration_seconds",
		Help:    "Duration of one page fetch in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})

	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghfetch_rate_limit_remaining",
		Help: "Points remaining in the API budget as of the last page",
	})

	quotaCostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghfetch_rate_limit_cost_total",
		Help: "Cumulative points charged for search pages",
	})
)

// PageSource executes one GraphQL request and returns the raw response.
// *client.Client implements it; tests substitute a stub.
type PageSource interface {
	Execute(ctx context.Context, req query.Request) ([]byte, error)
}

// Config holds fetcher configuration.
type Config struct {
	// PageSize is the number of records requested per page, capped by the
	// API at query.MaxPageSize.
	PageSize int

	// Limit bounds cumulative records across the whole sequence.
	// 0 means unbounded. The final request shrinks to the exact remainder
	// so the limit is never over-fetched.
	Limit int
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		PageSize: query.DefaultPageSize,
	}
}

// Fetcher enumerates repository search results page by page.
type Fetcher struct {
	source PageSource
	config Config
	logger zerolog.Logger
}

// New creates a fetcher over the given page source.
func New(source PageSource, config Config) *Fetcher {
	if config.PageSize <= 0 {
		config.PageSize = query.DefaultPageSize
	}
	if config.PageSize > query.MaxPageSize {
		config.PageSize = query.MaxPageSize
	}
	if config.Limit < 0 {
		config.Limit = 0
	}

	return &Fetcher{
		source: source,
		config: config,
		logger: log.With().Str("component", "fetcher").Logger(),
	}
}

// Start begins a lazy, finite, non-restartable page sequence for one
// search string. Each sequence carries its own rate-limit budget.
func (f *Fetcher) Start(queryText string) *Sequence {
	return &Sequence{
		fetcher:   f,
		queryText: queryText,
		startedAt: time.Now(),
	}
}

// FetchAll drains a whole sequence and returns every record. Convenience
// for callers that want the records more than the pages.
func (f *Fetcher) FetchAll(ctx context.Context, queryText string) ([]search.RepositoryRecord, error) {
	seq := f.Start(queryText)

	var records []search.RepositoryRecord
	for {
		page, err := seq.Next(ctx)
		if errors.Is(err, ErrSequenceDone) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, page.Records...)
	}
}

// Sequence is one in-progress enumeration. The only states are "more
// pages available" and "exhausted"; there is no backtracking. Sequences
// are not safe for concurrent use, matching the strictly sequential
// cursor model.
type Sequence struct {
	fetcher   *Fetcher
	queryText string

	cursor  string
	budget  ratelimit.Budget
	emitted int
	pages   int
	done    bool
	err     error

	startedAt time.Time
}

// Next fetches the following page. It returns ErrSequenceDone once the
// result set is exhausted or the configured limit is reached.
//
// Rate-limit and transport errors leave the sequence at the same cursor,
// so the caller may wait or retry and call Next again. A malformed page
// aborts the sequence: every later call returns the same error.
func (s *Sequence) Next(ctx context.Context) (*search.PageResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, ErrSequenceDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Gate before any network call: a spent budget fails fast.
	now := time.Now()
	if s.budget.Exhausted(now) {
		return nil, fmt.Errorf("%w: budget spent, resets in %s",
			ratelimit.ErrRateLimitExceeded, s.budget.TimeUntilReset(now).Round(time.Second))
	}

	pageSize := s.fetcher.config.PageSize
	if limit := s.fetcher.config.Limit; limit > 0 {
		if remainder := limit - s.emitted; remainder < pageSize {
			pageSize = remainder
		}
	}

	req := query.NewSearchRequest(s.queryText, pageSize, s.cursor)

	fetchStart := time.Now()
	raw, err := s.fetcher.source.Execute(ctx, req)
	pageDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return nil, err
	}

	page, err := search.DecodePage(raw)
	if err != nil {
		var queryErr *search.QueryError
		if errors.As(err, &queryErr) && queryErr.RateLimited() {
			// Server-side budget rejection: same recovery as the gate.
			return nil, fmt.Errorf("%w: %v", ratelimit.ErrRateLimitExceeded, err)
		}
		return nil, s.fail(err)
	}

	s.pages++
	s.budget.Update(page.RateLimit)

	pagesTotal.Inc()
	quotaRemaining.Set(float64(page.RateLimit.Remaining))
	quotaCostTotal.Add(float64(page.RateLimit.Cost))

	// Truncate rather than over-emit when the limit lands mid-page.
	if limit := s.fetcher.config.Limit; limit > 0 {
		if over := s.emitted + len(page.Records) - limit; over > 0 {
			page.Records = page.Records[:len(page.Records)-over]
		}
	}

	s.emitted += len(page.Records)
	s.cursor = page.NextCursor
	recordsTotal.Add(float64(len(page.Records)))

	if !page.HasNextPage || len(page.Records) == 0 {
		s.done = true
	}
	if limit := s.fetcher.config.Limit; limit > 0 && s.emitted >= limit {
		s.done = true
	}

	s.fetcher.logger.Info().
		Str("query", s.queryText).
		Int("page", s.pages).
		Int("nodes", len(page.Records)).
		Int("emitted", s.emitted).
		Int("quota", page.RateLimit.Remaining).
		Bool("has_next", page.HasNextPage).
		Str("cursor", page.NextCursor).
		Dur("elapsed", time.Since(s.startedAt)).
		Msg("Page fetched")

	return page, nil
}

// Budget returns the last-seen rate limit state of this sequence. Callers
// use it to pace or to wait out a reset.
func (s *Sequence) Budget() ratelimit.Budget {
	return s.budget
}

// Emitted returns the cumulative records handed out so far.
func (s *Sequence) Emitted() int {
	return s.emitted
}

// Pages returns the number of pages fetched so far.
func (s *Sequence) Pages() int {
	return s.pages
}

// Done reports whether the sequence is exhausted.
func (s *Sequence) Done() bool {
	return s.done
}

func (s *Sequence) fail(err error) error {
	s.err = err
	return err
}
