package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/repoharvest/ghfetch/internal/config"
	"github.com/repoharvest/ghfetch/internal/storage"
	"github.com/repoharvest/ghfetch/pkg/client"
	"github.com/repoharvest/ghfetch/pkg/fetcher"
	"github.com/repoharvest/ghfetch/pkg/logging"
	"github.com/repoharvest/ghfetch/pkg/ratelimit"
	"github.com/repoharvest/ghfetch/pkg/retry"
	"github.com/repoharvest/ghfetch/pkg/search"
	"github.com/repoharvest/ghfetch/pkg/sweep"
)

var (
	fetchSince      string
	fetchUntil      string
	fetchWindowDays int
	fetchResume     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch QUERY",
	Short: "Fetch all repositories matching a search query",
	Long: `
The fetch command pages through repository search results for QUERY and
upserts each record into the SQLite database.

With --since, the query is swept in created-date windows so result sets
beyond the per-query cursor ceiling are still covered; --resume picks an
interrupted sweep back up at its last checkpoint.
`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSince, "since", "", "Sweep start date (YYYY-MM-DD); enables window sweeping")
	fetchCmd.Flags().StringVar(&fetchUntil, "until", "", "Sweep end date (YYYY-MM-DD, default today)")
	fetchCmd.Flags().IntVar(&fetchWindowDays, "window-days", 2, "Width of one created-date window in days")
	fetchCmd.Flags().BoolVar(&fetchResume, "resume", false, "Resume the sweep from the stored checkpoint")
}

// harvester bundles the long-lived pieces of one fetch run.
type harvester struct {
	cfg     *config.Config
	logger  zerolog.Logger
	fetcher *fetcher.Fetcher
	store   *storage.RepoStore
	quota   *ratelimit.Store
	pacer   *rate.Limiter
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientCfg := client.DefaultConfig(cfg.Token, cfg.UserAgent)
	if cfg.Endpoint != "" {
		clientCfg.Endpoint = cfg.Endpoint
	}
	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	h := &harvester{
		cfg:    cfg,
		logger: logging.NewLogger("harvest"),
		fetcher: fetcher.New(apiClient, fetcher.Config{
			PageSize: cfg.PageSize,
			Limit:    cfg.FetchLimit,
		}),
		store: store,
		// The search edge allows roughly 5000 points an hour; pacing
		// below that keeps a long sweep from tripping the limit at all.
		pacer: rate.NewLimiter(rate.Every(720*time.Millisecond), 1),
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		h.quota = ratelimit.NewStore(redisClient, logger)
		h.logger.Info().Str("addr", cfg.RedisAddr).Msg("Shared quota store enabled")
	}

	if fetchSince == "" {
		return h.harvestQuery(ctx, args[0])
	}
	return h.harvestSweep(ctx, args[0])
}

// harvestQuery drains a single cursor chain for one query string.
func (h *harvester) harvestQuery(ctx context.Context, queryText string) error {
	total, err := h.drainSequence(ctx, queryText)
	if err != nil {
		return err
	}

	count, err := h.store.Count(ctx)
	if err != nil {
		return err
	}
	h.logger.Info().
		Str("query", queryText).
		Int("fetched", total).
		Int("stored", count).
		Msg("Harvest complete")
	return nil
}

// harvestSweep walks created-date windows across [since, until],
// checkpointing after each window.
func (h *harvester) harvestSweep(ctx context.Context, baseQuery string) error {
	since, err := time.Parse("2006-01-02", fetchSince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}

	until := time.Now().UTC()
	if fetchUntil != "" {
		if until, err = time.Parse("2006-01-02", fetchUntil); err != nil {
			return fmt.Errorf("parse --until: %w", err)
		}
	}

	window := sweep.NewWindow(since, time.Duration(fetchWindowDays)*24*time.Hour)
	total := 0

	if fetchResume {
		cp, err := h.store.LoadCheckpoint(ctx, baseQuery)
		if err != nil {
			return err
		}
		switch {
		case cp == nil:
			h.logger.Warn().Str("query", baseQuery).Msg("No checkpoint found, starting fresh")
		case cp.Completed:
			h.logger.Info().Str("query", baseQuery).Msg("Sweep already completed")
			return nil
		default:
			window = sweep.Window{Min: cp.WindowMin, Max: cp.WindowMax, Step: window.Step}
			total = cp.TotalFetched
			h.logger.Info().
				Str("query", baseQuery).
				Time("window_min", window.Min).
				Int("fetched", total).
				Msg("Resuming sweep from checkpoint")
		}
	}

	for !window.Done(until) {
		windowQuery := window.QueryFor(baseQuery)
		fetched, err := h.drainSequence(ctx, windowQuery)
		total += fetched
		if err != nil {
			// Persist progress so --resume restarts in this window.
			if saveErr := h.store.SaveCheckpoint(ctx, storage.Checkpoint{
				Query:        baseQuery,
				WindowMin:    window.Min,
				WindowMax:    window.Max,
				TotalFetched: total,
			}); saveErr != nil {
				h.logger.Error().Err(saveErr).Msg("Checkpoint write failed")
			}
			return err
		}

		window = window.Advance()
		if err := h.store.SaveCheckpoint(ctx, storage.Checkpoint{
			Query:        baseQuery,
			WindowMin:    window.Min,
			WindowMax:    window.Max,
			TotalFetched: total,
			Completed:    window.Done(until),
		}); err != nil {
			return err
		}
	}

	h.logger.Info().
		Str("query", baseQuery).
		Int("fetched", total).
		Msg("Sweep complete")
	return nil
}

// drainSequence pages through one cursor chain, persisting every page.
func (h *harvester) drainSequence(ctx context.Context, queryText string) (int, error) {
	seq := h.fetcher.Start(queryText)
	fetched := 0

	for {
		if err := h.pacer.Wait(ctx); err != nil {
			return fetched, err
		}
		if h.quota != nil {
			if allowed, err := h.quota.ShouldAllowRequest(ctx); err != nil {
				h.logger.Warn().Err(err).Msg("Shared quota check failed, proceeding")
			} else if !allowed {
				if err := h.waitForReset(ctx, seq.Budget()); err != nil {
					return fetched, err
				}
			}
		}

		page, err := h.nextPage(ctx, seq)
		if errors.Is(err, fetcher.ErrSequenceDone) {
			return fetched, nil
		}
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			if err := h.waitForReset(ctx, seq.Budget()); err != nil {
				return fetched, err
			}
			continue
		}
		if err != nil {
			return fetched, err
		}

		if err := h.store.SaveRecords(ctx, page.Records); err != nil {
			return fetched, err
		}
		fetched += len(page.Records)

		if h.quota != nil {
			if err := h.quota.Update(ctx, page.RateLimit); err != nil {
				h.logger.Warn().Err(err).Msg("Shared quota update failed")
			}
		}
	}
}

// nextPage fetches one page, retrying transport and server failures with
// backoff. Other error classes surface immediately.
func (h *harvester) nextPage(ctx context.Context, seq *fetcher.Sequence) (*search.PageResult, error) {
	page, err := seq.Next(ctx)
	if err == nil {
		return page, nil
	}

	class := client.Classify(err)
	if !client.ShouldRetry(class) {
		return nil, err
	}

	retryErr := retry.Do(ctx, class, func() error {
		var nextErr error
		page, nextErr = seq.Next(ctx)
		return nextErr
	})
	return page, retryErr
}

// waitForReset sleeps until the budget window rolls over. With an
// unknown reset time it backs off for a minute instead.
func (h *harvester) waitForReset(ctx context.Context, budget ratelimit.Budget) error {
	wait := time.Minute
	if budget.Known {
		wait = budget.TimeUntilReset(time.Now()) + time.Second
	}

	h.logger.Warn().
		Dur("wait", wait).
		Time("reset_at", budget.ResetAt).
		Msg("Point budget exhausted, waiting for reset")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
