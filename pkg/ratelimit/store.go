package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/repoharvest/ghfetch/pkg/search"
)

// Redis keys for shared quota state.
const (
	redisKeyRemaining  = "ghfetch:quota:remaining"
	redisKeyResetAt    = "ghfetch:quota:reset_timestamp"
	redisKeyLastUpdate = "ghfetch:quota:last_update"
)

// defaultRemaining is assumed until real telemetry arrives. The standard
// authenticated budget is 5000 points per hour.
const defaultRemaining = 5000

// Prometheus metrics for shared quota tracking.
var (
	sharedQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ghfetch_shared_quota_remaining",
		Help: "Points remaining in the shared API quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghfetch_quota_blocks_total",
		Help: "Total requests blocked due to critical quota level",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghfetch_quota_throttles_total",
		Help: "Total requests throttled due to low quota level",
	})
)

// Store shares rate limit state across processes that spend one token's
// point budget. All state lives in Redis; instances are stateless.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewStore creates a shared quota store.
func NewStore(redisClient *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the shared budget from Redis. Returns a default
// healthy budget when no telemetry has been stored yet.
func (s *Store) GetState(ctx context.Context) (*Budget, error) {
	remaining, err := s.redis.Get(ctx, redisKeyRemaining).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get quota remaining: %w", err)
	}

	resetTimestamp, err := s.redis.Get(ctx, redisKeyResetAt).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get quota reset timestamp: %w", err)
	}

	lastUpdateRaw, err := s.redis.Get(ctx, redisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get quota last update: %w", err)
	}

	if err == redis.Nil {
		s.logger.Debug().Msg("No quota state in Redis, assuming full budget")
		return &Budget{
			Remaining:  defaultRemaining,
			ResetAt:    time.Now().Add(time.Hour),
			LastUpdate: time.Now(),
		}, nil
	}

	var lastUpdate time.Time
	if lastUpdateRaw != "" {
		if err := json.Unmarshal([]byte(lastUpdateRaw), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse quota last update: %w", err)
		}
	}

	return &Budget{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
		Known:      true,
	}, nil
}

// Update stores the telemetry from one page response in Redis.
func (s *Store) Update(ctx context.Context, status search.RateLimitStatus) error {
	now := time.Now()

	lastUpdateJSON, err := json.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal quota last update: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Set(ctx, redisKeyRemaining, status.Remaining, 0)
	pipe.Set(ctx, redisKeyResetAt, status.ResetAt.Unix(), 0)
	pipe.Set(ctx, redisKeyLastUpdate, lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	sharedQuotaRemaining.Set(float64(status.Remaining))

	logEvent := s.logger.Info().
		Int("remaining", status.Remaining).
		Int("cost", status.Cost).
		Time("reset_at", status.ResetAt)

	switch {
	case status.Remaining < CriticalThreshold:
		logEvent = s.logger.Error().
			Int("remaining", status.Remaining).
			Time("reset_at", status.ResetAt)
		logEvent.Msg("Quota CRITICAL - requests will be blocked")
	case status.Remaining < WarningThreshold:
		logEvent = s.logger.Warn().
			Int("remaining", status.Remaining).
			Time("reset_at", status.ResetAt)
		logEvent.Msg("Quota low - requests will be throttled")
	default:
		logEvent.Msg("Quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks the shared budget before a request goes out.
// Returns false when the quota is critical and has not reset. In the
// warning band it sleeps briefly to stretch the remaining budget.
func (s *Store) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := s.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	now := time.Now()

	if state.Remaining < CriticalThreshold && now.Before(state.ResetAt) {
		s.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait", state.TimeUntilReset(now)).
			Msg("Quota critical - blocking request")

		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.Remaining < WarningThreshold && now.Before(state.ResetAt) {
		s.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Quota low - throttling request")

		quotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}
