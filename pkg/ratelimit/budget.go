// Package ratelimit tracks the GraphQL point budget returned with every
// search page and gates requests before the budget is overdrawn.
//
// Each search sequence carries its own in-memory Budget. The Redis-backed
// Store is an optional layer for fleets of processes sharing one token,
// where the point budget is a single account-wide resource.
package ratelimit

import (
	"errors"
	"time"

	"github.com/repoharvest/ghfetch/pkg/search"
)

// ErrRateLimitExceeded is returned when the remaining point budget reached
// zero before its reset time. Recoverable by waiting until ResetAt; never
// retried automatically.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Thresholds for shared quota decisions, in remaining points.
const (
	// CriticalThreshold blocks requests outright. A search page costs at
	// least one point, so this stops a fleet just short of the hard limit.
	CriticalThreshold = 10

	// WarningThreshold applies throttling to stretch the tail of the
	// budget window.
	WarningThreshold = 100
)

// Budget is the last-seen rate limit state of one search sequence.
// It is updated from the telemetry attached to every page response.
type Budget struct {
	// Remaining is the point budget left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window refreshes.
	ResetAt time.Time `json:"reset_at"`

	// Cost is the points the last query was charged.
	Cost int `json:"cost"`

	// LastUpdate is when telemetry was last observed.
	LastUpdate time.Time `json:"last_update"`

	// Known is false until the first page reports telemetry. An unknown
	// budget never blocks: the first call must go out to learn the state.
	Known bool `json:"known"`
}

// Update records the telemetry from one page response.
func (b *Budget) Update(status search.RateLimitStatus) {
	b.Remaining = status.Remaining
	b.ResetAt = status.ResetAt
	b.Cost = status.Cost
	b.LastUpdate = time.Now()
	b.Known = true
}

// Exhausted reports whether the budget is spent and has not yet reset.
func (b *Budget) Exhausted(now time.Time) bool {
	return b.Known && b.Remaining == 0 && now.Before(b.ResetAt)
}

// TimeUntilReset returns the wait until the window refreshes, 0 if the
// reset time already passed.
func (b *Budget) TimeUntilReset(now time.Time) time.Duration {
	wait := b.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Stale returns true if the telemetry is older than maxAge.
func (b *Budget) Stale(maxAge time.Duration) bool {
	return time.Since(b.LastUpdate) > maxAge
}
