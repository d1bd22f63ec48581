// Package search defines the data model produced by the repository search
// query and the strict decoder that turns a raw response page into it.
package search

import (
	"strings"
	"time"
)

// RepositoryRecord is an immutable snapshot of one repository at fetch time.
// All aggregate fields come from the single combined response; no secondary
// per-repository calls are ever issued to fill them.
type RepositoryRecord struct {
	// ID is the numeric repository id (databaseId).
	ID int64

	// NameWithOwner is "owner/name".
	NameWithOwner string

	// Stars is the stargazer count.
	Stars int

	// IsFork reports whether the repository is a fork.
	IsFork bool

	// Kilobytes is the repository disk usage.
	Kilobytes int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Description is empty when the repository has none.
	Description string

	// ClosedIssueCount is the total number of closed issues.
	ClosedIssueCount int

	// CommitCount is the default-branch history total. 0 when the
	// repository has no default branch (empty repository).
	CommitCount int

	// Topics holds at most query.MaxTopics names in author insertion order.
	// When TopicCount > len(Topics) the list is a truncated sample.
	Topics []string

	// TopicCount is the true topic total, even when Topics is truncated.
	TopicCount int
}

// Owner returns the owner half of NameWithOwner.
func (r *RepositoryRecord) Owner() string {
	owner, _, _ := strings.Cut(r.NameWithOwner, "/")
	return owner
}

// Name returns the repository half of NameWithOwner.
func (r *RepositoryRecord) Name() string {
	_, name, _ := strings.Cut(r.NameWithOwner, "/")
	return name
}

// URL returns the canonical repository URL.
func (r *RepositoryRecord) URL() string {
	return "https://github.com/" + r.NameWithOwner
}

// RateLimitStatus is the telemetry block returned alongside every page.
// Callers use it to throttle: Remaining is the point budget left and
// ResetAt is when the budget refreshes.
type RateLimitStatus struct {
	Cost      int       `json:"cost"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// PageResult is one bounded batch of search results.
type PageResult struct {
	Records         []RepositoryRecord
	TotalMatchCount int
	HasNextPage     bool

	// NextCursor seeds the following request. Empty on the final page.
	NextCursor string

	// RateLimit is the telemetry returned with this page.
	RateLimit RateLimitStatus
}
