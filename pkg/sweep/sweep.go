// Package sweep partitions a repository search into created-date windows.
//
// The search API stops serving cursors after roughly a thousand results
// per query string. Sweeping narrows each query with a created: range and
// advances the range when a cursor chain is exhausted, so a harvest can
// cover result sets far beyond the per-query ceiling.
package sweep

import (
	"fmt"
	"strings"
	"time"
)

// DefaultStep is the default width of one created-date window.
const DefaultStep = 48 * time.Hour

// Window is one created-date slice of a sweep.
type Window struct {
	Min  time.Time
	Max  time.Time
	Step time.Duration
}

// NewWindow starts a sweep at min with the given step. A zero step uses
// DefaultStep.
func NewWindow(min time.Time, step time.Duration) Window {
	if step <= 0 {
		step = DefaultStep
	}
	return Window{
		Min:  min.UTC(),
		Max:  min.UTC().Add(step),
		Step: step,
	}
}

// Qualifier renders the window as a created: search qualifier.
func (w Window) Qualifier() string {
	return Range("created", w.Min.Format(time.RFC3339), w.Max.Format(time.RFC3339))
}

// Advance moves the window forward by one step.
func (w Window) Advance() Window {
	return Window{
		Min:  w.Max,
		Max:  w.Max.Add(w.Step),
		Step: w.Step,
	}
}

// Done reports whether the window has moved past the given end time.
func (w Window) Done(end time.Time) bool {
	return !w.Min.Before(end)
}

// QueryFor merges the window qualifier into a base query string. A
// created: qualifier already present in the base is replaced.
func (w Window) QueryFor(base string) string {
	return MergeQualifiers(base, w.Qualifier())
}

// Range renders a prop:min..max search qualifier. Either bound may be
// empty, producing prop:>=min or prop:<=max instead.
func Range(prop, min, max string) string {
	switch {
	case min != "" && max != "":
		return fmt.Sprintf("%s:%s..%s", prop, min, max)
	case min != "":
		return fmt.Sprintf("%s:>=%s", prop, min)
	case max != "":
		return fmt.Sprintf("%s:<=%s", prop, max)
	default:
		return ""
	}
}

// MergeQualifiers joins query fragments into one search string. Tokens
// sharing a qualifier key (the part before the colon) collapse to the
// last occurrence, keeping first-appearance order. Bare tokens without a
// colon are kept as-is and deduplicated by value.
func MergeQualifiers(fragments ...string) string {
	var order []string
	values := make(map[string]string)

	for _, fragment := range fragments {
		for _, token := range strings.Fields(fragment) {
			key := token
			if k, _, ok := strings.Cut(token, ":"); ok && k != "" {
				key = k
			}
			if _, seen := values[key]; !seen {
				order = append(order, key)
			}
			values[key] = token
		}
	}

	parts := make([]string, 0, len(order))
	for _, key := range order {
		parts = append(parts, values[key])
	}
	return strings.Join(parts, " ")
}
