// Package fetcher walks repository search results page by page.
//
// The search API hands out results behind an opaque cursor: each page
// names the cursor of its last entry, and the next request must replay
// it. Pages therefore cannot be fetched in parallel; the fetcher models
// the chain as a lazy Sequence instead of a worker pool.
//
// Example usage:
//
//	f := fetcher.New(apiClient, fetcher.Config{PageSize: 40, Limit: 500})
//	seq := f.Start("language:go stars:>100")
//	for {
//		page, err := seq.Next(ctx)
//		if errors.Is(err, fetcher.ErrSequenceDone) {
//			break
//		}
//		if err != nil {
//			// rate-limit and transport errors are retryable in place
//		}
//		process(page.Records)
//	}
//
// The sequence:
//   - Requests at most PageSize records per page
//   - Shrinks the final request so Limit is never over-fetched
//   - Tracks the point budget from each page's rateLimit block
//   - Refuses to issue a request once the budget is spent
//   - Aborts permanently on a malformed response
package fetcher
