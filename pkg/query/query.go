// Package query holds the fixed GraphQL documents sent to the GitHub API
// and the request payloads that bind variables to them.
//
// The search document is a static asset, not generated code: its variable
// names and field aliases are the wire contract every other package decodes
// against. Aggregate and metadata fields only — blob content (readme, file
// contents) is never requested in this bulk query because inline blobs
// caused request timeouts and cannot be streamed.
package query

// DefaultEndpoint is the GitHub GraphQL API endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

const (
	// MaxPageSize is the API-enforced upper bound on search page size.
	MaxPageSize = 100

	// DefaultPageSize keeps individual requests well under the server-side
	// 10 second query timeout.
	DefaultPageSize = 40

	// MaxTopics bounds the inline topic list. topicCount still reports the
	// true total when a repository carries more.
	MaxTopics = 100
)

// SearchDocument is the repository search query. Each page carries the
// matching repositories with their nested aggregates (closed-issue count,
// default-branch commit total, bounded topic list), pagination metadata,
// and the rate-limit telemetry for the call itself.
const SearchDocument = `query searchRepositories($queryStr: String!, $maxResults: Int, $lastCursorId: String) {
  rateLimit {
    cost
    remaining
    resetAt
  }
  search(query: $queryStr, type: REPOSITORY, first: $maxResults, after: $lastCursorId) {
    repositoryCount
    pageInfo {
      hasNextPage
      lastCursorId: endCursor
    }
    nodes {
      ... on Repository {
        id: databaseId
        nameWithOwner
        stars: stargazerCount
        isFork
        kilobytes: diskUsage
        createdAt
        updatedAt
        description
        closedIssues: issues(states: CLOSED) {
          totalCount
        }
        defaultBranchRef {
          target {
            ... on Commit {
              history {
                totalCount
              }
            }
          }
        }
        topics: repositoryTopics(first: 100) {
          totalCount
          nodes {
            topic {
              name
            }
          }
        }
      }
    }
  }
}`

// RateLimitDocument probes the remaining point budget without consuming it.
const RateLimitDocument = `query rateLimitStatus {
  rateLimit {
    limit
    cost
    remaining
    resetAt
  }
}`

// Request is the JSON body posted to the GraphQL endpoint.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// NewSearchRequest binds one page's variables to the search document.
// The cursor is empty only for the first page of a sequence. Page sizes
// outside 1..MaxPageSize are clamped to the API bounds.
func NewSearchRequest(queryText string, pageSize int, cursor string) Request {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	variables := map[string]any{
		"queryStr":   queryText,
		"maxResults": pageSize,
	}
	if cursor != "" {
		variables["lastCursorId"] = cursor
	}

	return Request{
		Query:     SearchDocument,
		Variables: variables,
	}
}

// NewRateLimitRequest builds the zero-cost quota probe.
func NewRateLimitRequest() Request {
	return Request{Query: RateLimitDocument}
}
