// Package testutil provides testing utilities for the GraphQL client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one scripted GraphQL response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockGitHub is a scripted GraphQL server for testing. Responses are
// consumed in order; when the script runs out the default handler
// answers with an empty result set.
type MockGitHub struct {
	server *httptest.Server
	mu     sync.RWMutex
	script []MockResponse

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastQuery         string
	LastVariables     map[string]any
	CursorsSeen       []string
}

// NewMockGitHub creates a new scripted server.
func NewMockGitHub() *MockGitHub {
	mock := &MockGitHub{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = body.Query
		mock.LastVariables = body.Variables
		if cursor, ok := body.Variables["lastCursorId"].(string); ok {
			mock.CursorsSeen = append(mock.CursorsSeen, cursor)
		} else {
			mock.CursorsSeen = append(mock.CursorsSeen, "")
		}

		var resp *MockResponse
		if len(mock.script) > 0 {
			resp = &mock.script[0]
			mock.script = mock.script[1:]
		}
		mock.mu.Unlock()

		if resp == nil {
			mock.defaultHandler(w)
			return
		}

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockGitHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGitHub) Close() {
	m.server.Close()
}

// Reset clears tracking state and any unconsumed script entries.
func (m *MockGitHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = ""
	m.LastVariables = nil
	m.CursorsSeen = nil
	m.script = nil
}

// Enqueue appends responses to the script.
func (m *MockGitHub) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// GetRequestCount returns the number of requests served.
func (m *MockGitHub) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetCursorsSeen returns the lastCursorId variable of each request, ""
// for requests that carried none.
func (m *MockGitHub) GetCursorsSeen() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.CursorsSeen...)
}

func (m *MockGitHub) defaultHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(SearchPageBody(nil, 0, "", false, 5000)))
}

// RepoNode is one repository entry for a scripted search page.
type RepoNode struct {
	ID            int64
	NameWithOwner string
	Stars         int
	Topics        []string
}

// SearchPageBody renders a well-formed search page payload.
func SearchPageBody(nodes []RepoNode, total int, cursor string, hasNext bool, remaining int) string {
	rendered := make([]string, 0, len(nodes))
	for _, n := range nodes {
		topics := make([]string, 0, len(n.Topics))
		for _, topic := range n.Topics {
			topics = append(topics, fmt.Sprintf(`{"topic": {"name": %q}}`, topic))
		}
		rendered = append(rendered, fmt.Sprintf(`{
			"id": %d,
			"nameWithOwner": %q,
			"stars": %d,
			"isFork": false,
			"kilobytes": 64,
			"createdAt": "2024-01-01T00:00:00Z",
			"updatedAt": "2024-06-01T00:00:00Z",
			"description": "mock repository",
			"closedIssues": {"totalCount": 2},
			"defaultBranchRef": {"target": {"history": {"totalCount": 40}}},
			"topics": {"totalCount": %d, "nodes": [%s]}
		}`, n.ID, n.NameWithOwner, n.Stars, len(n.Topics), strings.Join(topics, ",")))
	}

	return fmt.Sprintf(`{
		"data": {
			"rateLimit": {"cost": 1, "remaining": %d, "resetAt": %q},
			"search": {
				"repositoryCount": %d,
				"pageInfo": {"hasNextPage": %t, "lastCursorId": %q},
				"nodes": [%s]
			}
		}
	}`, remaining, time.Now().Add(time.Hour).UTC().Format(time.RFC3339), total, hasNext, cursor, strings.Join(rendered, ","))
}

// NewSearchPageResponse wraps a well-formed page in a 200 response.
func NewSearchPageResponse(nodes []RepoNode, total int, cursor string, hasNext bool, remaining int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       SearchPageBody(nodes, total, cursor, hasNext, remaining),
	}
}

// NewGraphQLErrorResponse returns a 200 response carrying a GraphQL
// errors array, the way the API reports query-level failures.
func NewGraphQLErrorResponse(errType, message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"errors": [{"message": %q, "type": %q}]}`, message, errType),
	}
}

// NewRateLimitResponse returns the secondary rate limit rejection the
// REST edge of the API produces.
func NewRateLimitResponse(resetAt time.Time) MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"message": "API rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     fmt.Sprintf("%d", resetAt.Unix()),
		},
	}
}

// NewServerErrorResponse returns a 502 upstream failure.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       `{"message": "Server Error"}`,
	}
}

// NewMalformedResponse returns a 200 response whose payload is missing
// the search section.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": {"rateLimit": {"cost": 1, "remaining": 100, "resetAt": "2024-01-01T00:00:00Z"}}}`,
	}
}
