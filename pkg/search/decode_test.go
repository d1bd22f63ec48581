package search

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

const validPage = `{
  "data": {
    "rateLimit": {"cost": 1, "remaining": 4999, "resetAt": "2024-05-01T12:00:00Z"},
    "search": {
      "repositoryCount": 1234,
      "pageInfo": {"hasNextPage": true, "lastCursorId": "Y3Vyc29yOjQw"},
      "nodes": [
        {
          "id": 28457823,
          "nameWithOwner": "golang/go",
          "stars": 120000,
          "isFork": false,
          "kilobytes": 350000,
          "createdAt": "2014-08-19T04:33:40Z",
          "updatedAt": "2024-04-30T09:00:00Z",
          "description": "The Go programming language",
          "closedIssues": {"totalCount": 45000},
          "defaultBranchRef": {"target": {"history": {"totalCount": 60000}}},
          "topics": {"totalCount": 4, "nodes": [
            {"topic": {"name": "go"}},
            {"topic": {"name": "golang"}},
            {"topic": {"name": "language"}},
            {"topic": {"name": "compiler"}}
          ]}
        },
        {
          "id": 99,
          "nameWithOwner": "example/empty-repo",
          "stars": 3,
          "isFork": false,
          "kilobytes": 0,
          "createdAt": "2023-01-01T00:00:00Z",
          "updatedAt": "2023-01-01T00:00:00Z",
          "description": null,
          "closedIssues": {"totalCount": 0},
          "defaultBranchRef": null,
          "topics": {"totalCount": 0, "nodes": []}
        }
      ]
    }
  }
}`

func TestDecodePage_Valid(t *testing.T) {
	page, err := DecodePage([]byte(validPage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	if page.TotalMatchCount != 1234 {
		t.Errorf("TotalMatchCount = %d, want 1234", page.TotalMatchCount)
	}
	if !page.HasNextPage {
		t.Error("HasNextPage should be true")
	}
	if page.NextCursor != "Y3Vyc29yOjQw" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
	if len(page.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(page.Records))
	}

	repo := page.Records[0]
	if repo.ID != 28457823 {
		t.Errorf("ID = %d", repo.ID)
	}
	if repo.Owner() != "golang" || repo.Name() != "go" {
		t.Errorf("Owner/Name = %q/%q", repo.Owner(), repo.Name())
	}
	if repo.URL() != "https://github.com/golang/go" {
		t.Errorf("URL = %q", repo.URL())
	}
	if repo.ClosedIssueCount != 45000 {
		t.Errorf("ClosedIssueCount = %d", repo.ClosedIssueCount)
	}
	if repo.CommitCount != 60000 {
		t.Errorf("CommitCount = %d", repo.CommitCount)
	}
	if len(repo.Topics) != 4 || repo.Topics[0] != "go" {
		t.Errorf("Topics = %v", repo.Topics)
	}
	wantCreated := time.Date(2014, 8, 19, 4, 33, 40, 0, time.UTC)
	if !repo.CreatedAt.Equal(wantCreated) {
		t.Errorf("CreatedAt = %v, want %v", repo.CreatedAt, wantCreated)
	}
}

func TestDecodePage_EmptyRepoHasZeroCommits(t *testing.T) {
	page, err := DecodePage([]byte(validPage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	empty := page.Records[1]
	if empty.CommitCount != 0 {
		t.Errorf("CommitCount = %d, want 0 for repo with no default branch", empty.CommitCount)
	}
	if empty.Description != "" {
		t.Errorf("Description = %q, want empty for null description", empty.Description)
	}
}

func TestDecodePage_RateLimitAttached(t *testing.T) {
	page, err := DecodePage([]byte(validPage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	if page.RateLimit.Cost != 1 {
		t.Errorf("Cost = %d", page.RateLimit.Cost)
	}
	if page.RateLimit.Remaining != 4999 {
		t.Errorf("Remaining = %d", page.RateLimit.Remaining)
	}
	if page.RateLimit.ResetAt.IsZero() {
		t.Error("ResetAt should be set")
	}
}

func TestDecodePage_TopicSampleInvariant(t *testing.T) {
	page, err := DecodePage([]byte(validPage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	for _, repo := range page.Records {
		if len(repo.Topics) > 100 {
			t.Errorf("%s: len(Topics) = %d, must be <= 100", repo.NameWithOwner, len(repo.Topics))
		}
		if len(repo.Topics) > repo.TopicCount {
			t.Errorf("%s: len(Topics) = %d > TopicCount = %d",
				repo.NameWithOwner, len(repo.Topics), repo.TopicCount)
		}
	}
}

func TestDecodePage_Malformed(t *testing.T) {
	node := `{
		"id": 1, "nameWithOwner": "a/b",
		"closedIssues": {"totalCount": 0},
		"topics": {"totalCount": 0, "nodes": []}
	}`

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"data": `},
		{"missing data", `{}`},
		{"missing search", `{"data": {"rateLimit": {"cost": 1, "remaining": 10, "resetAt": "2024-05-01T12:00:00Z"}}}`},
		{"missing pageInfo", fmt.Sprintf(`{"data": {
			"rateLimit": {"cost": 1, "remaining": 10, "resetAt": "2024-05-01T12:00:00Z"},
			"search": {"repositoryCount": 1, "nodes": [%s]}}}`, node)},
		{"missing rateLimit", fmt.Sprintf(`{"data": {
			"search": {"repositoryCount": 1, "pageInfo": {"hasNextPage": false, "lastCursorId": ""}, "nodes": [%s]}}}`, node)},
		{"node missing id", `{"data": {
			"rateLimit": {"cost": 1, "remaining": 10, "resetAt": "2024-05-01T12:00:00Z"},
			"search": {"repositoryCount": 1, "pageInfo": {"hasNextPage": false, "lastCursorId": ""},
				"nodes": [{"nameWithOwner": "a/b", "closedIssues": {"totalCount": 0}, "topics": {"totalCount": 0, "nodes": []}}]}}}`},
		{"node missing closedIssues", `{"data": {
			"rateLimit": {"cost": 1, "remaining": 10, "resetAt": "2024-05-01T12:00:00Z"},
			"search": {"repositoryCount": 1, "pageInfo": {"hasNextPage": false, "lastCursorId": ""},
				"nodes": [{"id": 1, "nameWithOwner": "a/b", "topics": {"totalCount": 0, "nodes": []}}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePage([]byte(tt.body))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestDecodePage_GraphQLErrors(t *testing.T) {
	body := `{"errors": [{"message": "Something went wrong", "type": "INTERNAL"}]}`

	_, err := DecodePage([]byte(body))

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("error = %v, want *QueryError", err)
	}
	if queryErr.RateLimited() {
		t.Error("RateLimited() should be false for INTERNAL errors")
	}
}

func TestDecodePage_RateLimitedError(t *testing.T) {
	body := `{"errors": [{"message": "API rate limit exceeded", "type": "RATE_LIMITED"}]}`

	_, err := DecodePage([]byte(body))

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("error = %v, want *QueryError", err)
	}
	if !queryErr.RateLimited() {
		t.Error("RateLimited() should be true")
	}
}

func TestDecodeRateLimit(t *testing.T) {
	body := `{"data": {"rateLimit": {"limit": 5000, "cost": 0, "remaining": 4321, "resetAt": "2024-05-01T12:00:00Z"}}}`

	status, err := DecodeRateLimit([]byte(body))
	if err != nil {
		t.Fatalf("DecodeRateLimit() error = %v", err)
	}
	if status.Remaining != 4321 {
		t.Errorf("Remaining = %d, want 4321", status.Remaining)
	}
}

func TestDecodeRateLimit_Missing(t *testing.T) {
	_, err := DecodeRateLimit([]byte(`{"data": {}}`))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}
