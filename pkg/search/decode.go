package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedResponse indicates a page response missing required fields.
// The page is fatal: it either fully parses into records or wholly fails,
// there is no partial-record recovery.
var ErrMalformedResponse = errors.New("malformed response")

// GraphQLError is one error entry from the response errors array.
type GraphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// QueryError wraps the errors array of a GraphQL response.
type QueryError struct {
	Errors []GraphQLError
}

func (e *QueryError) Error() string {
	if len(e.Errors) == 0 {
		return "graphql query failed"
	}
	return fmt.Sprintf("graphql query failed: %s", e.Errors[0].Message)
}

// RateLimited reports whether the server rejected the query for exceeding
// the point budget.
func (e *QueryError) RateLimited() bool {
	for _, gqlErr := range e.Errors {
		if gqlErr.Type == "RATE_LIMITED" {
			return true
		}
	}
	return false
}

// Wire shapes. Required sections are pointers so absence is detectable;
// a zero value must never stand in for a missing field.
type pageEnvelope struct {
	Data   *pageData      `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

type pageData struct {
	RateLimit *RateLimitStatus `json:"rateLimit"`
	Search    *searchPayload   `json:"search"`
}

type searchPayload struct {
	RepositoryCount int        `json:"repositoryCount"`
	PageInfo        *pageInfo  `json:"pageInfo"`
	Nodes           []repoNode `json:"nodes"`
}

type pageInfo struct {
	HasNextPage  bool   `json:"hasNextPage"`
	LastCursorID string `json:"lastCursorId"`
}

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

type repoNode struct {
	ID            *int64    `json:"id"`
	NameWithOwner string    `json:"nameWithOwner"`
	Stars         int       `json:"stars"`
	IsFork        bool      `json:"isFork"`
	Kilobytes     int       `json:"kilobytes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Description   *string   `json:"description"`

	ClosedIssues *totalCount `json:"closedIssues"`

	// DefaultBranchRef is null for empty repositories. That is data, not
	// an error: the commit count is simply 0.
	DefaultBranchRef *struct {
		Target struct {
			History *totalCount `json:"history"`
		} `json:"target"`
	} `json:"defaultBranchRef"`

	Topics *struct {
		TotalCount int `json:"totalCount"`
		Nodes      []struct {
			Topic struct {
				Name string `json:"name"`
			} `json:"topic"`
		} `json:"nodes"`
	} `json:"topics"`
}

// DecodePage parses one raw search response into a PageResult.
//
// A response with a GraphQL errors array returns *QueryError. A response
// missing any required section (data.search, pageInfo, rateLimit, or a
// required node field) returns ErrMalformedResponse.
func DecodePage(raw []byte) (*PageResult, error) {
	var envelope pageEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(envelope.Errors) > 0 {
		return nil, &QueryError{Errors: envelope.Errors}
	}

	switch {
	case envelope.Data == nil:
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	case envelope.Data.Search == nil:
		return nil, fmt.Errorf("%w: missing search", ErrMalformedResponse)
	case envelope.Data.Search.PageInfo == nil:
		return nil, fmt.Errorf("%w: missing pageInfo", ErrMalformedResponse)
	case envelope.Data.RateLimit == nil:
		return nil, fmt.Errorf("%w: missing rateLimit", ErrMalformedResponse)
	}

	payload := envelope.Data.Search
	page := &PageResult{
		Records:         make([]RepositoryRecord, 0, len(payload.Nodes)),
		TotalMatchCount: payload.RepositoryCount,
		HasNextPage:     payload.PageInfo.HasNextPage,
		NextCursor:      payload.PageInfo.LastCursorID,
		RateLimit:       *envelope.Data.RateLimit,
	}

	for i, node := range payload.Nodes {
		record, err := node.toRecord()
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		page.Records = append(page.Records, record)
	}

	return page, nil
}

func (n *repoNode) toRecord() (RepositoryRecord, error) {
	switch {
	case n.ID == nil:
		return RepositoryRecord{}, fmt.Errorf("%w: missing id", ErrMalformedResponse)
	case n.NameWithOwner == "":
		return RepositoryRecord{}, fmt.Errorf("%w: missing nameWithOwner", ErrMalformedResponse)
	case n.ClosedIssues == nil:
		return RepositoryRecord{}, fmt.Errorf("%w: missing closedIssues", ErrMalformedResponse)
	case n.Topics == nil:
		return RepositoryRecord{}, fmt.Errorf("%w: missing topics", ErrMalformedResponse)
	}

	record := RepositoryRecord{
		ID:               *n.ID,
		NameWithOwner:    n.NameWithOwner,
		Stars:            n.Stars,
		IsFork:           n.IsFork,
		Kilobytes:        n.Kilobytes,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		ClosedIssueCount: n.ClosedIssues.TotalCount,
		TopicCount:       n.Topics.TotalCount,
	}

	if n.Description != nil {
		record.Description = *n.Description
	}

	if n.DefaultBranchRef != nil && n.DefaultBranchRef.Target.History != nil {
		record.CommitCount = n.DefaultBranchRef.Target.History.TotalCount
	}

	if len(n.Topics.Nodes) > 0 {
		record.Topics = make([]string, 0, len(n.Topics.Nodes))
		for _, topicNode := range n.Topics.Nodes {
			record.Topics = append(record.Topics, topicNode.Topic.Name)
		}
	}

	return record, nil
}

// DecodeRateLimit parses a standalone quota probe response.
func DecodeRateLimit(raw []byte) (*RateLimitStatus, error) {
	var envelope struct {
		Data *struct {
			RateLimit *RateLimitStatus `json:"rateLimit"`
		} `json:"data"`
		Errors []GraphQLError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(envelope.Errors) > 0 {
		return nil, &QueryError{Errors: envelope.Errors}
	}
	if envelope.Data == nil || envelope.Data.RateLimit == nil {
		return nil, fmt.Errorf("%w: missing rateLimit", ErrMalformedResponse)
	}
	return envelope.Data.RateLimit, nil
}
