// Package tracker reads issues through the relay's tool interface.
//
// Relay responses are framed twice: the outer envelope is the transport
// (result.content[0].text) and the text field holds a separate JSON document
// with the actual payload. The two stages are decoded independently.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

// Relay tool names.
const (
	ToolListIssues = "get_project_issues"
	ToolGetIssue   = "get_issue"
)

// Invoker calls a relay tool. Satisfied by *relay.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// Client exposes tracker operations on top of an Invoker.
type Client struct {
	invoker Invoker
	logger  *logging.Logger
}

// NewClient creates a tracker client. A nil logger discards output.
func NewClient(invoker Invoker, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{invoker: invoker, logger: logger.Named("tracker")}
}

// ListIssues fetches up to maxResults issues of a project. An empty
// jqlFilter applies no extra filter.
func (c *Client) ListIssues(ctx context.Context, projectKey string, maxResults int, jqlFilter string) (*IssueList, error) {
	text, err := c.call(ctx, ToolListIssues, map[string]any{
		"project_key": projectKey,
		"max_results": maxResults,
		"jql_filter":  jqlFilter,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Issues *[]json.RawMessage `json:"issues"`
		Total  int                `json:"total"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, unparseable(ToolListIssues, fmt.Errorf("decoding payload: %w", err))
	}
	if payload.Issues == nil {
		return nil, unparseable(ToolListIssues, errors.New("payload has no issues array"))
	}

	list := &IssueList{Issues: make([]Issue, 0, len(*payload.Issues)), Total: payload.Total}
	for i, raw := range *payload.Issues {
		var issue Issue
		if err := json.Unmarshal(raw, &issue); err != nil {
			rejected := RejectedIssue{Index: i, Key: rawKey(raw), Err: err}
			list.Rejected = append(list.Rejected, rejected)
			c.logger.Warn(ctx, "skipping malformed issue",
				zap.Int("index", i),
				zap.String("issue_key", rejected.Key),
				zap.Error(err),
			)
			continue
		}
		list.Issues = append(list.Issues, issue)
	}

	c.logger.Debug(ctx, "listed issues",
		zap.String("project", projectKey),
		zap.Int("count", len(list.Issues)),
		zap.Int("rejected", len(list.Rejected)),
		zap.Int("total", payload.Total),
	)

	return list, nil
}

// rawKey extracts the issue key from an element that failed to decode, or
// returns "" when the key itself is unusable.
func rawKey(raw json.RawMessage) string {
	var head struct {
		Key json.RawMessage `json:"key"`
	}
	if json.Unmarshal(raw, &head) != nil {
		return ""
	}
	var key string
	if json.Unmarshal(head.Key, &key) != nil {
		return ""
	}
	return key
}

// GetIssue fetches one issue by key.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*IssueDetail, error) {
	text, err := c.call(ctx, ToolGetIssue, map[string]any{"issue_key": issueKey})
	if err != nil {
		return nil, err
	}

	raw := json.RawMessage(text)
	var issue Issue
	if err := json.Unmarshal(raw, &issue); err != nil {
		return nil, unparseable(ToolGetIssue, fmt.Errorf("decoding payload: %w", err))
	}

	return &IssueDetail{Issue: issue, Raw: raw}, nil
}

// call invokes a tool and returns the inner payload text.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	out, err := c.invoker.Invoke(ctx, tool, args)
	if err != nil {
		return "", noResponse(tool, err)
	}
	return decodeEnvelope(tool, out)
}

type toolResponse struct {
	Result *struct {
		Content []struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeEnvelope is the first decode stage: it unwraps the transport
// envelope and returns content[0].text without interpreting it.
func decodeEnvelope(tool string, out json.RawMessage) (string, error) {
	var resp toolResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", unparseable(tool, fmt.Errorf("decoding envelope: %w", err))
	}

	if resp.Error != nil {
		return "", noResponse(tool, fmt.Errorf("relay error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if resp.Result == nil || len(resp.Result.Content) == 0 {
		return "", noResponse(tool, errors.New("response has no result content"))
	}

	first := resp.Result.Content[0]
	if first.Text == nil {
		return "", noResponse(tool, errors.New("result content has no text"))
	}
	if resp.Result.IsError {
		return "", noResponse(tool, fmt.Errorf("tool reported error: %s", *first.Text))
	}

	return *first.Text, nil
}
