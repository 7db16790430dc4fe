package tracker

import (
	"encoding/json"
	"strings"
)

// Issue is a single work item from the tracker.
type Issue struct {
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// Fields holds the issue attributes the pipeline uses. Unknown fields are ignored.
type Fields struct {
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Project     Project `json:"project"`
}

// Project identifies the issue's project.
type Project struct {
	Key string `json:"key"`
}

// UnmarshalJSON accepts summary and description as a string, null, or an
// Atlassian Document Format tree. Null and absent values become "".
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw struct {
		Summary     json.RawMessage `json:"summary"`
		Description json.RawMessage `json:"description"`
		Project     *Project        `json:"project"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	summary, err := plainText(raw.Summary)
	if err != nil {
		return err
	}
	description, err := plainText(raw.Description)
	if err != nil {
		return err
	}

	*f = Fields{Summary: summary, Description: description}
	if raw.Project != nil {
		f.Project = *raw.Project
	}
	return nil
}

// plainText renders a JSON text value. Rich-text documents are flattened
// to their text nodes, one line per block.
func plainText(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}

	if trimmed[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	var b strings.Builder
	flatten(doc, &b)
	return strings.TrimSpace(b.String()), nil
}

// blockTypes end with a newline when flattening rich text.
var blockTypes = map[string]bool{
	"paragraph": true, "heading": true, "codeBlock": true,
	"listItem": true, "blockquote": true, "rule": true,
}

func flatten(node any, b *strings.Builder) {
	switch n := node.(type) {
	case map[string]any:
		if text, ok := n["text"].(string); ok {
			b.WriteString(text)
		}
		if t, _ := n["type"].(string); t == "hardBreak" {
			b.WriteString("\n")
		}
		flatten(n["content"], b)
		if t, _ := n["type"].(string); blockTypes[t] {
			b.WriteString("\n")
		}
	case []any:
		for _, child := range n {
			flatten(child, b)
		}
	case string, float64, bool:
		// Scalars outside a text node carry no display text.
	}
}

// IssueList is the result of listing a project's issues. Elements of the
// page that could not be decoded are left out of Issues and listed in Rejected.
type IssueList struct {
	Issues   []Issue         `json:"issues"`
	Rejected []RejectedIssue `json:"-"`

	// Total is the tracker's total match count when the relay reports it.
	Total int `json:"total,omitempty"`
}

// RejectedIssue is a page element that did not decode as an issue.
type RejectedIssue struct {
	Index int    // position in the relay's issues array
	Key   string // "" when the key itself is missing or not a string
	Err   error
}

// IssueDetail is a single issue as returned by the tracker. Raw keeps the
// full payload for display; Issue is the decoded view.
type IssueDetail struct {
	Issue Issue
	Raw   json.RawMessage
}
