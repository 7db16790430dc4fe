// Package collections provides vector collection naming for issuevec.
//
// Each tracker project maps to one collection named jira_issues_<key>, where
// the key is lowercased and hyphens become underscores so the name is valid
// on every vector store backend.
//
// Example:
//
//	name, err := collections.NameForProject("My-Proj")
//	// Result: "jira_issues_my_proj"
package collections

import (
	"errors"
	"fmt"
	"strings"
)

// Prefix starts every issue collection name.
const Prefix = "jira_issues_"

var (
	// ErrInvalidProjectKey indicates an empty or blank project key.
	ErrInvalidProjectKey = errors.New("invalid project key")

	// ErrInvalidCollectionName indicates a name that is not an issue collection.
	ErrInvalidCollectionName = errors.New("invalid collection name format")
)

// NameForProject returns the collection name for a project key.
//
// Returns:
//   - Collection name string
//   - ErrInvalidProjectKey if the key is empty
//
// Example:
//
//	name, err := NameForProject("PRTFL")
//	// Result: "jira_issues_prtfl"
func NameForProject(projectKey string) (string, error) {
	if strings.TrimSpace(projectKey) == "" {
		return "", fmt.Errorf("%w: project key required", ErrInvalidProjectKey)
	}
	return Prefix + SanitizeKey(projectKey), nil
}

// SanitizeKey lowercases a project key and replaces hyphens with underscores.
//
// Example:
//
//	key := SanitizeKey("My-Proj")
//	// Result: "my_proj"
func SanitizeKey(projectKey string) string {
	return strings.ToLower(strings.ReplaceAll(projectKey, "-", "_"))
}

// ParseCollectionName returns the sanitized project key of an issue
// collection name. The original casing and hyphens cannot be recovered.
func ParseCollectionName(collectionName string) (string, error) {
	key, ok := strings.CutPrefix(collectionName, Prefix)
	if !ok || key == "" {
		return "", fmt.Errorf("%w: expected %s<key>, got %q", ErrInvalidCollectionName, Prefix, collectionName)
	}
	return key, nil
}
