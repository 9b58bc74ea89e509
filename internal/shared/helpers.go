// Package shared provides small helpers used across the adapters and
// the command line layer.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

var packageNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidPackageName reports whether value is a legal package identifier:
// letters, digits and underscores, not starting with a digit.
func ValidPackageName(value string) bool {
	return packageNamePattern.MatchString(value)
}

// HTTPStatusError is a non-2xx HTTP response that survived retries.
type HTTPStatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status=%d url=%s", e.Status, e.URL)
	}
	return fmt.Sprintf("status=%d url=%s response=%s", e.Status, e.URL, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPStatusError) Retryable() bool {
	return e.Status >= 500 || e.Status == 429
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// HostSegment turns a registry URL into a single path segment such as
// "pub.dev" or "localhost%3A8080".
func HostSegment(url string) string {
	trimmed := strings.TrimSuffix(url, "/")
	for _, prefix := range []string{"https://", "http://"} {
		trimmed = strings.TrimPrefix(trimmed, prefix)
	}
	replacer := strings.NewReplacer(":", "%3A", "/", "%2F", "\\", "%5C")
	return replacer.Replace(trimmed)
}
