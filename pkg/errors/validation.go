package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// policyNameRegex matches registered policy names such as "generic".
var policyNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidatePolicyName validates a backend policy name supplied by a user.
func ValidatePolicyName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "policy name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "policy name too long (max 64 characters)")
	}
	if !policyNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid policy name: %q", name)
	}
	return nil
}

// ValidateNodeName validates an operator name read from a graph file.
// Names end up in DOT labels and log lines, so control characters are
// rejected.
func ValidateNodeName(name string) error {
	if len(name) > 256 {
		return New(ErrCodeInvalidGraph, "node name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGraph, "node name contains invalid control characters")
		}
	}
	return nil
}

// ValidatePath validates a relative file path received from a remote
// caller. It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
