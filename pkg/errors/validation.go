package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePath validates a content-relative path requested from outside the
// build, such as a preview URL. The rules are intentionally conservative:
//   - No empty paths
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

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// languageTagRegex matches fenced code block info strings we accept as a
// diagram language tag.
var languageTagRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_+-]*$`)

// ValidateLanguageTag validates the fenced code block language that
// activates diagram rendering.
func ValidateLanguageTag(lang string) error {
	if lang == "" {
		return New(ErrCodeInvalidConfig, "diagram language cannot be empty")
	}
	if !languageTagRegex.MatchString(lang) {
		return New(ErrCodeInvalidConfig, "invalid diagram language: %q", lang)
	}
	return nil
}

// ValidateBinary validates the renderer executable name. Either a bare
// command name resolved through PATH or a path to the binary is accepted;
// shell metacharacters are not, since the value ends up in exec arguments
// and log lines.
func ValidateBinary(bin string) error {
	if bin == "" {
		return New(ErrCodeInvalidConfig, "renderer binary cannot be empty")
	}
	if strings.ContainsAny(bin, ";&|`$<>\"'\n\r\x00") {
		return New(ErrCodeInvalidConfig, "renderer binary contains invalid characters: %q", bin)
	}
	return nil
}
