// Package secrets resolves credentials that may be given inline or as a file path.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when neither an inline value nor a file was given.
var ErrNotConfigured = errors.New("secret is not configured")

// Source describes where a secret comes from.
type Source struct {
	// Name appears in error messages.
	Name string
	// Value is the inline secret, usually from the environment.
	Value string
	// File wins over Value when set.
	File string
}

// Configured reports whether src names any secret at all.
func (src Source) Configured() bool {
	return strings.TrimSpace(src.File) != "" || strings.TrimSpace(src.Value) != ""
}

// Load returns the trimmed secret. A missing secret yields ErrNotConfigured; an
// unreadable or empty file is a distinct error so callers can treat a broken
// mount differently from an intentionally absent key.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if !src.Configured() {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}

	value := src.Value
	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from %q: %w", name, file, err)
		}
		value = string(data)
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
	}

	return strings.TrimSpace(value), nil
}
