// Package errx wraps package sentinel errors with their causes so that
// errors.Is matches both the sentinel and the underlying error.
package errx

import "fmt"

// Wrap returns an error that matches sentinel and err.
func Wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With appends formatted detail to sentinel. The format is placed directly
// after the sentinel text, so callers supply their own separator, and it may
// contain %w verbs of its own.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
