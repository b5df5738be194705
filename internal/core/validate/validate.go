// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"
)

// CommentText validates that a comment has text after trimming whitespace.
func CommentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("comment text cannot be empty")
	}
	return nil
}

// CommentTextField returns a criterio validator for comment text.
func CommentTextField(field, text string) error {
	return criterio.Run(field, text, CommentText)
}

// CommentNumber validates a 1-based comment number.
func CommentNumber(n int) error {
	if n < 1 {
		return fmt.Errorf("comment number must be 1 or greater, got %d", n)
	}
	return nil
}

// CommentNumberField returns a criterio validator for comment numbers.
func CommentNumberField(field string, n int) error {
	return criterio.Run(field, n, CommentNumber)
}
