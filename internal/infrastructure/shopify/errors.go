package shopify

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRequestFailed matches every *APIError
var ErrRequestFailed = errors.New("shopify: request failed")

// APIError is a failed Admin API call: a non-2xx REST response, GraphQL
// top-level errors, or mutation userErrors
type APIError struct {
	Status   int
	Path     string
	Messages []string
	Body     string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("shopify %d %s: %s", e.Status, e.Path, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("shopify %d %s: %s", e.Status, e.Path, e.Body)
}

// Is allows errors.Is(err, ErrRequestFailed)
func (e *APIError) Is(target error) bool {
	return target == ErrRequestFailed
}
