package fulfillment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates missing credentials or endpoints. It is never retried.
	ErrConfiguration = errors.New("fulfillment: configuration error")
	// ErrMissingImages indicates at least one order line resolved to no image
	ErrMissingImages = errors.New("fulfillment: order line has no print image")
	// ErrInvalidOrderID indicates an order identifier without any digits
	ErrInvalidOrderID = errors.New("fulfillment: invalid order id")
	// ErrOrderNotFound indicates the upstream platform returned no order
	ErrOrderNotFound = errors.New("fulfillment: order not found")
)

// MaxErrorMessageLength is the longest cause written back to the upstream order
const MaxErrorMessageLength = 250

// ValidationError reports order lines that cannot be submitted to the factory.
// The message is meant to be shown to shop staff.
type ValidationError struct {
	OrderID      string
	MissingLines []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"missing print image for: %s. provide print_png_url/design_url in line properties or enable the fallback image",
		strings.Join(e.MissingLines, ", "),
	)
}

// Unwrap allows errors.Is(err, ErrMissingImages)
func (e *ValidationError) Unwrap() error {
	return ErrMissingImages
}

// TruncateMessage cuts a failure cause to MaxErrorMessageLength runes
func TruncateMessage(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorMessageLength {
		return msg
	}
	return string(r[:MaxErrorMessageLength])
}
