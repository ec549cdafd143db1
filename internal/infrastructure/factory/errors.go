package factory

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrTransport matches every *TransportError
	ErrTransport = errors.New("factory: transport failure")
	// ErrBusiness matches every *BusinessError
	ErrBusiness = errors.New("factory: business failure")
)

var (
	// alreadyExistsPattern matches factory messages for an order it already has
	alreadyExistsPattern = regexp.MustCompile(`(?i)already|exist|存在`)
	// missingPattern matches the negated forms, which mean the opposite
	missingPattern = regexp.MustCompile(`(?i)(not|n't|no longer)\s*exist|不存在`)
)

// Detail is the diagnostic shape shared by classified factory errors
type Detail struct {
	Status  int
	Path    string
	Message string
	TraceID string
	Body    string
}

func (d Detail) String() string {
	var parts []string
	if d.Message != "" {
		parts = append(parts, fmt.Sprintf("message=%q", d.Message))
	}
	if d.TraceID != "" {
		parts = append(parts, "traceId="+d.TraceID)
	}
	suffix := strings.Join(parts, " ")
	switch {
	case suffix == "":
		return fmt.Sprintf("RIIN %d %s: %s", d.Status, d.Path, d.Body)
	case d.Body == "":
		return fmt.Sprintf("RIIN %d %s: %s", d.Status, d.Path, suffix)
	default:
		return fmt.Sprintf("RIIN %d %s: %s | %s", d.Status, d.Path, suffix, d.Body)
	}
}

// TransportError is a non-2xx response or a failed round trip.
// Status is 0 when no response was received.
type TransportError struct {
	Detail
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Err != nil && e.Status == 0 {
		return fmt.Sprintf("RIIN %s: %v", e.Path, e.Err)
	}
	return e.Detail.String()
}

// Unwrap returns the underlying network error, if any
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrTransport)
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// BusinessError is a 2xx response with successful=false.
// Status is always 400.
type BusinessError struct {
	Detail
}

// Error implements the error interface
func (e *BusinessError) Error() string {
	return e.Detail.String()
}

// Is allows errors.Is(err, ErrBusiness)
func (e *BusinessError) Is(target error) bool {
	return target == ErrBusiness
}

// IsAlreadyExists reports whether the factory refused the call because the
// order already exists on its side. Only the business message is consulted.
func (e *BusinessError) IsAlreadyExists() bool {
	if missingPattern.MatchString(e.Message) {
		return false
	}
	return alreadyExistsPattern.MatchString(e.Message)
}

// IsAlreadyExists reports whether err is a business failure for an order
// the factory already has
func IsAlreadyExists(err error) bool {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.IsAlreadyExists()
	}
	return false
}
