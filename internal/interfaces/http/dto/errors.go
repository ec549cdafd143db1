package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid query or body values
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeDisabled is used when the endpoint is switched off by configuration
	ErrCodeDisabled = "ERR_DISABLED"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the session token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the session token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeBadAudience is used when the session token was issued for another app
	ErrCodeBadAudience = "ERR_BAD_AUDIENCE"
	// ErrCodeBadSignature is used when a webhook signature does not verify
	ErrCodeBadSignature = "ERR_BAD_SIGNATURE"
)

// Order error codes
const (
	// ErrCodeNotFound is used when the upstream order does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeMissingImages is used when an order line resolves to no print image
	ErrCodeMissingImages = "ERR_MISSING_IMAGES"
	// ErrCodeUpstream is used when the shop platform call fails
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeFactory is used when the factory call fails
	ErrCodeFactory = "ERR_FACTORY"
	// ErrCodeFetchFailed is used when a proxied image cannot be fetched
	ErrCodeFetchFailed = "ERR_FETCH_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeDisabled:        http.StatusNotFound,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeBadAudience:  http.StatusUnauthorized,
	ErrCodeBadSignature: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeMissingImages: http.StatusUnprocessableEntity,
	ErrCodeUpstream:      http.StatusBadGateway,
	ErrCodeFactory:       http.StatusBadGateway,
	ErrCodeFetchFailed:   http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
