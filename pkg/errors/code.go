package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Authentication errors
// 13000-13999: Result & Grading queue errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301
	InvalidValue     ErrorCode = 10302

	// ========== Authentication Errors (11000-11999) ==========

	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// ========== Result & Grading Queue Errors (13000-13999) ==========

	// Result store (13000-13099)
	ResultNotFound         ErrorCode = 13000
	ResultStoreUnavailable ErrorCode = 13001
	ResultCreateFailed     ErrorCode = 13002
	InvalidPredicate       ErrorCode = 13003

	// Integrity (13100-13199)
	InvalidStatus         ErrorCode = 13100
	MissingRequiredEntity ErrorCode = 13101

	// Grading queue (13200-13299)
	ClaimConflict ErrorCode = 13200
	LeaseLost     ErrorCode = 13201
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:       "Database operation failed",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	CacheError: "Cache operation failed",

	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",
	InvalidValue:     "Invalid value",

	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	ResultNotFound:         "Submission result not found",
	ResultStoreUnavailable: "Result store temporarily unavailable",
	ResultCreateFailed:     "Failed to create submission result",
	InvalidPredicate:       "Invalid result filter",

	InvalidStatus:         "Result status has no external mapping",
	MissingRequiredEntity: "Required entity for result is missing",

	ClaimConflict: "Submission was claimed concurrently",
	LeaseLost:     "Grading lease is no longer held",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == ResultNotFound:
		return 404
	case c == LeaseLost, c == ClaimConflict, c == RecordAlreadyExists:
		return 409
	case c == ServiceUnavailable, c == ResultStoreUnavailable:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidPredicate:
		return 400
	default:
		return 500
	}
}

// Transient reports whether a caller may retry the operation later.
func (c ErrorCode) Transient() bool {
	switch c {
	case ResultStoreUnavailable, ServiceUnavailable, Timeout, CacheError:
		return true
	}
	return false
}

// Integrity reports whether the code signals stored data that cannot be rendered.
func (c ErrorCode) Integrity() bool {
	return c == InvalidStatus || c == MissingRequiredEntity
}
