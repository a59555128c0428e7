// Package result defines the closed vocabulary of domain failures and the
// Result type every fallible core operation returns instead of a bare error.
package result

// Code classifies a Failure.
type Code string

// The complete set of failure codes.
const (
	CodeAuth      Code = "AUTH"
	CodeForbidden Code = "FORBIDDEN"
	CodeNotFound  Code = "NOT_FOUND"
	CodeConflict  Code = "CONFLICT"
	CodeInvalid   Code = "INVALID"
	CodeRateLimit Code = "RATE_LIMIT"
	CodeTimeout   Code = "TIMEOUT"
	CodeNetwork   Code = "NETWORK"
	CodeUpstream  Code = "UPSTREAM"
	CodeCancelled Code = "CANCELLED"
)

// Failure is an expected domain error. Values are never mutated after
// construction.
type Failure struct {
	Code    Code
	Message string
	Meta    map[string]string
	Cause   error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return string(f.Code) + ": " + f.Message
}

// Unwrap exposes the underlying cause, if any.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Result holds either a value or a Failure.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a Failure.
func Err[T any](f *Failure) Result[T] {
	return Result[T]{failure: f}
}

// IsOk reports whether the result carries a value.
func (r Result[T]) IsOk() bool {
	return r.failure == nil
}

// Value returns the success value. Only meaningful when IsOk is true.
func (r Result[T]) Value() T {
	return r.value
}

// Failure returns the failure, or nil on success.
func (r Result[T]) Failure() *Failure {
	return r.failure
}

var statusCodes = map[int]Code{
	401: CodeAuth,
	403: CodeForbidden,
	404: CodeNotFound,
	408: CodeTimeout,
	409: CodeConflict,
	422: CodeInvalid,
	429: CodeRateLimit,
	502: CodeUpstream,
	503: CodeNetwork,
}

// FailureFromStatus maps an HTTP status code to a Failure. Statuses outside
// the known table default to UPSTREAM.
func FailureFromStatus(status int, message string, meta map[string]string) *Failure {
	code, ok := statusCodes[status]
	if !ok {
		code = CodeUpstream
	}
	return &Failure{Code: code, Message: message, Meta: meta}
}

// NetworkFailure wraps a transport-level error.
func NetworkFailure(cause error) *Failure {
	return &Failure{
		Code:    CodeNetwork,
		Message: "Network error. Check your internet connection.",
		Cause:   cause,
	}
}

// AuthFailure builds an AUTH failure. An empty message selects the default
// no-token-configured message.
func AuthFailure(message string) *Failure {
	if message == "" {
		message = "GitHub token not configured"
	}
	return &Failure{Code: CodeAuth, Message: message}
}

// RateLimitFailure builds a RATE_LIMIT failure. When the reset time is known
// it is included in the message and carried in Meta under "resetAt".
func RateLimitFailure(resetAt string) *Failure {
	if resetAt == "" {
		return &Failure{
			Code:    CodeRateLimit,
			Message: "Rate limited. Please try again later.",
		}
	}
	return &Failure{
		Code:    CodeRateLimit,
		Message: "Rate limited. Resets at " + resetAt,
		Meta:    map[string]string{"resetAt": resetAt},
	}
}

// CancelledFailure marks an operation aborted by context cancellation.
func CancelledFailure(cause error) *Failure {
	return &Failure{Code: CodeCancelled, Message: "Operation cancelled", Cause: cause}
}
