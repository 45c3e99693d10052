package coverage

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// QueryErrorCode is a machine-readable reason for a per-request failure.
type QueryErrorCode string

const (
	// CodeExclusiveSubsets: a bbox and named-axis spatial subsets were both
	// supplied in one request.
	CodeExclusiveSubsets QueryErrorCode = "exclusive-spatial-subsets"
	// CodeInvalidParameter: a caller-supplied parameter failed validation,
	// or a per-band attribute lookup failed during encoding.
	CodeInvalidParameter QueryErrorCode = "invalid-query-parameter"
	// CodeLoadFailed: the array-load capability reported a failure.
	CodeLoadFailed QueryErrorCode = "load-failed"
	// CodeEncodingFailed: an output encoder reported a failure.
	CodeEncodingFailed QueryErrorCode = "encoding-failed"
)

// QueryError is a recoverable per-request failure. The construction-time
// counterpart is ConnectionError.
type QueryError struct {
	Code QueryErrorCode
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error (%s): %v", e.Code, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func queryErrorf(code QueryErrorCode, format string, args ...interface{}) *QueryError {
	return &QueryError{Code: code, Err: errors.Newf(format, args...)}
}

func wrapQueryError(code QueryErrorCode, err error, msg string) *QueryError {
	return &QueryError{Code: code, Err: errors.Wrap(err, msg)}
}

// IsQueryError reports whether err is (or wraps) a QueryError, and returns
// it if so.
func IsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// ConnectionError is a fatal construction-time failure: the catalog was
// unreachable, the product was not found, or metadata normalisation failed.
// An engine is never constructed in a degraded state.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func connectionError(err error, msg string) *ConnectionError {
	return &ConnectionError{Err: errors.Wrap(err, msg)}
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
