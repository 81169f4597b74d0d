package bunny

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every failure a handler can return.
type ErrorKind string

const (
	KindInvalidMethod            ErrorKind = "invalid_http_method"
	KindMissingAccessKey         ErrorKind = "missing_access_key"
	KindMissingLibraryID         ErrorKind = "missing_library_id"
	KindMissingUserID            ErrorKind = "missing_user_id"
	KindMissingCollectionID      ErrorKind = "missing_collection_id"
	KindMissingVideoID           ErrorKind = "missing_video_id"
	KindMissingTitle             ErrorKind = "missing_video_title"
	KindMissingName              ErrorKind = "missing_name"
	KindInvalidFile              ErrorKind = "missing_or_invalid_file"
	KindCollectionCreationLocked ErrorKind = "collection_creation_locked"
	KindCollectionCreationFailed ErrorKind = "collection_creation_failed"
	KindInvalidCollectionList    ErrorKind = "invalid_collection_list_response"
	KindNoUpdateData             ErrorKind = "no_update_data"
	KindLibraryCreationFailed    ErrorKind = "library_creation_failed"
	KindStorageZoneFailed        ErrorKind = "storage_zone_creation_failed"
	KindInvalidRegion            ErrorKind = "invalid_replication_region"
	KindInvalidResponse          ErrorKind = "invalid_response"
	KindCircuitOpen              ErrorKind = "circuit_open"
	KindRequestBuild             ErrorKind = "request_build_failed"
	KindHTTPError                ErrorKind = "http_error"
	KindTransportError           ErrorKind = "transport_error"
	KindAPIFailure               ErrorKind = "api_failure"
	KindUnknown                  ErrorKind = "unknown"
)

// Error is a classified failure. Two Errors match under errors.Is when their
// kinds are equal, so detailed errors still match the sentinels below.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinel errors, one per kind
var (
	ErrInvalidMethod             = &Error{Kind: KindInvalidMethod, Message: "invalid HTTP method"}
	ErrMissingAccessKey          = &Error{Kind: KindMissingAccessKey, Message: "access key is not set"}
	ErrMissingLibraryID          = &Error{Kind: KindMissingLibraryID, Message: "library ID is not set"}
	ErrMissingUserID             = &Error{Kind: KindMissingUserID, Message: "user ID is required"}
	ErrMissingCollectionID       = &Error{Kind: KindMissingCollectionID, Message: "collection ID is required"}
	ErrMissingVideoID            = &Error{Kind: KindMissingVideoID, Message: "video ID is required"}
	ErrMissingTitle              = &Error{Kind: KindMissingTitle, Message: "video title is required"}
	ErrMissingName               = &Error{Kind: KindMissingName, Message: "name is required"}
	ErrInvalidFile               = &Error{Kind: KindInvalidFile, Message: "the file path is missing or invalid"}
	ErrCollectionCreationLocked  = &Error{Kind: KindCollectionCreationLocked, Message: "collection creation already in progress, try again shortly"}
	ErrCollectionCreationFailed  = &Error{Kind: KindCollectionCreationFailed, Message: "failed to create collection"}
	ErrInvalidCollectionList     = &Error{Kind: KindInvalidCollectionList, Message: "invalid response when fetching collections"}
	ErrNoUpdateData              = &Error{Kind: KindNoUpdateData, Message: "no valid data provided for update"}
	ErrLibraryCreationFailed     = &Error{Kind: KindLibraryCreationFailed, Message: "failed to create video library"}
	ErrStorageZoneCreationFailed = &Error{Kind: KindStorageZoneFailed, Message: "failed to create storage zone"}
	ErrInvalidRegion             = &Error{Kind: KindInvalidRegion, Message: "invalid replication region"}
	ErrInvalidResponse           = &Error{Kind: KindInvalidResponse, Message: "unexpected response from Bunny API"}
	ErrCircuitOpen               = &Error{Kind: KindCircuitOpen, Message: "circuit breaker is open"}
	ErrAPIFailure                = &Error{Kind: KindAPIFailure, Message: "Bunny API request failed after retries"}
)

// APIError is a non-2xx response from Bunny.
type APIError struct {
	StatusCode int
	Body       string
	// RetryAfter is the parsed Retry-After header, zero when absent
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bunny API error: status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports a 429 response
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// TransportError is a network-level failure: no response was received.
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RequestError is a local failure building or encoding a request. It is
// never retried.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// PermanentError marks an attempt failure that retrying cannot fix. The
// retry coordinator returns it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so that it is not retried. It returns nil for nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// ExhaustedError is returned once every attempt of a call has failed. It
// matches ErrAPIFailure but does not unwrap to the last attempt's error;
// the Last field keeps it for inspection.
type ExhaustedError struct {
	Op       string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempts: %v", ErrAPIFailure.Message, e.Op, e.Attempts, e.Last)
}

// Is matches ErrAPIFailure
func (e *ExhaustedError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindAPIFailure
}

// KindOf returns the classification of err. It returns "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return KindAPIFailure
	}
	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return KindHTTPError
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransportError
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return KindRequestBuild
	}
	return KindUnknown
}
