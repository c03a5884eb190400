package weather

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below match these with errors.Is.
var (
	ErrTransport  = errors.New("transport error")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrDecode     = errors.New("decode error")
	ErrSchema     = errors.New("schema error")
	ErrField      = errors.New("field error")
	ErrConnection = errors.New("staging store unreachable")
	ErrWrite      = errors.New("write error")
)

// TransportError is a network-level failure talking to the forecast endpoint.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%v: GET %s: %v", ErrTransport, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// HTTPStatusError is returned for any non-200 response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %d", ErrHTTPStatus, e.StatusCode)
	}
	return fmt.Sprintf("%v: %d: %s", ErrHTTPStatus, e.StatusCode, e.Body)
}

func (e *HTTPStatusError) Unwrap() error { return ErrHTTPStatus }

// DecodeError means the response body was not valid JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// SchemaError means the payload lacks the expected top-level structure.
// It aborts the batch before any write.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %q %s", ErrSchema, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// FieldError marks a single forecast entry that could not be normalized.
type FieldError struct {
	City         string
	Index        int
	RawTimestamp string
	Field        string
	Reason       string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v: entry %d (city=%q ts=%q): %s %s",
		ErrField, e.Index, e.City, e.RawTimestamp, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrField }

// ConnectionError means the staging store could not be reached at the start of a run.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrConnection, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// WriteError marks a record the staging store rejected.
type WriteError struct {
	ID           string
	City         string
	RawTimestamp string
	Err          error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: id=%q (city=%q ts=%q): %v", ErrWrite, e.ID, e.City, e.RawTimestamp, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }

// IsFatal reports whether err aborts a whole run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrField) && !errors.Is(err, ErrWrite)
}
