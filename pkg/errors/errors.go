package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the broad class of a failure, used for log fields and retry decisions
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeStatus       ErrorType = "status"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeSchema       ErrorType = "schema"
	ErrorTypeField        ErrorType = "field"
	ErrorTypeExhausted    ErrorType = "exhausted"
	ErrorTypeInvalidToken ErrorType = "invalid_token"
	ErrorTypeNoDerivative ErrorType = "no_derivative"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// TransportError is a connection, timeout or body read failure
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error (%s %s): %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-success HTTP status returned by the service
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status error (code %d): %s", e.Code, e.URL)
}

// DecodeError means the response body was not valid JSON of the expected shape
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("parsing error (%s): %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IssueKind identifies what is wrong with a field
type IssueKind string

const (
	IssueMissing      IssueKind = "missing"
	IssueWrongType    IssueKind = "wrong_type"
	IssueInvalidValue IssueKind = "invalid_value"
)

// ValidationIssue records a single structural problem found in a response
type ValidationIssue struct {
	Path   string
	Kind   IssueKind
	Reason string
}

func (i ValidationIssue) String() string {
	if i.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", i.Path, i.Kind, i.Reason)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Kind)
}

// SchemaError carries the issues that made a response unusable
type SchemaError struct {
	Endpoint string
	Issues   []ValidationIssue
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("schema error (%s): %s", e.Endpoint, strings.Join(parts, "; "))
}

// FieldError is a single field that could not be extracted with Required severity
type FieldError struct {
	Issue ValidationIssue
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("field error: %s: %v", e.Issue, e.Err)
	}
	return fmt.Sprintf("field error: %s", e.Issue)
}

func (e *FieldError) Unwrap() error { return e.Err }

// RetryExhaustedError is returned once every permitted attempt has failed
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// InvalidTokenError is returned for an empty token or one that does not start with a base-62 digit
type InvalidTokenError struct {
	Token  string
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid album token %q: %s", e.Token, e.Reason)
}

// NoUsableDerivativeError means no derivative of a photo has a resolved URL
type NoUsableDerivativeError struct {
	PhotoGUID string
}

func (e *NoUsableDerivativeError) Error() string {
	return fmt.Sprintf("no usable derivative for photo %s", e.PhotoGUID)
}

// TypeOf classifies an error into an ErrorType
func TypeOf(err error) ErrorType {
	var (
		exhausted *RetryExhaustedError
		transport *TransportError
		status    *StatusError
		decode    *DecodeError
		schema    *SchemaError
		field     *FieldError
		token     *InvalidTokenError
		noDeriv   *NoUsableDerivativeError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &exhausted):
		return ErrorTypeExhausted
	case errors.As(err, &transport):
		return ErrorTypeNetwork
	case errors.As(err, &status):
		return ErrorTypeStatus
	case errors.As(err, &decode):
		return ErrorTypeParsing
	case errors.As(err, &schema):
		return ErrorTypeSchema
	case errors.As(err, &field):
		return ErrorTypeField
	case errors.As(err, &token):
		return ErrorTypeInvalidToken
	case errors.As(err, &noDeriv):
		return ErrorTypeNoDerivative
	default:
		return ErrorTypeUnknown
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none
func StatusCode(err error) int {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code
	}
	return 0
}
