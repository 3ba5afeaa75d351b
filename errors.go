package httprpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorKind is a machine-readable failure category.
type ErrorKind string

const (
	// KindConfiguration reports malformed service metadata. It is raised while
	// building descriptors or a Factory and is never retried.
	KindConfiguration ErrorKind = "configuration"

	// KindUsage reports a violated calling contract, such as a capture
	// callback that made no call.
	KindUsage ErrorKind = "usage"

	// KindTransport reports that the request could not be sent, including
	// network errors, timeouts and context cancellation.
	KindTransport ErrorKind = "transport"

	// KindResponseProcessing reports that an after-response hook failed.
	KindResponseProcessing ErrorKind = "response_processing"

	// KindErrorResponse reports a non-2xx status code from the server.
	KindErrorResponse ErrorKind = "error_response"

	// KindDataParse reports a successful status whose payload could not be
	// decoded into the declared return type.
	KindDataParse ErrorKind = "data_parse"

	// KindUnsupportedBinding reports a binding source that cannot carry the
	// parameter's declared type, e.g. a struct bound as a form field.
	KindUnsupportedBinding ErrorKind = "unsupported_binding"

	// KindInvalidBindingData reports a runtime value whose shape does not fit
	// its binding source, e.g. a non-file value bound as a form file.
	KindInvalidBindingData ErrorKind = "invalid_binding_data"
)

// Error is the single failure type surfaced by every call path.
// Response is set whenever the failure happened after a response arrived;
// for KindErrorResponse, Body holds the buffered response body.
type Error struct {
	Kind     ErrorKind
	Message  string
	Details  map[string]any
	Response *http.Response
	Body     []byte
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the captured response, or 0 when no
// response was received.
func (e *Error) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// NewError creates a new error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a copy of the error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// wrapError creates an error of the given kind around cause.
func wrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// asError returns err unchanged if it already is an *Error, otherwise it wraps
// it into a new error of the fallback kind.
func asError(err error, fallback ErrorKind, message string, resp *http.Response) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if rpcErr.Response == nil && resp != nil {
			cp := *rpcErr
			cp.Response = resp
			return &cp
		}
		return rpcErr
	}
	return &Error{
		Kind:     fallback,
		Message:  message,
		Response: resp,
		Err:      err,
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or the empty kind if err is not an *Error.
func KindOf(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return ""
}

// FromValidation converts a validator error into an *Error of the given kind.
// Each failing field is reported in Details. Other errors are wrapped as is.
func FromValidation(kind ErrorKind, err error) *Error {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return wrapError(kind, err, "validation failed")
	}
	details := make(map[string]any, len(valErrs))
	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		msg := formatValidationError(ve)
		details[ve.Field()] = msg
		messages = append(messages, ve.Field()+": "+msg)
	}
	return &Error{
		Kind:    kind,
		Message: strings.Join(messages, "; "),
		Details: details,
		Err:     err,
	}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "len":
		return fmt.Sprintf("must have length %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
