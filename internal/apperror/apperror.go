// Package apperror defines the error taxonomy shared by the ingestion,
// pipeline and HTTP layers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	// KindNotFound covers missing volume ids, files and the BIDS root.
	KindNotFound Kind = "not_found"

	// KindInvalidInput covers path traversal, wrong suffixes, wrong array
	// rank and malformed seeds.
	KindInvalidInput Kind = "invalid_input"

	// KindUpstreamParse indicates the NIfTI or HDF5 reader rejected the data.
	KindUpstreamParse Kind = "upstream_parse"

	// KindPipeline indicates an augmentation failed to build or run.
	KindPipeline Kind = "pipeline"
)

// Error is a categorized error carrying a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Detail is the message returned to HTTP clients.
func (e *Error) Detail() string {
	if e.Kind == KindUpstreamParse && e.Err != nil {
		return e.Error()
	}
	return e.Message
}

// StatusCode maps the kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput, KindUpstreamParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a KindInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// UpstreamParse wraps a reader failure.
func UpstreamParse(message string, err error) *Error {
	return &Error{Kind: KindUpstreamParse, Message: message, Err: err}
}

// Pipeline wraps an augmentation failure.
func Pipeline(err error) *Error {
	return &Error{Kind: KindPipeline, Message: "pipeline failed", Err: err}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
