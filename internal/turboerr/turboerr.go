// Package turboerr defines the structured error taxonomy shared across
// turbogrep's chunker, embedder, remote index client, synchronizer and
// search orchestrator.
package turboerr

import (
	"errors"
	"fmt"
)

// Code identifies an error category callers can branch on with errors.Is.
type Code string

const (
	CodeUnsupportedExtension Code = "unsupported_extension"
	CodeParseFailed          Code = "parse_failed"
	CodeMissingAPIKey        Code = "missing_api_key"
	CodeRequestFailed        Code = "request_failed"
	CodeAPIError             Code = "api_error"
	CodeNamespaceNotFound    Code = "namespace_not_found"
	CodeEmptyQuery           Code = "empty_query"
	CodeNoEmbedding          Code = "no_embedding"
	CodeIndexBuildFailed     Code = "index_build_failed"
)

// Error is turbogrep's structured error type. Retryable is true only for
// CodeNamespaceNotFound, the sole code the search orchestrator recovers
// from automatically.
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets callers write errors.Is(err, turboerr.Code(...)) style checks
// via errors.Is(err, &Error{Code: CodeX}).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Retryable: code == CodeNamespaceNotFound}
}

// HasCode reports whether err (or anything it wraps) carries code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func UnsupportedExtension(ext string) *Error {
	return New(CodeUnsupportedExtension, fmt.Sprintf("unsupported file extension: %s", ext), nil)
}

func ParseFailed(reason string) *Error {
	return New(CodeParseFailed, fmt.Sprintf("parse error: %s", reason), nil)
}

func MissingAPIKey(envVar string) *Error {
	return New(CodeMissingAPIKey, fmt.Sprintf("missing %s", envVar), nil)
}

func RequestFailed(cause error) *Error {
	return New(CodeRequestFailed, "request failed", cause)
}

func APIError(body string) *Error {
	return New(CodeAPIError, fmt.Sprintf("api error: %s", body), nil)
}

func NamespaceNotFound(body string) *Error {
	return New(CodeNamespaceNotFound, fmt.Sprintf("namespace not found: %s", body), nil)
}

func EmptyQuery() *Error {
	return New(CodeEmptyQuery, "empty query provided", nil)
}

func NoEmbedding() *Error {
	return New(CodeNoEmbedding, "no embedding returned for query", nil)
}

func IndexBuildFailed(cause error) *Error {
	return New(CodeIndexBuildFailed, "failed to build index", cause)
}
