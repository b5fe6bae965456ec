// Package errs provides structured error types and helpers for the catalog pipeline.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a pipeline error category.
type Code string

const (
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeRateLimited indicates that the request exceeded a storefront rate limit.
	CodeRateLimited Code = "rate_limited"
	// CodeCircuitOpen indicates the per-domain circuit breaker rejected the request.
	CodeCircuitOpen Code = "circuit_open"
	// CodeValidation indicates a listing failed mandatory-field validation.
	CodeValidation Code = "validation"
	// CodeSerialization indicates snapshot encoding or persistence failed.
	CodeSerialization Code = "serialization"
	// CodeDeadline indicates the run deadline elapsed before completion.
	CodeDeadline Code = "deadline"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates a storefront or sink is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the pipeline.
type E struct {
	Store    string
	Code     Code
	HTTP     int
	RawMsg   string
	Message  string
	Metadata map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the store and error code.
func New(store string, code Code, opts ...Option) *E {
	e := &E{
		Store:    strings.TrimSpace(store),
		Code:     code,
		HTTP:     0,
		RawMsg:   "",
		Message:  "",
		Metadata: nil,
		cause:    nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawMessage captures the raw storefront error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithMetadata merges the provided metadata into the error envelope.
func WithMetadata(meta map[string]string) Option {
	return func(e *E) {
		if len(meta) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			e.Metadata[key] = strings.TrimSpace(v)
		}
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	store := strings.TrimSpace(e.Store)
	if store == "" {
		store = "unknown"
	}
	parts = append(parts, "store="+store)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the pipeline error code from err, walking wrapped causes.
func CodeOf(err error) Code {
	var envelope *E
	if errors.As(err, &envelope) && envelope != nil {
		return envelope.Code
	}
	return ""
}

// Is reports whether err carries the given pipeline error code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether the error category is worth retrying.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeRateLimited, CodeUnavailable:
		return true
	default:
		return false
	}
}
