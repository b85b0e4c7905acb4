// Package errkit implements the gateway's closed error-kind taxonomy
// (spec §7). Every error the core surfaces to a caller wraps one of the
// sentinel Kinds below so handlers can map it to an HTTP status or an
// OpenAI-compatible error envelope without string matching.
package errkit

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one entry in the closed ErrorKind taxonomy.
type Kind string

const (
	InvalidRequest          Kind = "invalid_request"
	UnknownVariant          Kind = "unknown_variant"
	InvalidFunctionVariants Kind = "invalid_function_variants"
	TemplateMissing         Kind = "template_missing"
	TemplateRender          Kind = "template_render"
	ProviderNotFound        Kind = "provider_not_found"
	ProviderBadAuth         Kind = "provider_bad_auth"
	ProviderRateLimited     Kind = "provider_rate_limited"
	ProviderBadResponse     Kind = "provider_bad_response"
	ModelProvidersExhausted Kind = "model_providers_exhausted"
	AllVariantsFailed       Kind = "all_variants_failed"
	RateLimited             Kind = "rate_limited"
	Timeout                 Kind = "timeout"
	StorageError            Kind = "storage_error"
	MigrationError          Kind = "migration_error"
	Internal                Kind = "internal"
)

// httpStatus is the default client-facing status for each Kind. StorageError
// never reaches a client (it is logged and swallowed per spec §4.6/§7), so
// it has no externally meaningful status; it is included here only so the
// table is exhaustive for callers that log status regardless of delivery.
var httpStatus = map[Kind]int{
	InvalidRequest:          http.StatusBadRequest,
	UnknownVariant:          http.StatusBadRequest,
	InvalidFunctionVariants: http.StatusInternalServerError,
	TemplateMissing:         http.StatusInternalServerError,
	TemplateRender:          http.StatusInternalServerError,
	ProviderNotFound:        http.StatusBadGateway,
	ProviderBadAuth:         http.StatusBadGateway,
	ProviderRateLimited:     http.StatusBadGateway,
	ProviderBadResponse:     http.StatusBadGateway,
	ModelProvidersExhausted: http.StatusBadGateway,
	AllVariantsFailed:       http.StatusInternalServerError,
	RateLimited:             http.StatusTooManyRequests,
	Timeout:                 http.StatusGatewayTimeout,
	StorageError:            http.StatusInternalServerError,
	MigrationError:          http.StatusInternalServerError,
	Internal:                http.StatusInternalServerError,
}

// Error is the concrete type every core error wraps. Location is an optional
// human-readable pointer (e.g. a JSON pointer for schema errors); Cause is
// the underlying error, preserved for errors.Unwrap/errors.Is/As chains.
type Error struct {
	Kind     Kind
	Message  string
	Location string
	Cause    error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Location)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithLocation attaches a JSON-pointer-style location to an InvalidRequest error.
func (e *Error) WithLocation(loc string) *Error {
	e.Location = loc
	return e
}

// kinder is implemented by aggregate errors (ModelProvidersExhaustedError,
// AllVariantsFailedError) that don't wrap a single *Error.
type kinder interface {
	Kind() Kind
}

// HTTPStatus returns the client-facing status code for the error's Kind, or
// 500 if err does not carry a recognized Kind.
func HTTPStatus(err error) int {
	if status, ok := httpStatus[KindOf(err)]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// KindOf returns the Kind carried by err, or Internal if err does not carry
// a recognized Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}

	return Internal
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ModelProvidersExhaustedError aggregates one error per failed provider,
// keyed by provider name. It is a map, so the attempt order is not kept.
type ModelProvidersExhaustedError struct {
	ModelName        string
	PerProviderError map[string]error
}

func (e *ModelProvidersExhaustedError) Error() string {
	return fmt.Sprintf("model %q: all %d providers failed", e.ModelName, len(e.PerProviderError))
}

func (e *ModelProvidersExhaustedError) Kind() Kind { return ModelProvidersExhausted }

// AllVariantsFailedError aggregates one error per attempted variant.
type AllVariantsFailedError struct {
	FunctionName    string
	PerVariantError map[string]error
}

func (e *AllVariantsFailedError) Error() string {
	return fmt.Sprintf("function %q: all %d variants failed", e.FunctionName, len(e.PerVariantError))
}

func (e *AllVariantsFailedError) Kind() Kind { return AllVariantsFailed }
