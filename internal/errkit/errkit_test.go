package errkit

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	err := New(RateLimited, "pool exhausted")
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err))
	assert.True(t, Is(err, RateLimited))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ProviderBadResponse, cause, "decode failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
}

func TestAggregateKind(t *testing.T) {
	err := &AllVariantsFailedError{
		FunctionName:    "basic_test",
		PerVariantError: map[string]error{"a": errors.New("x")},
	}
	assert.Equal(t, AllVariantsFailed, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestWithLocation(t *testing.T) {
	err := New(InvalidRequest, "missing field").WithLocation("/input/messages/0")
	assert.Contains(t, err.Error(), "/input/messages/0")
}
