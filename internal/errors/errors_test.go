package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNoConnectionError(3))

	assert.True(t, errors.Is(err, ErrNoConnection))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, ErrCodeNoConnection, GetErrorCode(err))
}

func TestRouterError_UnwrapKeepsCause(t *testing.T) {
	err := NewCancelledError(context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestNewCancelledError_DefaultsToCanceled(t *testing.T) {
	err := NewCancelledError(nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no connection", NewNoConnectionError(1), http.StatusInternalServerError},
		{"configuration", NewConfigurationError(errors.New("missing")), http.StatusInternalServerError},
		{"cancelled", NewCancelledError(context.Canceled), http.StatusGatewayTimeout},
		{"invalid", NewInvalidRequestError("bad barcode"), http.StatusBadRequest},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatusCode(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNoConnectionError(2)))
	assert.False(t, IsRetryable(NewConfigurationError(errors.New("bad yaml"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestWrapError_NilCause(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrCodeInternalError, "x", "y"))
}

func TestNewProbeError_CarriesTarget(t *testing.T) {
	err := NewProbeError("host=db1", errors.New("refused"))
	assert.Equal(t, "host=db1", err.Metadata["target"])
	assert.Contains(t, err.Error(), "refused")
}

func TestAsRouterError(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewInvalidRequestError("bad barcode"))

	routerErr, ok := AsRouterError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeInvalidRequest, routerErr.Code)
	assert.Equal(t, "bad barcode", routerErr.Message)

	_, ok = AsRouterError(errors.New("plain"))
	assert.False(t, ok)
}
