package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("%w: item 3 exceeds capacity", ErrInfeasibleInstance)

	assert.ErrorIs(t, err, ErrInfeasibleInstance)
	assert.NotErrorIs(t, err, ErrInvalidInstance)

	xe, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, 400102, xe.Code)
	assert.Equal(t, http.StatusBadRequest, xe.HTTPStatus())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ErrInvalidConfig, http.StatusBadRequest},
		{ErrGridTooLarge, http.StatusBadRequest},
		{ErrLPSolver, http.StatusInternalServerError},
		{ErrNonConvergence, http.StatusInternalServerError},
		{New(ErrLimitExceeded, 429001, "busy", "", nil), http.StatusTooManyRequests},
		{New(ErrDeadlineExceeded, 504001, "slow", "", nil), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.HTTPStatus(), tt.err.Message)
	}
}

func TestNewKeepsCause(t *testing.T) {
	cause := errors.New("pivot failed")
	err := New(ErrInternal, 500102, "lp solver error", "", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Cause: pivot failed")
	assert.NotEmpty(t, err.Stack)
	assert.Equal(t, "Internal", err.Type.String())
	assert.Equal(t, "Unknown", ErrorType(99).String())
}

func TestFromErrorMisses(t *testing.T) {
	_, ok := FromError(nil)
	assert.False(t, ok)
	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)
}
