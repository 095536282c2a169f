package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilYieldsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "load"))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "load application")
	assert.Equal(t, "internal: load application: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHasCodeWalksTheChain(t *testing.T) {
	inner := New(CodeNotFound, "application not found")
	outer := Wrap(inner, CodeInternal, "execute command")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(outer, CodeConflict))
	assert.False(t, HasCode(nil, CodeInternal))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestHasCodeSeesThroughForeignWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeForbidden, "admin role required"))
	assert.True(t, HasCode(err, CodeForbidden))
	assert.True(t, Is(err, CodeForbidden))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad score")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	// The outermost code wins.
	wrapped := Wrap(New(CodeNotFound, "missing"), CodeInternal, "load")
	assert.Equal(t, CodeInternal, CodeOf(wrapped))
}

func TestNewfFormats(t *testing.T) {
	err := Newf(CodeValidation, "score %d out of range", 120)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score 120 out of range")
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeInvalidState, http.StatusConflict},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{Code("mystery"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, ToHTTPStatus(tc.code), string(tc.code))
	}
}
