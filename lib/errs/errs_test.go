package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "gone")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", New(CodeAccessDenied, "nope"))
	assert.Equal(t, CodeAccessDenied, CodeOf(wrapped))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(CodeTargetAlreadyExists, "target %s exists", "https://x.com/")
	assert.True(t, errors.Is(err, New(CodeTargetAlreadyExists, "")))
	assert.False(t, errors.Is(err, New(CodeNotFound, "")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeBackendUnavailable, "query failed", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeBackendUnavailable, CodeOf(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidScheme))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeAccessDenied))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeTargetAlreadyExists))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(CodeBackendUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
}
