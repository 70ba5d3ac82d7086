package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"exprview/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		http int
	}{
		{"column selection", core.NewInvalidColumnSelectionError(0, 0, 2, "same column"), CodePreconditionFailed, http.StatusPreconditionFailed},
		{"column range", core.NewColumnOutOfRangeError(7, 3), CodePreconditionFailed, http.StatusPreconditionFailed},
		{"no matrix", core.ErrNoMatrixLoaded, CodePreconditionFailed, http.StatusPreconditionFailed},
		{"session", fmt.Errorf("%w: abc", core.ErrSessionNotFound), CodeNotFound, http.StatusNotFound},
		{"filter type", fmt.Errorf("%w: %q", core.ErrUnknownFilterType, "Between"), CodeInvalidInput, http.StatusBadRequest},
		{"upstream", core.NewUpstreamError("postgres", stderrors.New("refused")), CodeUpstreamUnavailable, http.StatusBadGateway},
		{"other", stderrors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := FromDomain(tt.err)
			assert.Equal(t, tt.code, GetCode(mapped))
			assert.True(t, stderrors.Is(mapped, tt.err))
			assert.Equal(t, tt.http, HTTPStatus(tt.err))
		})
	}
	assert.Nil(t, FromDomain(nil))
}

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(NotFound("download"), "prepare download")
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "prepare download: download not found", err.Error())

	err = Wrapf(core.ErrNoMatrixLoaded, "session %s", "abc")
	assert.Equal(t, CodePreconditionFailed, GetCode(err))
	assert.True(t, stderrors.Is(err, core.ErrNoMatrixLoaded))

	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeConfigInvalid, stderrors.New("bad port"))
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", err)))
}
