package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/paddleduel/internal/model"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{model.ErrProfileNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", model.ErrStatsNotFound), http.StatusNotFound},
		{model.ErrRoomNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: bad", model.ErrValidation), http.StatusBadRequest},
		{NewInvalidRequestError("limit"), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusOf(tc.err), tc.err.Error())
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`, rr.Body.String())
}

func TestWritePanic(t *testing.T) {
	rr := httptest.NewRecorder()
	WritePanic(rr, httptest.NewRequest(http.MethodGet, "/", nil), "boom")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), CodeInternalError)
}
