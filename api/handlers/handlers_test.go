package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/errors"
	"github.com/tebben/riool/models"
)

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) errors.APIError {
	t.Helper()
	var apiError errors.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiError))
	return apiError
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("upload 3: %w", models.ErrNotFound), http.StatusNotFound, "Not found"},
		{fmt.Errorf("%w srs %q", models.ErrInvalid, "x"), http.StatusBadRequest, "Bad request"},
		{badRequest("invalid id"), http.StatusBadRequest, "Bad request"},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		HandleError(rec, tt.err)

		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		apiError := decodeAPIError(t, rec)
		assert.Equal(t, tt.status, apiError.Status)
		assert.Equal(t, tt.title, apiError.Title)
	}
}

func TestNotFoundHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	apiError := decodeAPIError(t, rec)
	require.NotNil(t, apiError.Details)
	assert.Equal(t, "Path '/nope' not found", *apiError.Details)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "05s", formatUptime(5*time.Second))
	assert.Equal(t, "02m 05s", formatUptime(2*time.Minute+5*time.Second))
	assert.Equal(t, "01h 00m 00s", formatUptime(time.Hour))
	assert.Equal(t, "2d 03h 00m 01s", formatUptime(51*time.Hour+time.Second))
}
