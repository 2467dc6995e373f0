package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cartify/cartify/pkg/errors"
	"github.com/cartify/cartify/pkg/logger"
	"github.com/cartify/cartify/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// ----------------------------------------------------------------------------
// WriteJSON / WriteData
// ----------------------------------------------------------------------------

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, Response{Error: &ErrorResponse{Code: "X", Message: "y"}})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"X","message":"y"}}`, rec.Body.String())
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]string{"id": "addr-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"addr-1"}}`, rec.Body.String())
}

// ----------------------------------------------------------------------------
// WriteError
// ----------------------------------------------------------------------------

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		contains string
	}{
		{"app not found", apperrors.NotFound("address", "a1"), http.StatusNotFound, "NOT_FOUND", "address with id a1 not found"},
		{"app invalid", apperrors.InvalidInput("kind must be shipping or billing"), http.StatusBadRequest, "INVALID_INPUT", "kind must be"},
		{"storage", apperrors.Storage("list addresses", fmt.Errorf("dial tcp: refused")), http.StatusServiceUnavailable, "STORAGE_ERROR", "list addresses failed"},
		{"wrapped not found", fmt.Errorf("get: %w", apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "resource not found"},
		{"wrapped invalid", fmt.Errorf("parse: %w", apperrors.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT", "parse: invalid input"},
		{"bare storage", apperrors.ErrStorage, http.StatusServiceUnavailable, "STORAGE_ERROR", "storage unavailable"},
		{"unknown", fmt.Errorf("kaboom"), http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil)
			WriteError(rec, req, tt.err, slog.New(slog.DiscardHandler))

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.contains)
		})
	}
}

func TestWriteError_ValidationFields(t *testing.T) {
	type form struct {
		City string `json:"city" validate:"notblank"`
	}
	err := validator.Validate(form{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, map[string]string{"city": "is required"}, resp.Error.Fields)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-42")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	WriteError(rec, req, apperrors.NotFound("address", "x"), nil)

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "corr-42", resp.Error.RequestID)
}

func TestWriteError_LogsServerErrorsWithContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("address-service", "info", &buf)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/addresses/a1", nil).
		WithContext(logger.NewContext(context.Background(), l))

	WriteError(httptest.NewRecorder(), req, apperrors.Storage("delete address", fmt.Errorf("conn reset")), nil)
	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "STORAGE_ERROR")

	buf.Reset()
	WriteError(httptest.NewRecorder(), req, apperrors.NotFound("address", "a1"), nil)
	assert.Empty(t, buf.String(), "client errors are not logged")
}

// ----------------------------------------------------------------------------
// ParseUUID
// ----------------------------------------------------------------------------

func TestParseUUID(t *testing.T) {
	want := uuid.New()

	rec := httptest.NewRecorder()
	got, ok := ParseUUID(rec, want.String())
	assert.True(t, ok)
	assert.Equal(t, want, got)

	rec = httptest.NewRecorder()
	got, ok = ParseUUID(rec, "not-a-uuid")
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, got)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}
