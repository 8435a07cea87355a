package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestObservability_PassesThrough(t *testing.T) {
	handler := Observability(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestObservability_DefaultStatusOK(t *testing.T) {
	handler := Observability(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestObservability_ErrorStatus(t *testing.T) {
	handler := Observability(newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chats/abc/export", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWrapper_TracksSize(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapper := &responseWrapper{ResponseWriter: rec, statusCode: http.StatusOK}

	n, err := wrapper.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = wrapper.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), wrapper.responseSize)
}
