package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArchiveHandler_Run(t *testing.T) {
	t.Run("returns 401 when no user in context", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		rec := httptest.NewRecorder()

		handler.Run(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 400 when request body is invalid", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		body := bytes.NewBufferString(`{invalid json}`)
		req := withUser(httptest.NewRequest(http.MethodPost, "/run", body), "user-1")
		rec := httptest.NewRecorder()

		handler.Run(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid request body")
	})

	t.Run("returns 400 when limit is negative", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		body := bytes.NewBufferString(`{"limit": -5}`)
		req := withUser(httptest.NewRequest(http.MethodPost, "/run", body), "user-1")
		rec := httptest.NewRecorder()

		handler.Run(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "limit must not be negative")
	})

	t.Run("returns 409 without a connected session", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		// No body at all: an empty request means no per-chat cap.
		req := withUser(httptest.NewRequest(http.MethodPost, "/run", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Run(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "SESSION_NOT_READY")
	})

	t.Run("tolerates a null limit", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		body := bytes.NewBufferString(`{"limit": null}`)
		req := withUser(httptest.NewRequest(http.MethodPost, "/run", body), "user-1")
		rec := httptest.NewRecorder()

		handler.Run(rec, req)

		// Parsing succeeds; the run still requires a ready session.
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestArchiveHandler_Purge(t *testing.T) {
	t.Run("returns 401 when no user in context", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		rec := httptest.NewRecorder()

		handler.Purge(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("purges an empty archive", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())

		req := withUser(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Purge(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"conversationsDeleted":0`)
	})
}

func TestArchiveHandler_Routes(t *testing.T) {
	t.Run("registers the run route", func(t *testing.T) {
		handler := NewArchiveHandler(newTestArchiveService())
		router := handler.Routes()

		req := httptest.NewRequest(http.MethodPost, "/run", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		// 401 (no user) rather than 404 proves the route is wired.
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
