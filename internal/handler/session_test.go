package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionHandler_Routes(t *testing.T) {
	handler := NewSessionHandler(newTestSessionService())
	router := handler.Routes()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/connect"},
		{http.MethodGet, "/"},
		{http.MethodGet, "/status"},
		{http.MethodGet, "/pairing-code"},
		{http.MethodPost, "/disconnect"},
		{http.MethodDelete, "/"},
	}

	for _, tc := range routes {
		t.Run(tc.method+" "+tc.path+" rejects anonymous requests", func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
		})
	}
}

func TestSessionHandler_Connect(t *testing.T) {
	t.Run("maps a failed initialize to 502", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodPost, "/connect", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Connect(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})
}

func TestSessionHandler_CheckExisting(t *testing.T) {
	t.Run("reports no session for a fresh user", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.CheckExisting(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"hasSession":false`)
	})
}

func TestSessionHandler_Status(t *testing.T) {
	t.Run("reports a fresh user as disconnected", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodGet, "/status", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Status(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"connected":false`)
	})
}

func TestSessionHandler_PairingCode(t *testing.T) {
	t.Run("returns 404 when no code is cached", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodGet, "/pairing-code", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.PairingCode(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})
}

func TestSessionHandler_Disconnect(t *testing.T) {
	t.Run("succeeds even with no active connection", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodPost, "/disconnect", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Disconnect(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)
	})
}

func TestSessionHandler_Delete(t *testing.T) {
	t.Run("succeeds for a user with nothing stored", func(t *testing.T) {
		handler := NewSessionHandler(newTestSessionService())

		req := withUser(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1")
		rec := httptest.NewRecorder()

		handler.Delete(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)
	})
}
