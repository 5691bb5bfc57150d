package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatvault/server-go/internal/sse"
)

func TestEventsHandler_ServeHTTP(t *testing.T) {
	t.Run("returns 401 when no user in context", func(t *testing.T) {
		handler := NewEventsHandler(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Unauthorized")
	})
}

func TestEventsHandler_sendEvent(t *testing.T) {
	t.Run("marshals the payload into an SSE frame", func(t *testing.T) {
		handler := &EventsHandler{}
		rec := httptest.NewRecorder()
		flusher := rec // httptest.ResponseRecorder implements http.Flusher

		data := map[string]any{
			"connected": true,
			"state":     "ready",
		}

		err := handler.sendEvent(rec, flusher, "connected", data)

		assert.NoError(t, err)
		body := rec.Body.String()
		assert.Contains(t, body, "event: connected\n")
		assert.Contains(t, body, "data: ")
		assert.Contains(t, body, `"state":"ready"`)
	})
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	t.Run("writes event and data lines", func(t *testing.T) {
		handler := &EventsHandler{}
		rec := httptest.NewRecorder()
		flusher := rec

		event := sse.Event{
			Type: "message",
			Data: json.RawMessage(`{"preview": "hello"}`),
		}

		err := handler.sendRawEvent(rec, flusher, event)

		assert.NoError(t, err)
		body := rec.Body.String()
		assert.Contains(t, body, "event: message\n")
		assert.Contains(t, body, `data: {"preview": "hello"}`)
		assert.Contains(t, body, "\n\n")
	})
}
