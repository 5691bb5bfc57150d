package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults when absent", query: "", wantLimit: DefaultLimit, wantOffset: 0},
		{name: "explicit values", query: "?limit=10&offset=20", wantLimit: 10, wantOffset: 20},
		{name: "oversized limit clamps to max", query: "?limit=500", wantLimit: MaxLimit, wantOffset: 0},
		{name: "limit at the max passes through", query: "?limit=100", wantLimit: 100, wantOffset: 0},
		{name: "zero limit falls back to default", query: "?limit=0", wantLimit: DefaultLimit, wantOffset: 0},
		{name: "negative limit falls back to default", query: "?limit=-1", wantLimit: DefaultLimit, wantOffset: 0},
		{name: "negative offset resets to zero", query: "?offset=-10", wantLimit: DefaultLimit, wantOffset: 0},
		{name: "garbage values fall back", query: "?limit=abc&offset=xyz", wantLimit: DefaultLimit, wantOffset: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)

			page := ParsePagination(req)

			assert.Equal(t, tc.wantLimit, page.Limit)
			assert.Equal(t, tc.wantOffset, page.Offset)
		})
	}
}
