package nutrition

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/config"
	"github.com/noot-app/nutrition-log-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
	"count": 2,
	"page_size": 2,
	"products": [
		{"code": "1", "product_name": "Pear", "brands": "Orchard",
		 "nutriments": {"energy-kcal_100g": 57, "proteins_100g": 0.4, "sugars_100g": 9.8, "carbohydrates_100g": 15.2}},
		{"code": "2", "product_name": "Pear juice", "nutriments": {}}
	]
}`

func TestRemoteClient_SearchProductsByName(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi/search.pl", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, searchBody)
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL+"/", srv.Client(), config.NewTestLogger(io.Discard, "debug"))
	products, err := client.SearchProductsByName(context.Background(), "pear", 5)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Contains(t, gotQuery, "search_terms=pear")
	assert.Contains(t, gotQuery, "json=1")
	assert.Contains(t, gotQuery, "page_size=5")
	assert.Contains(t, gotAgent, "nutrition-log-mcp-server/")

	record, ok := products[0].NutrientRecord(types.MacroSugar)
	require.True(t, ok)
	assert.Equal(t, types.NutrientRecord{Calories: 57, Protein: 0.4, SugarOrCarbs: 9.8}, record)
}

func TestRemoteClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errText string
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			errText: "status 503",
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "{not json")
			},
			errText: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewRemoteClient(srv.URL, srv.Client(), config.NewTestLogger(io.Discard, "debug"))
			_, err := client.SearchProductsByName(context.Background(), "pear", 5)
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestRemoteClient_TimeoutThroughResolver(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	logger := config.NewTestLogger(io.Discard, "debug")
	remote := NewRemoteClient(srv.URL, srv.Client(), logger)
	r := NewResolver(Options{Remote: remote, Timeout: 50 * time.Millisecond}, logger)

	_, _, err := r.Lookup(context.Background(), "pear")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}
