package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/edgar"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/scan"
	"github.com/sells-group/screener-cli/internal/store"
)

func newServeFixture(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"0": map[string]any{"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
		})
	})
	mux.HandleFunc("/api/xbrl/companyfacts/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cik": 320193, "entityName": "Apple Inc.", "facts": map[string]any{},
		})
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    "test-agent",
		RateLimiters: map[string]*rate.Limiter{},
	})
	client := edgar.NewClient(s, f, config.EdgarConfig{
		BaseURL:      upstream.URL,
		TickerMapURL: upstream.URL + "/files/company_tickers.json",
	})
	return newRouter(scan.NewAnalyzer(client))
}

func TestServe_Healthz(t *testing.T) {
	router := newServeFixture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_AnalyzeKnownTicker(t *testing.T) {
	router := newServeFixture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/AAPL", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticker  string `json:"ticker"`
		CIK     string `json:"cik"`
		Results []any  `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Ticker)
	assert.Equal(t, "0000320193", body.CIK)
	assert.Len(t, body.Results, 10)
}

func TestServe_AnalyzeUnknownTickerIs404(t *testing.T) {
	router := newServeFixture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/ZZZZ", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
