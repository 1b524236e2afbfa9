package universe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/store"
)

const sampleCSV = `Symbol,Security,GICS Sector,GICS Sub-Industry
AAPL,Apple Inc.,Information Technology,"Technology Hardware, Storage & Peripherals"
MSFT,Microsoft,Information Technology,Systems Software
BRK.B,Berkshire Hathaway,Financials,Multi-Sector Holdings
`

func newTestLoader(t *testing.T, handler http.Handler) (*Loader, *store.SQLiteStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    "test-agent",
		RateLimiters: map[string]*rate.Limiter{},
	})
	l := NewLoader(s, f, config.UniverseConfig{ConstituentsURL: srv.URL})
	l.retry.Sleep = func(context.Context, time.Duration) error { return nil }
	return l, s
}

func TestTickers_ParsesConstituents(t *testing.T) {
	l, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))

	tickers, err := l.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, tickers)
}

func TestTickers_CacheHitSkipsNetwork(t *testing.T) {
	hits := 0
	l, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleCSV))
	}))

	ctx := context.Background()
	_, err := l.Tickers(ctx)
	require.NoError(t, err)
	_, err = l.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestTickers_StaleFallbackWhenRefreshFails(t *testing.T) {
	healthy := true
	l, s := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleCSV))
	}))

	ctx := context.Background()
	_, err := l.Tickers(ctx)
	require.NoError(t, err)

	// Cache ages past the universe TTL, then the upstream goes down.
	s.SetNow(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	healthy = false

	tickers, err := l.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, tickers)
}

func TestTickers_ErrorWhenNoCopyExists(t *testing.T) {
	l, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := l.Tickers(context.Background())
	assert.Error(t, err)
}

func TestTickers_EmptyCSVIsError(t *testing.T) {
	l, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Security,GICS Sector\n"))
	}))

	_, err := l.Tickers(context.Background())
	assert.Error(t, err)
}
