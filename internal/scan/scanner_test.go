package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/edgar"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/prices"
	"github.com/sells-group/screener-cli/internal/store"
)

// barsCSV renders n daily bars with a fixed range and close. A close of 92
// against a 90..110 range yields a Williams %R of -90 on every window.
func barsCSV(n int) string {
	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,95,110,90,92,1000\n", day.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return b.String()
}

type fixture struct {
	scanner *Scanner
	store   *store.SQLiteStore
	sleeps  []time.Duration
}

// newFixture wires a scanner against two local servers: one playing Stooq,
// one playing EDGAR. knownTickers populates the identifier map.
func newFixture(t *testing.T, pricesHandler http.Handler, knownTickers []string, cfg config.ScanConfig) *fixture {
	t.Helper()

	pricesSrv := httptest.NewServer(pricesHandler)
	t.Cleanup(pricesSrv.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		entries := make(map[string]any, len(knownTickers))
		for i, tk := range knownTickers {
			entries[fmt.Sprint(i)] = map[string]any{
				"cik_str": i + 1, "ticker": tk, "title": tk + " Inc.",
			}
		}
		json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("/api/xbrl/companyfacts/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"cik": 1, "entityName": "Test Co", "facts": map[string]any{},
		})
	})
	edgarSrv := httptest.NewServer(mux)
	t.Cleanup(edgarSrv.Close)

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    "test-agent",
		RateLimiters: map[string]*rate.Limiter{},
	})

	priceSvc := prices.NewService(s, f, config.PricesConfig{BaseURL: pricesSrv.URL})
	client := edgar.NewClient(s, f, config.EdgarConfig{
		BaseURL:      edgarSrv.URL,
		TickerMapURL: edgarSrv.URL + "/files/company_tickers.json",
	})

	fx := &fixture{store: s}
	fx.scanner = NewScanner(priceSvc, NewAnalyzer(client), nil, s, cfg)
	fx.scanner.sleep = func(ctx context.Context, d time.Duration) error {
		fx.sleeps = append(fx.sleeps, d)
		return nil
	}
	return fx
}

func defaultCfg() config.ScanConfig {
	return config.ScanConfig{
		Concurrency:       8,
		DegradedThreshold: 0.10,
		DegradedPauseSecs: 5,
		OversoldThreshold: -80,
		MinScore:          0,
		TechnicalWeight:   0.3,
		FundamentalWeight: 0.7,
	}
}

func TestTechnicalScan_SignalsPreserveInputOrder(t *testing.T) {
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(barsCSV(40)))
	}), nil, defaultCfg())

	signals, skips := fx.scanner.TechnicalScan(context.Background(), []string{"AAA", "BBB", "CCC"}, false)
	require.Empty(t, skips)
	require.Len(t, signals, 3)
	assert.Equal(t, "AAA", signals[0].Ticker)
	assert.Equal(t, "CCC", signals[2].Ticker)
	assert.InDelta(t, -90, signals[0].WilliamsR, 1e-9)
	// Every signal carries the smoothed reading alongside the raw one.
	require.NotNil(t, signals[0].EMA)
	assert.InDelta(t, -90, *signals[0].EMA, 1e-9)
	assert.Equal(t, model.IntensityStrong, signals[0].Intensity)
}

func TestTechnicalScan_FailuresBecomeSkipsNotErrors(t *testing.T) {
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.RawQuery, "s=bad.us"):
			w.WriteHeader(http.StatusBadRequest)
		case strings.Contains(r.URL.RawQuery, "s=thin.us"):
			w.Write([]byte("No data"))
		default:
			w.Write([]byte(barsCSV(40)))
		}
	}), nil, defaultCfg())

	signals, skips := fx.scanner.TechnicalScan(context.Background(), []string{"GOOD", "BAD", "THIN"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, "GOOD", signals[0].Ticker)

	require.Len(t, skips, 2)
	assert.Equal(t, model.Skip{Ticker: "BAD", Reason: model.SkipFetchFailed}, skips[0])
	assert.Equal(t, model.Skip{Ticker: "THIN", Reason: model.SkipNoPrices}, skips[1])
}

func TestTechnicalScan_InsufficientHistoryIsNoPrices(t *testing.T) {
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(barsCSV(10)))
	}), nil, defaultCfg())

	signals, skips := fx.scanner.TechnicalScan(context.Background(), []string{"SHRT"}, false)
	assert.Empty(t, signals)
	require.Len(t, skips, 1)
	assert.Equal(t, model.SkipNoPrices, skips[0].Reason)
}

func TestTechnicalScan_DegradesOnceUnderSustainedFailure(t *testing.T) {
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}), nil, defaultCfg())

	tickers := make([]string, 24)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	signals, skips := fx.scanner.TechnicalScan(context.Background(), tickers, false)
	assert.Empty(t, signals)
	assert.Len(t, skips, 24)
	for _, skip := range skips {
		assert.Equal(t, model.SkipFetchFailed, skip.Reason)
	}
	// The pause fires once; concurrency halves once and stays halved.
	assert.Equal(t, []time.Duration{5 * time.Second}, fx.sleeps)
}

func TestTechnicalScan_SymbolDeadlineBecomesDeadlineSkip(t *testing.T) {
	cfg := defaultCfg()
	cfg.SymbolTimeoutSecs = 1
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "s=slow.us") {
			time.Sleep(3 * time.Second)
		}
		w.Write([]byte(barsCSV(40)))
	}), nil, cfg)

	signals, skips := fx.scanner.TechnicalScan(context.Background(), []string{"FAST", "SLOW"}, false)
	require.Len(t, signals, 1)
	assert.Equal(t, "FAST", signals[0].Ticker)
	require.Len(t, skips, 1)
	assert.Equal(t, model.Skip{Ticker: "SLOW", Reason: model.SkipDeadline}, skips[0])
}

func TestScoreOne_SymbolDeadlineBecomesDeadlineSkip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"0": map[string]any{"cik_str": 1, "ticker": "SLOW", "title": "Slow Co"},
		})
	})
	mux.HandleFunc("/api/xbrl/companyfacts/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
		json.NewEncoder(w).Encode(map[string]any{
			"cik": 1, "entityName": "Slow Co", "facts": map[string]any{},
		})
	})
	edgarSrv := httptest.NewServer(mux)
	t.Cleanup(edgarSrv.Close)

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    "test-agent",
		RateLimiters: map[string]*rate.Limiter{},
	})
	client := edgar.NewClient(s, f, config.EdgarConfig{
		BaseURL:      edgarSrv.URL,
		TickerMapURL: edgarSrv.URL + "/files/company_tickers.json",
	})

	cfg := defaultCfg()
	cfg.SymbolTimeoutSecs = 1
	scanner := NewScanner(nil, NewAnalyzer(client), nil, s, cfg)

	record, skip := scanner.scoreOne(context.Background(), model.Signal{Ticker: "SLOW", WilliamsR: -95}, false)
	assert.Nil(t, record)
	require.NotNil(t, skip)
	assert.Equal(t, model.Skip{Ticker: "SLOW", Reason: model.SkipDeadline}, *skip)
}

func TestScreenTickers_UnresolvableBecomeSkips(t *testing.T) {
	// 503 symbols, 60 of them absent from the identifier map: the batch
	// must finish with 443 records and 60 skips, no error.
	known := make([]string, 443)
	all := make([]string, 503)
	for i := 0; i < 503; i++ {
		all[i] = fmt.Sprintf("S%03d", i)
		if i < 443 {
			known[i] = all[i]
		}
	}

	cfg := defaultCfg()
	cfg.OversoldThreshold = 0 // every reading qualifies
	cfg.MaxFundamentals = 0   // no candidate cap
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(barsCSV(40)))
	}), known, cfg)

	out, err := fx.scanner.ScreenTickers(context.Background(), all, false)
	require.NoError(t, err)
	assert.Len(t, out.Records, 443)
	assert.Len(t, out.Skips, 60)
	for _, skip := range out.Skips {
		assert.Equal(t, model.SkipUnresolvable, skip.Reason)
	}

	assert.Equal(t, 503, out.Summary.Scanned)
	assert.Equal(t, 443, out.Summary.Succeeded)
	assert.Equal(t, 60, out.Summary.Skipped)
	assert.NotEmpty(t, out.Summary.ID)

	// Equal combined scores break ties by symbol.
	assert.True(t, sort.SliceIsSorted(out.Records, func(i, j int) bool {
		return out.Records[i].Ticker < out.Records[j].Ticker
	}))
}

func TestScreenTickers_MinScoreFiltersToBelowCutoff(t *testing.T) {
	cfg := defaultCfg()
	cfg.MinScore = 5 // empty filings evaluate to zero passes
	fx := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(barsCSV(40)))
	}), []string{"AAA"}, cfg)

	out, err := fx.scanner.ScreenTickers(context.Background(), []string{"AAA"}, false)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	require.Len(t, out.Skips, 1)
	assert.Equal(t, model.SkipBelowCutoff, out.Skips[0].Reason)
}

func TestSelectCandidates_ThresholdAndCap(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxFundamentals = 1
	fx := newFixture(t, http.NotFoundHandler(), nil, cfg)

	signals := []model.Signal{
		{Ticker: "MILD", WilliamsR: -70},
		{Ticker: "DEEP", WilliamsR: -99},
		{Ticker: "EDGE", WilliamsR: -85},
	}
	var skips []model.Skip
	candidates := fx.scanner.selectCandidates(signals, &skips)

	require.Len(t, candidates, 1)
	assert.Equal(t, "DEEP", candidates[0].Ticker)

	require.Len(t, skips, 2)
	assert.Equal(t, model.Skip{Ticker: "MILD", Reason: model.SkipBelowCutoff}, skips[0])
	assert.Equal(t, model.Skip{Ticker: "EDGE", Reason: model.SkipBelowCutoff}, skips[1])
}

func TestSelectCandidates_ThresholdIsStrict(t *testing.T) {
	// A reading sitting exactly on the threshold is not oversold.
	fx := newFixture(t, http.NotFoundHandler(), nil, defaultCfg())

	signals := []model.Signal{
		{Ticker: "EXACT", WilliamsR: -80},
		{Ticker: "UNDER", WilliamsR: -80.01},
	}
	var skips []model.Skip
	candidates := fx.scanner.selectCandidates(signals, &skips)

	require.Len(t, candidates, 1)
	assert.Equal(t, "UNDER", candidates[0].Ticker)
	require.Len(t, skips, 1)
	assert.Equal(t, model.Skip{Ticker: "EXACT", Reason: model.SkipBelowCutoff}, skips[0])
}

func TestSelectCandidates_SmoothedReadingDecides(t *testing.T) {
	// The raw reading is oversold but the EMA is not; the EMA wins.
	fx := newFixture(t, http.NotFoundHandler(), nil, defaultCfg())

	ema := -70.0
	signals := []model.Signal{
		{Ticker: "SPIKE", WilliamsR: -95, EMA: &ema},
	}
	var skips []model.Skip
	candidates := fx.scanner.selectCandidates(signals, &skips)

	assert.Empty(t, candidates)
	require.Len(t, skips, 1)
	assert.Equal(t, model.SkipBelowCutoff, skips[0].Reason)
}

func TestCombined_Weights(t *testing.T) {
	fx := newFixture(t, http.NotFoundHandler(), nil, defaultCfg())
	// 0.3·((-80+100)/100) + 0.7·(5/10)
	assert.InDelta(t, 0.41, fx.scanner.Combined(-80, 5), 1e-9)
	assert.InDelta(t, 1.0, fx.scanner.Combined(0, 10), 1e-9)
	assert.InDelta(t, 0.0, fx.scanner.Combined(-100, 0), 1e-9)
}
