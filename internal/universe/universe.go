// Package universe loads the S&P 500 ticker universe for batch scans.
package universe

import (
	"context"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/resilience"
	"github.com/sells-group/screener-cli/internal/store"
)

const cacheKey = "sp500"

// constituent is one row of the published constituents CSV.
type constituent struct {
	Symbol   string `csv:"Symbol"`
	Security string `csv:"Security"`
	Sector   string `csv:"GICS Sector"`
}

// Loader fetches and caches the ticker universe.
type Loader struct {
	cache store.Store
	http  fetcher.Fetcher
	cfg   config.UniverseConfig
	retry resilience.RetryConfig
}

// NewLoader builds a universe loader on top of the durable cache and fetcher.
func NewLoader(cache store.Store, http fetcher.Fetcher, cfg config.UniverseConfig) *Loader {
	retry := resilience.UpstreamRetryConfig()
	retry.OnRetry = resilience.RetryLogger("universe", "fetch")
	return &Loader{cache: cache, http: http, cfg: cfg, retry: retry}
}

// Tickers returns the universe symbols in upstream order. A fresh cached
// copy is served without a fetch. When the cache is stale and the refresh
// fails, the stale copy is served with a warning; the loader errors only
// when no copy exists at all. A scan cannot start without a universe.
func (l *Loader) Tickers(ctx context.Context) ([]string, error) {
	cached, err := store.GetJSON[[]string](ctx, l.cache, store.EntityUniverse, cacheKey)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return *cached, nil
	}

	tickers, err := resilience.DoVal(ctx, l.retry, l.fetch)
	if err != nil {
		stale, staleErr := store.GetStaleJSON[[]string](ctx, l.cache, store.EntityUniverse, cacheKey)
		if staleErr == nil && stale != nil {
			zap.L().Warn("universe: refresh failed, serving stale constituents",
				zap.Int("count", len(*stale)), zap.Error(err))
			return *stale, nil
		}
		return nil, eris.Wrap(err, "universe: fetch constituents")
	}

	if err := store.PutJSON(ctx, l.cache, store.EntityUniverse, cacheKey, tickers); err != nil {
		return nil, eris.Wrap(err, "universe: cache constituents")
	}
	return tickers, nil
}

func (l *Loader) fetch(ctx context.Context) ([]string, error) {
	body, err := l.http.Download(ctx, l.cfg.ConstituentsURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}

	var rows []constituent
	if err := csvutil.Unmarshal(raw, &rows); err != nil {
		return nil, eris.Wrap(err, "universe: parse constituents csv")
	}

	tickers := make([]string, 0, len(rows))
	for _, r := range rows {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		if sym != "" {
			tickers = append(tickers, sym)
		}
	}
	if len(tickers) == 0 {
		return nil, eris.New("universe: constituents csv yielded no symbols")
	}
	return tickers, nil
}
