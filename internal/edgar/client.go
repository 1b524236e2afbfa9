package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/resilience"
	"github.com/sells-group/screener-cli/internal/store"
)

// tickerMapKey is the single cache key under which the full ticker→CIK map lives.
const tickerMapKey = "sec"

// Client resolves tickers to CIKs and fetches cached filing snapshots.
type Client struct {
	cache store.Store
	http  fetcher.Fetcher
	cfg   config.EdgarConfig
	retry resilience.RetryConfig

	mu        sync.Mutex
	tickerMap map[string]string
}

// NewClient builds an EDGAR client on top of the durable cache and fetcher.
func NewClient(cache store.Store, http fetcher.Fetcher, cfg config.EdgarConfig) *Client {
	retry := resilience.UpstreamRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BackoffInitial > 0 {
		retry.InitialBackoff = time.Duration(cfg.BackoffInitial) * time.Second
	}
	retry.OnRetry = resilience.RetryLogger("edgar", "fetch")
	return &Client{
		cache: cache,
		http:  http,
		cfg:   cfg,
		retry: retry,
	}
}

// ResolveTicker maps a trading symbol to its zero-padded CIK. Punctuation
// variants are tried in order ("BRK.B" filings are published as "BRK-B").
// An unresolvable symbol returns ("", nil): not-found is a skip, not an error.
func (c *Client) ResolveTicker(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", nil
	}

	m, err := c.tickerMapCached(ctx)
	if err != nil {
		return "", err
	}
	if cik := lookupVariants(m, symbol); cik != "" {
		return cik, nil
	}

	// Miss may just mean the cached map predates a listing; rebuild once.
	m, err = c.refreshTickerMap(ctx)
	if err != nil {
		zap.L().Warn("edgar: ticker map refresh failed, using cached map",
			zap.String("symbol", symbol), zap.Error(err))
		return "", nil
	}
	return lookupVariants(m, symbol), nil
}

func lookupVariants(m map[string]string, symbol string) string {
	for _, variant := range []string{
		symbol,
		strings.ReplaceAll(symbol, ".", "-"),
		strings.ReplaceAll(symbol, "-", "."),
	} {
		if cik, ok := m[variant]; ok {
			return cik
		}
	}
	return ""
}

func (c *Client) tickerMapCached(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	if c.tickerMap != nil {
		m := c.tickerMap
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	cached, err := store.GetJSON[map[string]string](ctx, c.cache, store.EntityTickerMap, tickerMapKey)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		c.mu.Lock()
		c.tickerMap = *cached
		c.mu.Unlock()
		return *cached, nil
	}
	return c.refreshTickerMap(ctx)
}

// refreshTickerMap fetches the full company_tickers.json, rebuilds the
// symbol→CIK map, and stores it under the 30-day TTL.
func (c *Client) refreshTickerMap(ctx context.Context) (map[string]string, error) {
	m, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (map[string]string, error) {
		body, err := c.http.Download(ctx, c.cfg.TickerMapURL)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck

		var raw map[string]struct {
			CIK    int    `json:"cik_str"`
			Ticker string `json:"ticker"`
			Title  string `json:"title"`
		}
		if err := json.NewDecoder(body).Decode(&raw); err != nil {
			return nil, eris.Wrap(err, "edgar: decode ticker map")
		}

		m := make(map[string]string, len(raw))
		for _, item := range raw {
			m[strings.ToUpper(item.Ticker)] = fmt.Sprintf("%010d", item.CIK)
		}
		return m, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "edgar: fetch ticker map")
	}

	if err := store.PutJSON(ctx, c.cache, store.EntityTickerMap, tickerMapKey, m); err != nil {
		zap.L().Warn("edgar: cache ticker map", zap.Error(err))
	}
	c.mu.Lock()
	c.tickerMap = m
	c.mu.Unlock()
	return m, nil
}

// CompanyFacts returns the filing snapshot for a CIK. A cache hit returns
// without network activity. On a miss the upstream request is retried on
// the 2s/4s/8s schedule; success is cached before return so a second miss
// within the run observes a fresh entry. Failures leave the cache untouched
// so a transient outage cannot poison the TTL window. An unknown CIK (404)
// returns (nil, nil).
func (c *Client) CompanyFacts(ctx context.Context, cik string, forceRefresh bool) (*CompanyFacts, error) {
	if !forceRefresh {
		cached, err := store.GetJSON[CompanyFacts](ctx, c.cache, store.EntityFilings, cik)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.cfg.BaseURL, cik)
	facts, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*CompanyFacts, error) {
		body, err := c.http.Download(ctx, url)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck
		return ParseCompanyFacts(body)
	})
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "edgar: fetch company facts CIK %s", cik)
	}

	if err := store.PutJSON(ctx, c.cache, store.EntityFilings, cik, facts); err != nil {
		zap.L().Warn("edgar: cache company facts", zap.String("cik", cik), zap.Error(err))
	}
	return facts, nil
}

// Bundle fetches and extracts the full fact bundle for a CIK using the
// embedded taxonomy. Returns (nil, nil) when no filing data exists.
func (c *Client) Bundle(ctx context.Context, cik string, forceRefresh bool) (*model.FactBundle, error) {
	facts, err := c.CompanyFacts(ctx, cik, forceRefresh)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		return nil, nil
	}
	bundle := BuildBundle(facts, DefaultTaxonomy())
	return &bundle, nil
}
