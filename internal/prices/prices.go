// Package prices fetches and caches daily OHLCV series from Stooq.
package prices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/resilience"
	"github.com/sells-group/screener-cli/internal/store"
)

// row is one line of the Stooq daily CSV export. Fields arrive as strings:
// Stooq reports missing values as "N/D", which must read as absent, not zero.
type row struct {
	Date   string `csv:"Date"`
	Open   string `csv:"Open"`
	High   string `csv:"High"`
	Low    string `csv:"Low"`
	Close  string `csv:"Close"`
	Volume string `csv:"Volume"`
}

// Service fetches daily price series with a one-day cache.
type Service struct {
	cache store.Store
	http  fetcher.Fetcher
	cfg   config.PricesConfig
	retry resilience.RetryConfig
}

// NewService builds a price service on top of the durable cache and fetcher.
func NewService(cache store.Store, http fetcher.Fetcher, cfg config.PricesConfig) *Service {
	retry := resilience.UpstreamRetryConfig()
	retry.OnRetry = resilience.RetryLogger("prices", "fetch")
	return &Service{cache: cache, http: http, cfg: cfg, retry: retry}
}

// Daily returns the daily series for a ticker, most recent bar last.
// A fresh cached series is returned without touching the network unless
// forceRefresh is set. A ticker Stooq does not know returns (nil, nil):
// no prices is a skip, not an error.
func (s *Service) Daily(ctx context.Context, ticker string, forceRefresh bool) (*model.Series, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, eris.New("prices: empty ticker")
	}

	if !forceRefresh {
		cached, err := store.GetJSON[model.Series](ctx, s.cache, store.EntityPrices, ticker)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			return cached, nil
		}
	}

	series, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*model.Series, error) {
		return s.fetch(ctx, ticker)
	})
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			zap.L().Debug("prices: ticker unknown upstream", zap.String("ticker", ticker))
			return nil, nil
		}
		return nil, eris.Wrapf(err, "prices: fetch %s", ticker)
	}
	if series == nil || series.Empty() {
		return nil, nil
	}

	if err := store.PutJSON(ctx, s.cache, store.EntityPrices, ticker, *series); err != nil {
		return nil, eris.Wrapf(err, "prices: cache %s", ticker)
	}
	return series, nil
}

func (s *Service) fetch(ctx context.Context, ticker string) (*model.Series, error) {
	url := fmt.Sprintf("%s/?s=%s.us&i=d", s.cfg.BaseURL, strings.ToLower(ticker))
	body, err := s.http.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}

	series, err := parseCSV(ticker, raw)
	if err != nil {
		return nil, err
	}
	if s.cfg.Days > 0 && len(series.Bars) > s.cfg.Days {
		series.Bars = series.Bars[len(series.Bars)-s.cfg.Days:]
	}
	return series, nil
}

// parseCSV decodes the Stooq export. Stooq answers unknown symbols with a
// plain "No data" body and HTTP 200, which reads as an empty series.
func parseCSV(ticker string, raw []byte) (*model.Series, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || strings.EqualFold(trimmed, "no data") {
		return &model.Series{Ticker: ticker}, nil
	}

	var rows []row
	if err := csvutil.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, eris.Wrapf(err, "prices: parse csv for %s", ticker)
	}

	series := &model.Series{Ticker: ticker, Bars: make([]model.Bar, 0, len(rows))}
	for _, r := range rows {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			continue
		}
		series.Bars = append(series.Bars, model.Bar{
			Date:   r.Date,
			Open:   parseField(r.Open),
			High:   parseField(r.High),
			Low:    parseField(r.Low),
			Close:  parseField(r.Close),
			Volume: parseField(r.Volume),
		})
	}
	return series, nil
}

func parseField(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
