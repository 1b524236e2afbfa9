package main

import (
	"context"

	"github.com/sells-group/screener-cli/internal/edgar"
	"github.com/sells-group/screener-cli/internal/fetcher"
	"github.com/sells-group/screener-cli/internal/prices"
	"github.com/sells-group/screener-cli/internal/scan"
	"github.com/sells-group/screener-cli/internal/screener"
	"github.com/sells-group/screener-cli/internal/store"
	"github.com/sells-group/screener-cli/internal/universe"
)

// env bundles the wired collaborators every command runs against.
type env struct {
	store    store.Store
	edgar    *edgar.Client
	prices   *prices.Service
	universe *universe.Loader
	screener *screener.Service
	analyzer *scan.Analyzer
	scanner  *scan.Scanner
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Edgar.UserAgent,
	})

	edgarClient := edgar.NewClient(st, httpFetcher, cfg.Edgar)
	priceSvc := prices.NewService(st, httpFetcher, cfg.Prices)
	universeLoader := universe.NewLoader(st, httpFetcher, cfg.Universe)
	analyzer := scan.NewAnalyzer(edgarClient)

	return &env{
		store:    st,
		edgar:    edgarClient,
		prices:   priceSvc,
		universe: universeLoader,
		screener: screener.NewService(st),
		analyzer: analyzer,
		scanner:  scan.NewScanner(priceSvc, analyzer, universeLoader, st, cfg.Scan),
	}, nil
}

func (e *env) Close() {
	e.store.Close() //nolint:errcheck
}
