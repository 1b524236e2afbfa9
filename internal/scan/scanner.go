// Package scan orchestrates batch technical scans and combined screens over
// the ticker universe.
package scan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/screener-cli/internal/config"
	"github.com/sells-group/screener-cli/internal/indicator"
	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/prices"
	"github.com/sells-group/screener-cli/internal/store"
	"github.com/sells-group/screener-cli/internal/universe"
)

// Scanner runs batch scans. A per-symbol failure never aborts the batch;
// it becomes a skip with a reason.
type Scanner struct {
	prices   *prices.Service
	analyzer *Analyzer
	universe *universe.Loader
	store    store.Store
	cfg      config.ScanConfig

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewScanner wires the batch scanner.
func NewScanner(p *prices.Service, a *Analyzer, u *universe.Loader, s store.Store, cfg config.ScanConfig) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &Scanner{
		prices:   p,
		analyzer: a,
		universe: u,
		store:    s,
		cfg:      cfg,
		now:      time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// SetConfig replaces the scan configuration, typically after flag overrides.
func (s *Scanner) SetConfig(cfg config.ScanConfig) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	s.cfg = cfg
}

// Outcome is the result of one batch run.
type Outcome struct {
	Records []model.ScanRecord
	Signals []model.Signal
	Skips   []model.Skip
	Summary model.ScanSummary
}

// TechnicalScan computes the smoothed Williams %R for every ticker. Results
// preserve input order. The scan degrades rather than fails: when the
// upstream failure ratio crosses the configured threshold, concurrency is
// halved once and the scan pauses before the next batch.
func (s *Scanner) TechnicalScan(ctx context.Context, tickers []string, forceRefresh bool) ([]model.Signal, []model.Skip) {
	signals := make([]*model.Signal, len(tickers))
	skips := make([]*model.Skip, len(tickers))

	var mu sync.Mutex
	completed, failed := 0, 0
	degraded := false
	concurrency := s.cfg.Concurrency

	for start := 0; start < len(tickers); {
		end := start + concurrency
		if end > len(tickers) {
			end = len(tickers)
		}

		var g errgroup.Group
		g.SetLimit(concurrency)
		for i := start; i < end; i++ {
			g.Go(func() error {
				sig, skip := s.scanOne(ctx, tickers[i], forceRefresh)
				mu.Lock()
				signals[i], skips[i] = sig, skip
				completed++
				if skip != nil && (skip.Reason == model.SkipFetchFailed || skip.Reason == model.SkipDeadline) {
					failed++
				}
				mu.Unlock()
				return nil
			})
		}
		g.Wait() //nolint:errcheck
		start = end

		if ctx.Err() != nil {
			for i := start; i < len(tickers); i++ {
				skips[i] = &model.Skip{Ticker: tickers[i], Reason: model.SkipDeadline}
			}
			break
		}

		if !degraded && completed > 0 &&
			float64(failed)/float64(completed) > s.cfg.DegradedThreshold {
			degraded = true
			concurrency = concurrency / 2
			if concurrency < 1 {
				concurrency = 1
			}
			zap.L().Warn("scan: upstream failure ratio crossed threshold, degrading",
				zap.Int("failed", failed),
				zap.Int("completed", completed),
				zap.Int("concurrency", concurrency),
			)
			pause := time.Duration(s.cfg.DegradedPauseSecs) * time.Second
			if pause > 0 {
				if err := s.sleep(ctx, pause); err != nil {
					// Cancellation lands the remaining symbols as deadline skips
					// on the next loop check.
					continue
				}
			}
		}
	}

	return compact(signals), compact(skips)
}

func (s *Scanner) scanOne(ctx context.Context, ticker string, forceRefresh bool) (*model.Signal, *model.Skip) {
	if timeout := s.cfg.SymbolTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	series, err := s.prices.Daily(ctx, ticker, forceRefresh)
	if err != nil {
		reason := model.SkipFetchFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = model.SkipDeadline
		}
		zap.L().Debug("scan: price fetch failed",
			zap.String("ticker", ticker), zap.Error(err))
		return nil, &model.Skip{Ticker: ticker, Reason: reason}
	}
	if series == nil || len(series.Bars) < indicator.WilliamsPeriod {
		return nil, &model.Skip{Ticker: ticker, Reason: model.SkipNoPrices}
	}

	raw, smoothed, err := indicator.WilliamsReadings(*series)
	if err != nil {
		return nil, &model.Skip{Ticker: ticker, Reason: model.SkipNoPrices}
	}
	return &model.Signal{
		Ticker:    ticker,
		WilliamsR: raw,
		EMA:       &smoothed,
		Intensity: indicator.Classify(smoothed),
	}, nil
}

// Screen runs the combined technical and fundamental screen over the whole
// universe. Only a universe load failure is fatal.
func (s *Scanner) Screen(ctx context.Context, forceRefresh bool) (*Outcome, error) {
	tickers, err := s.universe.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	return s.ScreenTickers(ctx, tickers, forceRefresh)
}

// ScreenTickers runs the combined screen over an explicit symbol list.
func (s *Scanner) ScreenTickers(ctx context.Context, tickers []string, forceRefresh bool) (*Outcome, error) {
	started := s.now().UTC()

	signals, skips := s.TechnicalScan(ctx, tickers, forceRefresh)

	candidates := s.selectCandidates(signals, &skips)
	records, fundSkips := s.scoreCandidates(ctx, candidates, forceRefresh)
	skips = append(skips, fundSkips...)

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Combined != records[j].Combined {
			return records[i].Combined > records[j].Combined
		}
		return records[i].Ticker < records[j].Ticker
	})

	summary := model.ScanSummary{
		ID:         uuid.New().String(),
		Scanned:    len(tickers),
		Succeeded:  len(records),
		Skipped:    len(skips),
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
	}
	if err := s.store.SaveScanSummary(ctx, summary); err != nil {
		zap.L().Warn("scan: save run summary", zap.Error(err))
	}

	return &Outcome{Records: records, Signals: signals, Skips: skips, Summary: summary}, nil
}

// selectCandidates keeps the oversold signals, most oversold first, capped
// at the fundamentals budget. Everything else becomes a below-cutoff skip.
// The threshold is strict: a reading exactly at the threshold is not oversold.
func (s *Scanner) selectCandidates(signals []model.Signal, skips *[]model.Skip) []model.Signal {
	oversold := make([]model.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.Smoothed() < s.cfg.OversoldThreshold {
			oversold = append(oversold, sig)
		} else {
			*skips = append(*skips, model.Skip{Ticker: sig.Ticker, Reason: model.SkipBelowCutoff})
		}
	}

	sort.SliceStable(oversold, func(i, j int) bool {
		if oversold[i].Smoothed() != oversold[j].Smoothed() {
			return oversold[i].Smoothed() < oversold[j].Smoothed()
		}
		return oversold[i].Ticker < oversold[j].Ticker
	})

	if s.cfg.MaxFundamentals > 0 && len(oversold) > s.cfg.MaxFundamentals {
		for _, sig := range oversold[s.cfg.MaxFundamentals:] {
			*skips = append(*skips, model.Skip{Ticker: sig.Ticker, Reason: model.SkipBelowCutoff})
		}
		oversold = oversold[:s.cfg.MaxFundamentals]
	}
	return oversold
}

func (s *Scanner) scoreCandidates(ctx context.Context, candidates []model.Signal, forceRefresh bool) ([]model.ScanRecord, []model.Skip) {
	records := make([]*model.ScanRecord, len(candidates))
	skips := make([]*model.Skip, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, sig := range candidates {
		g.Go(func() error {
			records[i], skips[i] = s.scoreOne(ctx, sig, forceRefresh)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return compact(records), compact(skips)
}

func (s *Scanner) scoreOne(ctx context.Context, sig model.Signal, forceRefresh bool) (*model.ScanRecord, *model.Skip) {
	if timeout := s.cfg.SymbolTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	analysis, err := s.analyzer.Analyze(ctx, sig.Ticker, forceRefresh)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnresolvable):
		return nil, &model.Skip{Ticker: sig.Ticker, Reason: model.SkipUnresolvable}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, &model.Skip{Ticker: sig.Ticker, Reason: model.SkipDeadline}
	default:
		zap.L().Debug("scan: fundamentals fetch failed",
			zap.String("ticker", sig.Ticker), zap.Error(err))
		return nil, &model.Skip{Ticker: sig.Ticker, Reason: model.SkipFetchFailed}
	}

	if analysis.Score.Passed < s.cfg.MinScore {
		return nil, &model.Skip{Ticker: sig.Ticker, Reason: model.SkipBelowCutoff}
	}

	return &model.ScanRecord{
		Ticker:    sig.Ticker,
		WilliamsR: sig.Smoothed(),
		Intensity: sig.Intensity,
		PassCount: analysis.Score.Passed,
		Evaluated: analysis.Score.Evaluated(),
		Combined:  s.Combined(sig.Smoothed(), analysis.Score.Passed),
	}, nil
}

// Combined blends the technical and fundamental scores. Williams %R is
// rescaled from [-100, 0] to [0, 1]; the pass count is taken out of the
// full battery of ten regardless of how many formulas evaluated.
func (s *Scanner) Combined(williamsR float64, passCount int) float64 {
	technical := (williamsR + 100) / 100
	fundamental := float64(passCount) / 10
	return s.cfg.TechnicalWeight*technical + s.cfg.FundamentalWeight*fundamental
}

func compact[T any](ptrs []*T) []T {
	out := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
