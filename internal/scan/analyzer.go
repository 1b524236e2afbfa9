package scan

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/screener-cli/internal/edgar"
	"github.com/sells-group/screener-cli/internal/formula"
	"github.com/sells-group/screener-cli/internal/model"
)

// ErrUnresolvable is returned when a symbol has no CIK mapping.
var ErrUnresolvable = eris.New("scan: ticker not found in identifier map")

// ErrNoFilings is returned when a resolved company has no filing data.
var ErrNoFilings = eris.New("scan: no filing data for company")

// Analyzer runs the fundamental battery for a single ticker.
type Analyzer struct {
	edgar *edgar.Client
	now   func() time.Time
}

// NewAnalyzer builds an analyzer over the filing client.
func NewAnalyzer(client *edgar.Client) *Analyzer {
	return &Analyzer{edgar: client, now: time.Now}
}

// Analyze resolves a ticker, extracts its fact bundle, and evaluates the
// full formula battery. Unresolvable symbols and companies without filings
// return sentinel errors the caller can classify as skips.
func (a *Analyzer) Analyze(ctx context.Context, ticker string, forceRefresh bool) (*model.Analysis, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	cik, err := a.edgar.ResolveTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if cik == "" {
		return nil, eris.Wrapf(ErrUnresolvable, "ticker %s", ticker)
	}

	bundle, err := a.edgar.Bundle(ctx, cik, forceRefresh)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, eris.Wrapf(ErrNoFilings, "ticker %s (CIK %s)", ticker, cik)
	}

	results := formula.NewEngine(*bundle).EvaluateAll()
	return &model.Analysis{
		Ticker:    ticker,
		CIK:       cik,
		Results:   results,
		Score:     model.Summarize(results),
		PeriodEnd: latestPeriodEnd(*bundle),
		FetchedAt: a.now().UTC(),
	}, nil
}

// latestPeriodEnd picks the most recent period end among resolved facts.
// Facts can straddle fiscal years when tags lag a restatement.
func latestPeriodEnd(bundle model.FactBundle) string {
	latest := ""
	for _, f := range bundle.Facts {
		if f.Absent() {
			continue
		}
		if f.Provenance.PeriodEnd > latest {
			latest = f.Provenance.PeriodEnd
		}
	}
	return latest
}
