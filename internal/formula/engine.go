// Package formula evaluates the fixed battery of ratio-based quality tests
// against extracted facts, producing pass/fail/unknown verdicts.
package formula

import (
	"fmt"
	"math"

	"github.com/sells-group/screener-cli/internal/model"
)

// Engine evaluates the quality-test battery over one fact bundle.
type Engine struct {
	bundle model.FactBundle
}

// NewEngine wraps a fact bundle for evaluation.
func NewEngine(bundle model.FactBundle) *Engine {
	return &Engine{bundle: bundle}
}

// EvaluateAll runs every formula in canonical order. The order is stable
// regardless of which facts are present; a missing fact yields UNKNOWN,
// never FAIL.
func (e *Engine) EvaluateAll() []model.FormulaResult {
	return []model.FormulaResult{
		e.CashTest(),
		e.DebtToEquity(),
		e.FreeCashFlow(),
		e.ReturnOnEquity(),
		e.CurrentRatio(),
		e.OperatingMargin(),
		e.AssetTurnover(),
		e.InterestCoverage(),
		e.EarningsStability(),
		e.CapitalAllocation(),
	}
}

// cmp is the comparison direction of a ratio against its threshold.
type cmp int

const (
	above cmp = iota // value > threshold
	below            // value < threshold
)

func (e *Engine) unknown(name, target, desc string) model.FormulaResult {
	return model.FormulaResult{
		Name:        name,
		Verdict:     model.VerdictUnknown,
		Target:      target,
		Description: desc,
	}
}

// ratio evaluates numerator/denominator against a threshold. A zero
// denominator is UNKNOWN: the ratio is undefined, which is not a failure.
func ratio(name string, num, den float64, threshold float64, dir cmp, target, desc string, percent bool, provs []model.Provenance) model.FormulaResult {
	if den == 0 {
		return model.FormulaResult{
			Name:        name,
			Verdict:     model.VerdictUnknown,
			Target:      target,
			Description: desc,
			Provenances: provs,
		}
	}
	val := num / den
	verdict := model.VerdictFail
	if (dir == above && val > threshold) || (dir == below && val < threshold) {
		verdict = model.VerdictPass
	}
	display := fmt.Sprintf("%.2f", val)
	if percent {
		display = fmt.Sprintf("%.1f%%", val*100)
	}
	rounded := math.Round(val*100) / 100
	return model.FormulaResult{
		Name:        name,
		Verdict:     verdict,
		Value:       &rounded,
		Display:     display,
		Target:      target,
		Description: desc,
		Provenances: provs,
	}
}

// present gathers the named facts; ok is false when any is absent.
func (e *Engine) present(names ...string) (vals map[string]float64, provs []model.Provenance, ok bool) {
	vals = make(map[string]float64, len(names))
	for _, name := range names {
		f := e.bundle.Get(name)
		if f.Absent() {
			return nil, nil, false
		}
		vals[name] = *f.Value
		provs = append(provs, *f.Provenance)
	}
	return vals, provs, true
}

// CashTest checks cash and equivalents against total debt. Short-term
// investments are an optional addend: absent investments count as 0.
func (e *Engine) CashTest() model.FormulaResult {
	const name, target, desc = "Cash Test", "> 1.0", "Cash & equivalents / Total Debt"
	vals, provs, ok := e.present("cash", "debt")
	if !ok {
		return e.unknown(name, target, desc)
	}
	cash := vals["cash"]
	if inv := e.bundle.Get("investments"); !inv.Absent() {
		cash += *inv.Value
		provs = append(provs, *inv.Provenance)
	}
	return ratio(name, cash, vals["debt"], 1.0, above, target, desc, false, provs)
}

func (e *Engine) DebtToEquity() model.FormulaResult {
	const name, target, desc = "Debt-to-Equity", "< 0.5", "Total Liabilities / Stockholders Equity"
	vals, provs, ok := e.present("liabilities", "equity")
	if !ok {
		return e.unknown(name, target, desc)
	}
	return ratio(name, vals["liabilities"], vals["equity"], 0.5, below, target, desc, false, provs)
}

// FreeCashFlow checks (operating cash flow - capex) against total debt.
// Capex is reported as a payment; its sign convention varies by filer, so
// the magnitude is used.
func (e *Engine) FreeCashFlow() model.FormulaResult {
	const name, target, desc = "Free Cash Flow Test", "> 0.25", "(OCF - CapEx) / Total Debt"
	vals, provs, ok := e.present("ocf", "capex", "debt")
	if !ok {
		return e.unknown(name, target, desc)
	}
	fcf := vals["ocf"] - math.Abs(vals["capex"])
	return ratio(name, fcf, vals["debt"], 0.25, above, target, desc, false, provs)
}

func (e *Engine) ReturnOnEquity() model.FormulaResult {
	const name, target, desc = "Return on Equity", "> 15%", "Net Income / Stockholders Equity"
	vals, provs, ok := e.present("income", "equity")
	if !ok {
		return e.unknown(name, target, desc)
	}
	return ratio(name, vals["income"], vals["equity"], 0.15, above, target, desc, true, provs)
}

func (e *Engine) CurrentRatio() model.FormulaResult {
	const name, target, desc = "Current Ratio", "> 1.5", "Current Assets / Current Liabilities"
	vals, provs, ok := e.present("current_assets", "current_liabilities")
	if !ok {
		return e.unknown(name, target, desc)
	}
	return ratio(name, vals["current_assets"], vals["current_liabilities"], 1.5, above, target, desc, false, provs)
}

func (e *Engine) OperatingMargin() model.FormulaResult {
	const name, target, desc = "Operating Margin", "> 12%", "Operating Income / Revenue"
	vals, provs, ok := e.present("oi", "revenue")
	if !ok {
		return e.unknown(name, target, desc)
	}
	return ratio(name, vals["oi"], vals["revenue"], 0.12, above, target, desc, true, provs)
}

func (e *Engine) AssetTurnover() model.FormulaResult {
	const name, target, desc = "Asset Turnover", "> 0.5", "Revenue / Total Assets"
	vals, provs, ok := e.present("revenue", "assets")
	if !ok {
		return e.unknown(name, target, desc)
	}
	return ratio(name, vals["revenue"], vals["assets"], 0.5, above, target, desc, false, provs)
}

// InterestCoverage checks operating income against interest expense. A zero
// or undisclosed interest expense passes outright: no interest burden.
func (e *Engine) InterestCoverage() model.FormulaResult {
	const name, target, desc = "Interest Coverage", "> 3.0", "Operating Income / Interest Expense"
	vals, provs, ok := e.present("oi")
	if !ok {
		return e.unknown(name, target, desc)
	}
	interest := e.bundle.Get("interest")
	if interest.Absent() || *interest.Value == 0 {
		return model.FormulaResult{
			Name:        name,
			Verdict:     model.VerdictPass,
			Display:     "No Interest",
			Target:      target,
			Description: desc,
			Provenances: provs,
		}
	}
	provs = append(provs, *interest.Provenance)
	return ratio(name, vals["oi"], math.Abs(*interest.Value), 3.0, above, target, desc, false, provs)
}

// EarningsStability counts positive net-income years among the most recent
// ten annual disclosures.
func (e *Engine) EarningsStability() model.FormulaResult {
	const name, target, desc = "Earnings Stability", ">= 8/10", "Positive Net Income years (last 10)"
	history := e.bundle.Series["net_income"]
	if len(history) == 0 {
		return e.unknown(name, target, desc)
	}
	if len(history) > 10 {
		history = history[:10]
	}
	positives := 0
	for _, v := range history {
		if v > 0 {
			positives++
		}
	}
	verdict := model.VerdictFail
	if positives >= 8 {
		verdict = model.VerdictPass
	}
	count := float64(positives)
	return model.FormulaResult{
		Name:        name,
		Verdict:     verdict,
		Value:       &count,
		Display:     fmt.Sprintf("%d/10", positives),
		Target:      target,
		Description: desc,
	}
}

// CapitalAllocation re-reports return on equity as a separate criterion.
// The duplication is deliberate: profitability is double-weighted in the
// overall score.
func (e *Engine) CapitalAllocation() model.FormulaResult {
	res := e.ReturnOnEquity()
	res.Name = "Capital Allocation"
	return res
}
