// Package edgar fetches and interprets SEC EDGAR company facts: ticker
// resolution, cached filing snapshots, and fact extraction with alias
// fallback and fiscal-period selection.
package edgar

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/screener-cli/internal/model"
)

// CompanyFacts represents the EDGAR company facts JSON-LD structure.
type CompanyFacts struct {
	CIK        int               `json:"cik"`
	EntityName string            `json:"entityName"`
	Facts      map[string]FactNS `json:"facts"`
}

// FactNS groups facts by namespace (e.g., "us-gaap", "dei").
type FactNS map[string]ReportedFact

// ReportedFact is a single disclosed concept with its units and values.
type ReportedFact struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]FactValue `json:"units"`
}

// FactValue is a single data point for a reported fact.
type FactValue struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end"`
	Val   any    `json:"val"`
	Accn  string `json:"accn"`
	FY    int    `json:"fy"`
	FP    string `json:"fp"`
	Form  string `json:"form"`
	Filed string `json:"filed"`
	Frame string `json:"frame,omitempty"`
}

// annualForm is the comprehensive yearly filing; quarterly forms never
// satisfy period "annual".
const annualForm = "10-K"

// namespaceOrder fixes the search order across taxonomies.
var namespaceOrder = []string{"us-gaap", "dei"}

// ParseCompanyFacts parses EDGAR company facts JSON-LD from a reader.
func ParseCompanyFacts(r io.Reader) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return nil, eris.Wrap(err, "edgar: parse company facts")
	}
	return &facts, nil
}

// ExtractFact walks tag aliases in priority order and returns the most
// recently ended annual value of the first alias that matches, with its
// provenance. The first alias with any match wins even when a later alias
// would yield a more recent date. An absent fact is (Fact{}, i.e. both
// value and provenance nil) and is not an error.
func ExtractFact(facts *CompanyFacts, aliases []string, period string) model.Fact {
	if facts == nil || len(facts.Facts) == 0 || period != "annual" {
		return model.Fact{}
	}

	for _, ns := range namespaceOrder {
		nsMap, ok := facts.Facts[ns]
		if !ok {
			continue
		}
		for _, tag := range aliases {
			reported, ok := nsMap[tag]
			if !ok {
				continue
			}
			if f, ok := latestAnnual(tag, reported); ok {
				return f
			}
		}
	}
	return model.Fact{}
}

// latestAnnual selects the most recent annual entry across units, with USD
// preferred for monetary facts.
func latestAnnual(tag string, reported ReportedFact) (model.Fact, bool) {
	for _, unit := range unitOrder(reported.Units) {
		entries := reported.Units[unit]
		sorted := make([]FactValue, len(entries))
		copy(sorted, entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].End > sorted[j].End
		})
		for _, e := range sorted {
			if e.Form != annualForm {
				continue
			}
			val, ok := toFloat(e.Val)
			if !ok {
				continue
			}
			return model.PresentFact(val, model.Provenance{
				Tag:        tag,
				Label:      reported.Label,
				PeriodEnd:  e.End,
				FiscalYear: e.FY,
				Unit:       unit,
				Form:       e.Form,
			}), true
		}
	}
	return model.Fact{}, false
}

// unitOrder lists unit keys with USD first, then the rest sorted for
// deterministic fallback.
func unitOrder(units map[string][]FactValue) []string {
	keys := make([]string, 0, len(units))
	for k := range units {
		if k != "USD" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := units["USD"]; ok {
		keys = append([]string{"USD"}, keys...)
	}
	return keys
}

// ExtractSeries returns up to limit most recent distinct annual values for
// one tag, one per fiscal year. Restated entries for the same fiscal year
// are deduplicated keeping the latest-filed one.
func ExtractSeries(facts *CompanyFacts, tag string, limit int) []float64 {
	if facts == nil || len(facts.Facts) == 0 || limit <= 0 {
		return nil
	}

	for _, ns := range namespaceOrder {
		nsMap, ok := facts.Facts[ns]
		if !ok {
			continue
		}
		reported, ok := nsMap[tag]
		if !ok {
			continue
		}
		for _, unit := range unitOrder(reported.Units) {
			series := annualSeries(reported.Units[unit], limit)
			if len(series) > 0 {
				return series
			}
		}
	}
	return nil
}

func annualSeries(entries []FactValue, limit int) []float64 {
	annual := make([]FactValue, 0, len(entries))
	for _, e := range entries {
		if e.Form == annualForm {
			annual = append(annual, e)
		}
	}
	// Most recent period first; within a fiscal year the latest-filed
	// restatement wins.
	sort.SliceStable(annual, func(i, j int) bool {
		if annual[i].End != annual[j].End {
			return annual[i].End > annual[j].End
		}
		return annual[i].Filed > annual[j].Filed
	})

	var series []float64
	seen := make(map[int]bool)
	for _, e := range annual {
		if seen[e.FY] {
			continue
		}
		val, ok := toFloat(e.Val)
		if !ok {
			continue
		}
		seen[e.FY] = true
		series = append(series, val)
		if len(series) >= limit {
			break
		}
	}
	return series
}

// toFloat coerces an EDGAR fact value into a float64. DEI facts sometimes
// report numerics as strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
