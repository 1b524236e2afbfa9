package model

import "time"

// Verdict is the outcome of a single formula evaluation.
type Verdict string

const (
	// VerdictPass means the ratio cleared its threshold.
	VerdictPass Verdict = "PASS"
	// VerdictFail means the ratio was computed and missed its threshold.
	VerdictFail Verdict = "FAIL"
	// VerdictUnknown means a required fact was missing; never counted as a failure.
	VerdictUnknown Verdict = "NA"
)

// FormulaResult is one evaluated criterion, fully populated before it is
// handed to any renderer.
type FormulaResult struct {
	Name        string       `json:"name"`
	Verdict     Verdict      `json:"verdict"`
	Value       *float64     `json:"value"`
	Display     string       `json:"display"`
	Target      string       `json:"target"`
	Description string       `json:"description"`
	Provenances []Provenance `json:"provenances,omitempty"`
}

// Score summarizes a formula battery: UNKNOWN results are excluded from
// both the numerator and the denominator.
type Score struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Unknown int `json:"unknown"`
}

// Evaluated is the number of formulas that produced a definite verdict.
func (s Score) Evaluated() int { return s.Passed + s.Failed }

// Summarize tallies a result list into a Score.
func Summarize(results []FormulaResult) Score {
	var s Score
	for _, r := range results {
		switch r.Verdict {
		case VerdictPass:
			s.Passed++
		case VerdictFail:
			s.Failed++
		default:
			s.Unknown++
		}
	}
	return s
}

// Analysis is the full fundamental analysis of one ticker.
type Analysis struct {
	Ticker    string          `json:"ticker"`
	CIK       string          `json:"cik"`
	Results   []FormulaResult `json:"results"`
	Score     Score           `json:"score"`
	PeriodEnd string          `json:"period_end,omitempty"`
	FetchedAt time.Time       `json:"fetched_at"`
}
