// Package model holds the shared domain types for the screener pipeline.
package model

// Provenance records which filing disclosure an extracted fact came from.
type Provenance struct {
	Tag        string `json:"tag"`
	Label      string `json:"label,omitempty"`
	PeriodEnd  string `json:"period_end"`
	FiscalYear int    `json:"fiscal_year"`
	Unit       string `json:"unit"`
	Form       string `json:"form"`
}

// Fact is a single extracted financial fact. A fact is either present
// (Value and Provenance both set) or absent (both nil); there is no
// error state visible to the formula layer.
type Fact struct {
	Value      *float64    `json:"value"`
	Provenance *Provenance `json:"provenance"`
}

// Absent reports whether the fact carries no value.
func (f Fact) Absent() bool {
	return f.Value == nil
}

// PresentFact builds a present fact.
func PresentFact(value float64, prov Provenance) Fact {
	return Fact{Value: &value, Provenance: &prov}
}

// FactBundle is the set of named facts a formula evaluation consumes,
// plus multi-year series used by trend checks.
type FactBundle struct {
	Facts  map[string]Fact      `json:"facts"`
	Series map[string][]float64 `json:"series,omitempty"`
}

// Get returns the named fact, absent when the key was never extracted.
func (b *FactBundle) Get(name string) Fact {
	if b == nil || b.Facts == nil {
		return Fact{}
	}
	return b.Facts[name]
}
