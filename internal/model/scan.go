package model

import "time"

// Intensity buckets a Williams %R reading.
type Intensity string

const (
	IntensityExtreme    Intensity = "EXTREME"
	IntensityVeryStrong Intensity = "VERY_STRONG"
	IntensityStrong     Intensity = "STRONG"
	IntensityModerate   Intensity = "MODERATE"
	IntensityNeutral    Intensity = "NEUTRAL"
)

// SkipReason explains why a symbol was dropped from a batch result set.
type SkipReason string

const (
	SkipUnresolvable SkipReason = "unresolvable"
	SkipFetchFailed  SkipReason = "fetch_failed"
	SkipNoPrices     SkipReason = "no_prices"
	SkipDeadline     SkipReason = "deadline"
	SkipBelowCutoff  SkipReason = "below_cutoff"
)

// Signal is one ticker's technical reading from the oversold scan.
// WilliamsR is the latest raw reading; EMA is its smoothed counterpart.
type Signal struct {
	Ticker    string    `json:"ticker"`
	WilliamsR float64   `json:"williams_r"`
	EMA       *float64  `json:"ema,omitempty"`
	Intensity Intensity `json:"intensity"`
}

// Smoothed returns the reading screening decisions act on: the EMA when
// present, the raw value otherwise.
func (s Signal) Smoothed() float64 {
	if s.EMA != nil {
		return *s.EMA
	}
	return s.WilliamsR
}

// ScanRecord is one fully scored ticker from a combined screen.
type ScanRecord struct {
	Ticker    string    `json:"ticker"`
	WilliamsR float64   `json:"williams_r"`
	Intensity Intensity `json:"intensity"`
	PassCount int       `json:"pass_count"`
	Evaluated int       `json:"evaluated"`
	Combined  float64   `json:"combined"`
}

// Skip pairs a dropped symbol with the reason it was dropped.
type Skip struct {
	Ticker string     `json:"ticker"`
	Reason SkipReason `json:"reason"`
}

// ScanSummary is the persisted outcome of one batch run.
type ScanSummary struct {
	ID         string    `json:"id"`
	Scanned    int       `json:"scanned"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ScreenerRow is one read-only row of third-party screener metadata.
// Missing fields stay empty strings and render as "N/A", never zero.
type ScreenerRow struct {
	Screener  string `json:"screener" csv:"-"`
	Ticker    string `json:"ticker" csv:"Ticker"`
	AsOf      string `json:"as_of" csv:"-"`
	Company   string `json:"company" csv:"Company"`
	Sector    string `json:"sector" csv:"Sector"`
	Industry  string `json:"industry" csv:"Industry"`
	Country   string `json:"country" csv:"Country"`
	PE        string `json:"pe" csv:"P/E"`
	MarketCap string `json:"market_cap" csv:"Market Cap"`
}
