package model

// Bar is one daily OHLCV observation.
type Bar struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// Series is a daily price history ordered oldest first.
type Series struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Empty reports whether the series has no usable bars.
func (s *Series) Empty() bool {
	return s == nil || len(s.Bars) == 0
}
