// Package indicator computes the technical signals used to rank scan
// candidates: Williams %R smoothed with an EMA, and its intensity bucket.
package indicator

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/screener-cli/internal/model"
)

const (
	// WilliamsPeriod is the lookback window for the raw %R readings.
	WilliamsPeriod = 21
	// SmoothingPeriod is the EMA span applied to the raw %R series.
	SmoothingPeriod = 13
)

// WilliamsR computes the raw Williams %R series over the given period.
// Each output value corresponds to the bar at the same index; the first
// period-1 entries are not computable and the output starts at index
// period-1 of the input. Values range from -100 (close at the period low)
// to 0 (close at the period high).
func WilliamsR(bars []model.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, eris.New("indicator: period must be positive")
	}
	if len(bars) < period {
		return nil, eris.Errorf("indicator: need at least %d bars, have %d", period, len(bars))
	}
	out := make([]float64, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		hi, lo, ok := windowExtremes(bars[i-period+1 : i+1])
		if !ok {
			return nil, eris.Errorf("indicator: incomplete bar in window ending at %s", bars[i].Date)
		}
		c := bars[i].Close
		if c == nil {
			return nil, eris.Errorf("indicator: missing close at %s", bars[i].Date)
		}
		if hi == lo {
			// Flat window: no range to measure against, treat as mid.
			out = append(out, -50)
			continue
		}
		out = append(out, (hi-*c)/(hi-lo)*-100)
	}
	return out, nil
}

func windowExtremes(bars []model.Bar) (hi, lo float64, ok bool) {
	for i, b := range bars {
		if b.High == nil || b.Low == nil {
			return 0, 0, false
		}
		if i == 0 || *b.High > hi {
			hi = *b.High
		}
		if i == 0 || *b.Low < lo {
			lo = *b.Low
		}
	}
	return hi, lo, true
}

// EMA applies an exponential moving average with the conventional
// smoothing factor 2/(period+1), seeded with the first value.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, eris.New("indicator: period must be positive")
	}
	if len(values) == 0 {
		return nil, eris.New("indicator: empty series")
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// WilliamsReadings returns the latest raw Williams %R reading and its
// EMA-smoothed counterpart, using the standard 21/13 parameters. Signals
// report both; screening decisions consume the smoothed value.
func WilliamsReadings(series model.Series) (raw, smoothed float64, err error) {
	wr, err := WilliamsR(series.Bars, WilliamsPeriod)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "indicator: williams %%R for %s", series.Ticker)
	}
	ema, err := EMA(wr, SmoothingPeriod)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "indicator: smoothing for %s", series.Ticker)
	}
	return wr[len(wr)-1], ema[len(ema)-1], nil
}

// Classify maps a smoothed Williams %R reading to its intensity bucket.
func Classify(wr float64) model.Intensity {
	switch {
	case wr < -95:
		return model.IntensityExtreme
	case wr < -90:
		return model.IntensityVeryStrong
	case wr < -85:
		return model.IntensityStrong
	case wr < -80:
		return model.IntensityModerate
	default:
		return model.IntensityNeutral
	}
}
