package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/screener-cli/internal/model"
)

func sampleAnalysis() model.Analysis {
	val := 2.0
	results := []model.FormulaResult{
		{Name: "Cash Test", Verdict: model.VerdictPass, Value: &val, Display: "2.00", Target: "> 1.0"},
		{Name: "Debt-to-Equity", Verdict: model.VerdictUnknown, Target: "< 0.5"},
		{Name: "Interest Coverage", Verdict: model.VerdictPass, Display: "No Interest", Target: "> 3.0"},
	}
	return model.Analysis{
		Ticker:    "AAPL",
		CIK:       "0000320193",
		Results:   results,
		Score:     model.Summarize(results),
		PeriodEnd: "2023-09-30",
		FetchedAt: time.Now(),
	}
}

func TestAnalysis_PlainOmitsMarkup(t *testing.T) {
	out := Analysis(FormatPlain, sampleAnalysis(), nil)
	assert.Contains(t, out, "AAPL — Quality Analysis")
	assert.NotContains(t, out, "*")
	assert.Contains(t, out, "Fiscal period ending 2023-09-30")
	assert.Contains(t, out, "2/2 passed, 1 unknown")
}

func TestAnalysis_TelegramBoldsHeader(t *testing.T) {
	out := Analysis(FormatTelegram, sampleAnalysis(), nil)
	assert.Contains(t, out, "*AAPL — Quality Analysis*")
}

func TestAnalysis_MissingMetadataRendersNA(t *testing.T) {
	meta := &model.ScreenerRow{Ticker: "AAPL", Company: "Apple Inc."}
	out := Analysis(FormatPlain, sampleAnalysis(), meta)
	assert.Contains(t, out, "Apple Inc.")
	assert.Contains(t, out, "P/E: N/A")
	assert.Contains(t, out, "Market Cap: N/A")
	assert.NotContains(t, out, "P/E: 0")
}

func TestAnalysis_VerdictMarks(t *testing.T) {
	out := Analysis(FormatPlain, sampleAnalysis(), nil)
	assert.Contains(t, out, "[+] Cash Test")
	assert.Contains(t, out, "[?] Debt-to-Equity")
	assert.Contains(t, out, "No Interest")
}

func TestScan_RanksAndSummarizes(t *testing.T) {
	records := []model.ScanRecord{
		{Ticker: "DEEP", WilliamsR: -96.5, Intensity: model.IntensityExtreme, PassCount: 8, Evaluated: 10, Combined: 0.571},
		{Ticker: "MILD", WilliamsR: -82.1, Intensity: model.IntensityModerate, PassCount: 6, Evaluated: 9, Combined: 0.474},
	}
	summary := model.ScanSummary{Scanned: 503, Succeeded: 2, Skipped: 501}

	out := Scan(FormatPlain, records, summary)
	assert.Contains(t, out, "503 scanned, 2 scored, 501 skipped")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	require.Contains(t, last, "MILD")
	assert.Contains(t, out, " 1. DEEP")
	assert.Contains(t, out, "EXTREME")
}

func TestScan_EmptyRecords(t *testing.T) {
	out := Scan(FormatPlain, nil, model.ScanSummary{Scanned: 10, Skipped: 10})
	assert.Contains(t, out, "No candidates cleared the screen.")
}

func TestSignals_List(t *testing.T) {
	out := Signals(FormatPlain, []model.Signal{
		{Ticker: "AAA", WilliamsR: -91.2, Intensity: model.IntensityVeryStrong},
	})
	assert.Contains(t, out, "AAA")
	assert.Contains(t, out, "VERY_STRONG")
	assert.NotContains(t, out, "EMA")
}

func TestSignals_RendersEMAWhenPresent(t *testing.T) {
	ema := -88.4
	out := Signals(FormatPlain, []model.Signal{
		{Ticker: "BBB", WilliamsR: -95.1, EMA: &ema, Intensity: model.IntensityStrong},
	})
	assert.Contains(t, out, "W%R  -95.10")
	assert.Contains(t, out, "EMA  -88.40")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("telegram")
	require.NoError(t, err)
	assert.Equal(t, FormatTelegram, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
