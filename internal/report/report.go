// Package report renders analyses and scan results for terminals and
// Telegram-style messaging.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/screener-cli/internal/model"
)

// Format selects the output rendering.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatTelegram Format = "telegram"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPlain, "":
		return FormatPlain, nil
	case FormatTelegram:
		return FormatTelegram, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

var printer = message.NewPrinter(language.English)

// orNA substitutes the placeholder for fields the upstream left blank.
// A missing P/E must render as "N/A", never as zero.
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func (f Format) bold(s string) string {
	if f == FormatTelegram {
		return "*" + s + "*"
	}
	return s
}

// Analysis renders one ticker's full formula battery.
func Analysis(f Format, a model.Analysis, meta *model.ScreenerRow) string {
	var b strings.Builder

	header := fmt.Sprintf("%s — Quality Analysis", a.Ticker)
	b.WriteString(f.bold(header))
	b.WriteString("\n")
	if meta != nil {
		fmt.Fprintf(&b, "%s | %s | %s\n", orNA(meta.Company), orNA(meta.Sector), orNA(meta.Industry))
		fmt.Fprintf(&b, "Country: %s  P/E: %s  Market Cap: %s\n",
			orNA(meta.Country), orNA(meta.PE), orNA(meta.MarketCap))
	}
	if a.PeriodEnd != "" {
		fmt.Fprintf(&b, "Fiscal period ending %s\n", a.PeriodEnd)
	}
	b.WriteString("\n")

	for _, r := range a.Results {
		fmt.Fprintf(&b, "%s %-22s %8s  (target %s)\n",
			verdictMark(r.Verdict), r.Name, displayValue(r), r.Target)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d/%d passed, %d unknown\n",
		f.bold("Score:"), a.Score.Passed, a.Score.Evaluated(), a.Score.Unknown)
	return b.String()
}

// Scan renders a ranked scan result list with its run summary.
func Scan(f Format, records []model.ScanRecord, summary model.ScanSummary) string {
	var b strings.Builder

	b.WriteString(f.bold("Oversold Screen"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s scanned, %s scored, %s skipped\n\n",
		printer.Sprintf("%d", summary.Scanned),
		printer.Sprintf("%d", summary.Succeeded),
		printer.Sprintf("%d", summary.Skipped),
	)

	if len(records) == 0 {
		b.WriteString("No candidates cleared the screen.\n")
		return b.String()
	}

	for i, r := range records {
		fmt.Fprintf(&b, "%2d. %-6s  W%%R %7.2f  %-11s  %d/%d passed  score %.3f\n",
			i+1, r.Ticker, r.WilliamsR, r.Intensity, r.PassCount, r.Evaluated, r.Combined)
	}
	return b.String()
}

// Signals renders a technical-only scan.
func Signals(f Format, signals []model.Signal) string {
	var b strings.Builder
	b.WriteString(f.bold("Technical Scan"))
	b.WriteString("\n\n")
	if len(signals) == 0 {
		b.WriteString("No oversold signals.\n")
		return b.String()
	}
	for i, s := range signals {
		if s.EMA != nil {
			fmt.Fprintf(&b, "%2d. %-6s  W%%R %7.2f  EMA %7.2f  %s\n",
				i+1, s.Ticker, s.WilliamsR, *s.EMA, s.Intensity)
		} else {
			fmt.Fprintf(&b, "%2d. %-6s  W%%R %7.2f  %s\n", i+1, s.Ticker, s.WilliamsR, s.Intensity)
		}
	}
	return b.String()
}

func verdictMark(v model.Verdict) string {
	switch v {
	case model.VerdictPass:
		return "[+]"
	case model.VerdictFail:
		return "[-]"
	default:
		return "[?]"
	}
}

func displayValue(r model.FormulaResult) string {
	if r.Display != "" {
		return r.Display
	}
	return "N/A"
}
