package analytics

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxFractionDigits = 3

// FormatCurrency renders an amount as "$ 12.450" (es) or "$ 12,450" (en). Up to three
// fraction digits are kept; trailing zeros are dropped.
func FormatCurrency(amount decimal.Decimal, loc Locale) string {
	return "$ " + FormatNumber(amount, loc)
}

// FormatNumber groups the integer part by thousands using the locale separators.
func FormatNumber(amount decimal.Decimal, loc Locale) string {
	groupSep, decimalSep := loc.GroupSep, loc.DecimalSep
	if groupSep == "" && decimalSep == "" {
		groupSep, decimalSep = LocaleES.GroupSep, LocaleES.DecimalSep
	}

	text := amount.Round(maxFractionDigits).String()
	negative := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	intPart, fracPart, _ := strings.Cut(text, ".")
	fracPart = strings.TrimRight(fracPart, "0")

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(groupSep)
		b.WriteString(intPart[i : i+3])
	}
	if fracPart != "" {
		b.WriteString(decimalSep)
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatShortDate renders a timestamp as dd/mm in loc, or "-" when absent.
func FormatShortDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02/01")
}
