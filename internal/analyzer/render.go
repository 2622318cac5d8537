package analyzer

import (
	"fmt"
	"math"
	"strings"
)

// Render produces the plain-text deep dive. Indicator cells without
// enough history render as "n/a" instead of hiding the line.
func (r Report) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Stock Deep Dive - %s %s\n", r.Code, r.Name)
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "close: %.2f\n\n", r.Close)

	section(&b, "1. Trend")
	fmt.Fprintf(&b, "MA5: %s  MA20: %s\n", num(r.Trend.MA5), num(r.Trend.MA20))
	fmt.Fprintf(&b, "EMA12: %s  EMA26: %s\n", num(r.Trend.EMA12), num(r.Trend.EMA26))
	fmt.Fprintf(&b, "direction: %s (%s)\n\n", direction(r.Trend.Rising), cross(r.Trend.GoldenCross))

	section(&b, "2. Momentum")
	fmt.Fprintf(&b, "MACD: %s  signal: %s\n", num(r.Momentum.MACD), num(r.Momentum.Signal))
	fmt.Fprintf(&b, "RSI: %s\n\n", num(r.Momentum.RSI))

	section(&b, "3. Volatility")
	fmt.Fprintf(&b, "Bollinger: %s / %s / %s\n", num(r.Volatility.BollUpper), num(r.Volatility.BollMiddle), num(r.Volatility.BollLower))
	fmt.Fprintf(&b, "ATR: %s\n\n", num(r.Volatility.ATR))

	section(&b, "4. Volume")
	obv := "falling"
	if r.Volume.OBVRising {
		obv = "rising"
	}
	fmt.Fprintf(&b, "OBV: %s\n", obv)
	fmt.Fprintf(&b, "volume change: %+.2f%%\n\n", r.Volume.VolumeChange*100)

	section(&b, "5. Valuation")
	if r.PE.Valid {
		fmt.Fprintf(&b, "dynamic PE: %.2f\n", r.PE.Float64)
	} else {
		b.WriteString("dynamic PE: n/a\n")
	}
	if r.ProfitGrowth.Valid {
		fmt.Fprintf(&b, "growth trend: %+.2f%%\n\n", r.ProfitGrowth.Float64)
	} else {
		b.WriteString("growth trend: n/a\n\n")
	}

	fmt.Fprintf(&b, "score: %d/100\n", r.Score)
	for _, factor := range r.Factors {
		fmt.Fprintf(&b, "  + %s\n", factor)
	}
	fmt.Fprintf(&b, "recommendation: %s\n", r.Recommendation)

	b.WriteString("risk warnings:\n")
	if len(r.Warnings) == 0 {
		b.WriteString("  none\n")
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "  - %s\n", warning)
	}

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func direction(rising bool) string {
	if rising {
		return "uptrend"
	}
	return "downtrend"
}

func cross(golden bool) string {
	if golden {
		return "golden cross"
	}
	return "dead cross"
}
