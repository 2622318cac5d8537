package contracts

import (
	"errors"
	"sort"
	"time"
)

// ErrNoInputData is returned when the data provider yields an empty panel.
// The pipeline must not compute factors on an empty frame.
var ErrNoInputData = errors.New("no input data")

// DefaultIndustry is the sentinel industry label for stocks whose
// classification is unknown.
const DefaultIndustry = "Other"

// NullFloat is an optional float64. Factor cells stay invalid until enough
// trailing history exists; the scorer resolves them before selection.
type NullFloat struct {
	Float64 float64 `json:"value"`
	Valid   bool    `json:"valid"`
}

// Float returns a valid NullFloat.
func Float(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// Null returns an invalid (missing) NullFloat.
func Null() NullFloat {
	return NullFloat{}
}

// Or returns the value if valid, otherwise the fallback.
func (n NullFloat) Or(fallback float64) float64 {
	if n.Valid {
		return n.Float64
	}
	return fallback
}

// PriceBar is one instrument on one trading date, after column
// reconciliation. Codes are zero-padded to six digits.
type PriceBar struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	TradeDate    time.Time `json:"trade_date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	Amount       float64   `json:"amount"`        // turnover amount
	TurnoverRate NullFloat `json:"turnover_rate"` // percent, absent for some providers
	PctChange    float64   `json:"pct_change"`    // signed percent
	Industry     string    `json:"industry"`
}

// Panel is the full (instrument x date) dataset a pipeline run operates on.
// Within one code, trade dates are strictly increasing and unique.
type Panel []PriceBar

// Sort orders the panel by (code, trade date). All rolling computations
// assume this ordering.
func (p Panel) Sort() {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Code != p[j].Code {
			return p[i].Code < p[j].Code
		}
		return p[i].TradeDate.Before(p[j].TradeDate)
	})
}

// LatestDate returns the most recent trade date in the panel.
func (p Panel) LatestDate() time.Time {
	var latest time.Time
	for _, bar := range p {
		if bar.TradeDate.After(latest) {
			latest = bar.TradeDate
		}
	}
	return latest
}

// Codes returns the distinct instrument codes in first-appearance order.
func (p Panel) Codes() []string {
	seen := make(map[string]bool, len(p))
	codes := make([]string, 0, len(p))
	for _, bar := range p {
		if !seen[bar.Code] {
			seen[bar.Code] = true
			codes = append(codes, bar.Code)
		}
	}
	return codes
}

// Fundamental is one instrument's valuation snapshot for the target
// date: dynamic PE and total market cap from the provider, plus the
// growth proxy resolved during the merge.
type Fundamental struct {
	Code         string    `json:"code"`
	PE           NullFloat `json:"pe"` // dynamic PE
	MarketCap    NullFloat `json:"market_cap"`
	ProfitGrowth NullFloat `json:"profit_growth"` // 20-day mean daily pct change
}

// FactorRow is a PriceBar augmented with rolling cross-sectional factors
// and the merged valuation cells. A cell stays missing until the trailing
// window is full; other cells on the same row may still be valid.
type FactorRow struct {
	PriceBar

	Return20D     NullFloat `json:"return_20d"`     // 20-period trailing return
	Volume5D      NullFloat `json:"volume_5d"`      // 5-period average volume
	Turnover5D    NullFloat `json:"turnover_5d"`    // 5-period average turnover rate
	Volatility20D NullFloat `json:"volatility_20d"` // stddev of daily pct change
	MA5           NullFloat `json:"ma5"`
	MA20          NullFloat `json:"ma20"`
	Trend         NullFloat `json:"trend"` // MA5/MA20 - 1

	// Valuation cells, filled by the fundamentals merge.
	PE           NullFloat `json:"pe"`
	MarketCap    NullFloat `json:"market_cap"`
	ProfitGrowth NullFloat `json:"profit_growth"`
}

// ScoredRow is a FactorRow with per-factor z-scores and the weighted
// composite score. After scoring every row carries a real composite.
type ScoredRow struct {
	FactorRow

	ZReturn20D     float64 `json:"z_return_20d"`
	ZTurnover5D    float64 `json:"z_turnover_5d"`
	ZVolatility20D float64 `json:"z_volatility_20d"`
	ZTrend         float64 `json:"z_trend"`
	Composite      float64 `json:"composite_score"`
}
