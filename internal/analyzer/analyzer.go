// Package analyzer produces the per-stock deep dive: indicator sections
// over a long daily window, a 0-100 score with the contributing factors,
// a recommendation and risk warnings.
package analyzer

import (
	"math"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/indicator"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Recommendation labels, by descending score band.
const (
	RecStrongBuy   = "strongly recommended, accumulate on dips"
	RecCautiousBuy = "cautiously recommended, watch support levels"
	RecNeutral     = "neutral, wait and see"
	RecReduce      = "reduce, mind the risk"
)

// Trend is the moving-average section of the deep dive.
type Trend struct {
	MA5         float64 `json:"ma5"`
	MA20        float64 `json:"ma20"`
	EMA12       float64 `json:"ema12"`
	EMA26       float64 `json:"ema26"`
	Rising      bool    `json:"rising"`       // MA5 above MA20
	GoldenCross bool    `json:"golden_cross"` // EMA12 above EMA26
}

// Momentum is the oscillator section.
type Momentum struct {
	MACD   float64 `json:"macd"`
	Signal float64 `json:"signal"`
	RSI    float64 `json:"rsi"`
}

// Volatility is the band section.
type Volatility struct {
	BollUpper  float64 `json:"boll_upper"`
	BollMiddle float64 `json:"boll_middle"`
	BollLower  float64 `json:"boll_lower"`
	ATR        float64 `json:"atr"`
}

// Volume is the flow section.
type Volume struct {
	OBVRising    bool    `json:"obv_rising"`    // OBV above its level 5 bars ago
	VolumeChange float64 `json:"volume_change"` // day-over-day volume pct change
}

// Report is one instrument's deep dive at its latest bar.
type Report struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Close float64 `json:"close"`

	Trend      Trend      `json:"trend"`
	Momentum   Momentum   `json:"momentum"`
	Volatility Volatility `json:"volatility"`
	Volume     Volume     `json:"volume"`

	PE           contracts.NullFloat `json:"pe"`
	ProfitGrowth contracts.NullFloat `json:"profit_growth"`

	Score          int      `json:"score"` // 0-100
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
	Warnings       []string `json:"warnings"`
}

// Analyzer scores a single instrument from its daily history, its
// valuation snapshot and the benchmark index trends.
type Analyzer struct {
	config strategyconfig.Strategy
	logger *logger.Logger
}

// New creates a deep-dive analyzer.
func New(config strategyconfig.Strategy, log *logger.Logger) *Analyzer {
	return &Analyzer{config: config, logger: log}
}

// Analyze builds the deep dive from date-ordered daily bars. Indicator
// cells without enough trailing history stay NaN and simply score
// nothing; only an empty history is an error.
func (a *Analyzer) Analyze(bars []contracts.PriceBar, fund contracts.Fundamental, indexes []market.IndexTrend) (Report, error) {
	if len(bars) == 0 {
		return Report{}, contracts.ErrNoInputData
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	pctChanges := make([]float64, n)
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		volumes[i] = bar.Volume
		pctChanges[i] = bar.PctChange
	}

	last := n - 1
	latest := bars[last]

	ma5 := indicator.SMA(closes, 5)
	ma20 := indicator.SMA(closes, 20)
	ema12 := indicator.EMA(closes, 12)
	ema26 := indicator.EMA(closes, 26)
	macd, signal, _ := indicator.MACD(closes)
	rsi := indicator.RSI(closes, 14)
	bollUpper, bollMiddle, bollLower := indicator.Bollinger(closes, 20, 2)
	obv := indicator.OBV(closes, volumes)
	atr := indicator.ATR(highs, lows, closes, 14)

	r := Report{
		Code:  latest.Code,
		Name:  latest.Name,
		Close: latest.Close,
		Trend: Trend{
			MA5:         ma5[last],
			MA20:        ma20[last],
			EMA12:       ema12[last],
			EMA26:       ema26[last],
			Rising:      ma5[last] > ma20[last],
			GoldenCross: ema12[last] > ema26[last],
		},
		Momentum: Momentum{
			MACD:   macd[last],
			Signal: signal[last],
			RSI:    rsi[last],
		},
		Volatility: Volatility{
			BollUpper:  bollUpper[last],
			BollMiddle: bollMiddle[last],
			BollLower:  bollLower[last],
			ATR:        atr[last],
		},
		PE: fund.PE,
	}

	if n > 5 {
		r.Volume.OBVRising = obv[last] > obv[last-5]
	}
	if n > 1 && volumes[last-1] != 0 {
		r.Volume.VolumeChange = (volumes[last] - volumes[last-1]) / volumes[last-1]
	}

	// Growth proxy: trailing mean of the daily move when the snapshot
	// carries nothing.
	r.ProfitGrowth = fund.ProfitGrowth
	if !r.ProfitGrowth.Valid {
		growth20 := indicator.SMA(pctChanges, 20)
		if !math.IsNaN(growth20[last]) {
			r.ProfitGrowth = contracts.Float(growth20[last])
		}
	}

	a.score(&r, indexes)
	a.warn(&r)

	a.logger.WithFields(map[string]interface{}{
		"code":  r.Code,
		"score": r.Score,
	}).Info("Deep dive completed")

	return r, nil
}

// score accumulates the 0-100 total: technical up to 40, valuation up
// to 30, market environment up to 30. Each contributing condition also
// appends a factor line.
func (a *Analyzer) score(r *Report, indexes []market.IndexTrend) {
	tech := 0
	if r.Trend.Rising {
		tech += 10
		r.Factors = append(r.Factors, "in an uptrend")
		if r.Trend.GoldenCross {
			tech += 5
			r.Factors = append(r.Factors, "EMA golden cross")
		}
	}
	switch {
	case r.Momentum.RSI > 30 && r.Momentum.RSI < 70:
		tech += 5
		r.Factors = append(r.Factors, "RSI in a healthy range")
	case r.Momentum.RSI >= 70:
		tech -= 5
		r.Factors = append(r.Factors, "RSI overbought")
	}
	switch {
	case r.Close > r.Volatility.BollUpper:
		tech -= 3
		r.Factors = append(r.Factors, "above the upper Bollinger band")
	case r.Close < r.Volatility.BollLower:
		tech += 5
		r.Factors = append(r.Factors, "at the lower Bollinger band")
	}
	if r.Volume.OBVRising {
		tech += 5
		r.Factors = append(r.Factors, "OBV rising")
	}
	r.Score += clamp(tech, 0, 40)

	valuation := 0
	if r.PE.Valid && r.PE.Float64 > 0 && (a.config.MaxPE <= 0 || r.PE.Float64 <= a.config.MaxPE) {
		valuation += 15
		r.Factors = append(r.Factors, "PE inside the configured ceiling")
	}
	if r.ProfitGrowth.Valid && r.ProfitGrowth.Float64 > 0 {
		valuation += 15
		r.Factors = append(r.Factors, "positive growth trend")
	}
	r.Score += clamp(valuation, 0, 30)

	env := 0
	for _, idx := range indexes {
		if idx.Trend == market.TrendUp {
			env += 10
			r.Factors = append(r.Factors, idx.Name+" in an uptrend")
		}
	}
	r.Score += clamp(env, 0, 30)

	switch {
	case r.Score >= 70:
		r.Recommendation = RecStrongBuy
	case r.Score >= 50:
		r.Recommendation = RecCautiousBuy
	case r.Score >= 30:
		r.Recommendation = RecNeutral
	default:
		r.Recommendation = RecReduce
	}
}

func (a *Analyzer) warn(r *Report) {
	if !math.IsNaN(r.Trend.MA20) && r.Close < r.Trend.MA20 {
		r.Warnings = append(r.Warnings, "price below the 20-day average")
	}
	if r.PE.Valid && r.PE.Float64 < 0 {
		r.Warnings = append(r.Warnings, "negative dynamic PE, loss-making")
	}
	if r.ProfitGrowth.Valid && r.ProfitGrowth.Float64 < 0 {
		r.Warnings = append(r.Warnings, "negative growth trend")
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
