package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

func newAnalyzer() *Analyzer {
	return New(strategyconfig.Default().Strategy, logger.NewNop())
}

// trending builds days daily bars compounding pct per day.
func trending(code string, days int, pct float64) []contracts.PriceBar {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	price := 10.0
	bars := make([]contracts.PriceBar, 0, days)
	for d := 0; d < days; d++ {
		price *= 1 + pct/100
		bars = append(bars, contracts.PriceBar{
			Code:      code,
			Name:      "test",
			TradeDate: base.AddDate(0, 0, d),
			Open:      price,
			High:      price * 1.01,
			Low:       price * 0.99,
			Close:     price,
			Volume:    2_000_000,
			PctChange: pct,
		})
	}
	return bars
}

func TestAnalyze_Uptrend(t *testing.T) {
	fund := contracts.Fundamental{Code: "600519", PE: contracts.Float(30)}
	indexes := []market.IndexTrend{
		{Name: "SSE Composite", Trend: market.TrendUp},
		{Name: "ChiNext", Trend: market.TrendDown},
	}

	r, err := newAnalyzer().Analyze(trending("600519", 60, 1.0), fund, indexes)
	require.NoError(t, err)

	assert.Equal(t, "600519", r.Code)
	assert.True(t, r.Trend.Rising, "MA5 above MA20")
	assert.True(t, r.Trend.GoldenCross)
	assert.Equal(t, 100.0, r.Momentum.RSI, "no down days clamps RSI")
	assert.True(t, r.Volume.OBVRising)

	require.True(t, r.ProfitGrowth.Valid)
	assert.InDelta(t, 1.0, r.ProfitGrowth.Float64, 1e-9, "growth proxy averages the daily move")

	assert.Contains(t, r.Factors, "in an uptrend")
	assert.Contains(t, r.Factors, "EMA golden cross")
	assert.Contains(t, r.Factors, "RSI overbought")
	assert.Contains(t, r.Factors, "PE inside the configured ceiling")
	assert.Contains(t, r.Factors, "positive growth trend")
	assert.Contains(t, r.Factors, "SSE Composite in an uptrend")
	assert.NotContains(t, r.Factors, "ChiNext in an uptrend")

	assert.GreaterOrEqual(t, r.Score, 50)
	assert.Less(t, r.Score, 70)
	assert.Equal(t, RecCautiousBuy, r.Recommendation)
}

func TestAnalyze_DowntrendWarns(t *testing.T) {
	r, err := newAnalyzer().Analyze(trending("600519", 60, -1.0), contracts.Fundamental{Code: "600519"}, nil)
	require.NoError(t, err)

	assert.False(t, r.Trend.Rising)
	assert.Equal(t, 0.0, r.Momentum.RSI, "no up days floors RSI")
	assert.False(t, r.Volume.OBVRising)

	assert.Equal(t, 0, r.Score)
	assert.Equal(t, RecReduce, r.Recommendation)
	assert.Contains(t, r.Warnings, "price below the 20-day average")
	assert.Contains(t, r.Warnings, "negative growth trend")
	assert.False(t, r.PE.Valid, "no snapshot entry leaves PE missing")
}

func TestAnalyze_ExpensivePEScoresNothing(t *testing.T) {
	fund := contracts.Fundamental{Code: "600519", PE: contracts.Float(500)}

	r, err := newAnalyzer().Analyze(trending("600519", 60, 1.0), fund, nil)
	require.NoError(t, err)
	assert.NotContains(t, r.Factors, "PE inside the configured ceiling")
}

func TestAnalyze_ShortHistoryStaysCalm(t *testing.T) {
	// Three bars: every 20-period indicator is NaN, nothing scores, and
	// nothing panics.
	r, err := newAnalyzer().Analyze(trending("600519", 3, 1.0), contracts.Fundamental{}, nil)
	require.NoError(t, err)
	assert.Equal(t, RecReduce, r.Recommendation)
	assert.False(t, r.ProfitGrowth.Valid)
}

func TestAnalyze_EmptyHistory(t *testing.T) {
	_, err := newAnalyzer().Analyze(nil, contracts.Fundamental{}, nil)
	assert.ErrorIs(t, err, contracts.ErrNoInputData)
}

func TestRender(t *testing.T) {
	fund := contracts.Fundamental{Code: "600519", PE: contracts.Float(30)}
	r, err := newAnalyzer().Analyze(trending("600519", 60, 1.0), fund, nil)
	require.NoError(t, err)

	text := r.Render()
	assert.Contains(t, text, "Stock Deep Dive - 600519")
	assert.Contains(t, text, "1. Trend")
	assert.Contains(t, text, "2. Momentum")
	assert.Contains(t, text, "3. Volatility")
	assert.Contains(t, text, "4. Volume")
	assert.Contains(t, text, "5. Valuation")
	assert.Contains(t, text, "dynamic PE: 30.00")
	assert.Contains(t, text, "recommendation:")
}

func TestRender_ShortHistoryShowsNA(t *testing.T) {
	r, err := newAnalyzer().Analyze(trending("600519", 3, 1.0), contracts.Fundamental{}, nil)
	require.NoError(t, err)

	text := r.Render()
	assert.Contains(t, text, "MA20: n/a")
	assert.Contains(t, text, "dynamic PE: n/a")
}
