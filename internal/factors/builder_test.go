package factors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// seedPanel builds a panel of days bars per code with linearly rising
// closes and constant volume/turnover.
func seedPanel(codes []string, days int) contracts.Panel {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var panel contracts.Panel
	for ci, code := range codes {
		for d := 0; d < days; d++ {
			close := 10.0 + float64(ci) + 0.1*float64(d)
			panel = append(panel, contracts.PriceBar{
				Code:         code,
				Name:         fmt.Sprintf("stock-%s", code),
				TradeDate:    base.AddDate(0, 0, d),
				Open:         close - 0.05,
				High:         close + 0.1,
				Low:          close - 0.1,
				Close:        close,
				Volume:       2_000_000,
				Amount:       close * 2_000_000,
				TurnoverRate: contracts.Float(1.5),
				PctChange:    0.8,
				Industry:     contracts.DefaultIndustry,
			})
		}
	}
	return panel
}

func TestBuilder_NeverDropsRows(t *testing.T) {
	builder := NewBuilder(logger.NewNop())
	panel := seedPanel([]string{"000001", "600000"}, 25)

	rows := builder.Build(panel)
	assert.Len(t, rows, len(panel))
}

func TestBuilder_MissingUntilWindowFull(t *testing.T) {
	builder := NewBuilder(logger.NewNop())
	rows := builder.Build(seedPanel([]string{"000001"}, 25))
	require.Len(t, rows, 25)

	// 5-period factors become valid at index 4.
	assert.False(t, rows[3].MA5.Valid)
	assert.True(t, rows[4].MA5.Valid)
	assert.False(t, rows[3].Volume5D.Valid)
	assert.True(t, rows[4].Volume5D.Valid)
	assert.False(t, rows[3].Turnover5D.Valid)
	assert.True(t, rows[4].Turnover5D.Valid)

	// 20-period factors become valid at index 19 (SMA/std) and 20
	// (20-period return needs a bar 20 periods back).
	assert.False(t, rows[18].MA20.Valid)
	assert.True(t, rows[19].MA20.Valid)
	assert.False(t, rows[18].Volatility20D.Valid)
	assert.True(t, rows[19].Volatility20D.Valid)
	assert.False(t, rows[18].ProfitGrowth.Valid)
	assert.True(t, rows[19].ProfitGrowth.Valid)
	assert.False(t, rows[19].Return20D.Valid)
	assert.True(t, rows[20].Return20D.Valid)

	// A partially-warm row keeps its valid factors.
	assert.True(t, rows[10].MA5.Valid)
	assert.False(t, rows[10].MA20.Valid)
}

func TestBuilder_Values(t *testing.T) {
	builder := NewBuilder(logger.NewNop())
	rows := builder.Build(seedPanel([]string{"000001"}, 25))

	last := rows[len(rows)-1]
	require.True(t, last.Return20D.Valid)
	// close goes 10.0 -> 12.4; bar 20 periods back is 10.4.
	assert.InDelta(t, (12.4-10.4)/10.4, last.Return20D.Float64, 1e-9)

	require.True(t, last.Volume5D.Valid)
	assert.InDelta(t, 2_000_000, last.Volume5D.Float64, 1e-6)

	require.True(t, last.Volatility20D.Valid)
	assert.InDelta(t, 0, last.Volatility20D.Float64, 1e-9, "constant pct change has zero volatility")

	require.True(t, last.Trend.Valid)
	assert.Greater(t, last.Trend.Float64, 0.0, "uptrend: MA5 above MA20")

	require.True(t, last.ProfitGrowth.Valid)
	assert.InDelta(t, 0.8, last.ProfitGrowth.Float64, 1e-9, "growth proxy averages the daily move")
}

func TestBuilder_GroupsAreIndependent(t *testing.T) {
	builder := NewBuilder(logger.NewNop())

	// One instrument with full history, one with too little.
	panel := seedPanel([]string{"000001"}, 25)
	panel = append(panel, seedPanel([]string{"600000"}, 3)...)

	rows := builder.Build(panel)
	require.Len(t, rows, 28)

	for _, row := range rows {
		if row.Code == "600000" {
			assert.False(t, row.MA5.Valid, "short history stays missing")
			assert.False(t, row.Return20D.Valid)
		}
	}
}

func TestBuilder_MissingTurnoverPropagates(t *testing.T) {
	builder := NewBuilder(logger.NewNop())
	panel := seedPanel([]string{"000001"}, 10)
	// Drop one turnover value inside the window.
	panel[7].TurnoverRate = contracts.Null()

	rows := builder.Build(panel)
	// Windows covering index 7 are missing, later windows recover.
	assert.False(t, rows[7].Turnover5D.Valid)
	assert.False(t, rows[9].Turnover5D.Valid)
	// Volume is unaffected.
	assert.True(t, rows[9].Volume5D.Valid)
}

func TestLatestSlice(t *testing.T) {
	builder := NewBuilder(logger.NewNop())
	rows := builder.Build(seedPanel([]string{"000001", "600000"}, 10))

	slice := LatestSlice(rows)
	require.Len(t, slice, 2)
	for _, row := range slice {
		assert.Equal(t, rows[9].TradeDate, row.TradeDate)
	}
}
