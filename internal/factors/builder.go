// Package factors computes per-instrument rolling factors over the full
// panel: momentum return, liquidity averages, volatility and trend.
package factors

import (
	"math"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/indicator"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Builder derives FactorRows from a price panel. Rows are grouped by
// instrument and processed in trade-date order; rows with insufficient
// trailing history carry missing markers for the affected factor only.
// The builder never drops rows.
type Builder struct {
	logger *logger.Logger
}

// NewBuilder creates a factor builder.
func NewBuilder(log *logger.Logger) *Builder {
	return &Builder{logger: log}
}

// Build augments every panel row with rolling factors. The input panel
// is not mutated; output rows are returned sorted by (code, trade date).
func (b *Builder) Build(panel contracts.Panel) []contracts.FactorRow {
	sorted := make(contracts.Panel, len(panel))
	copy(sorted, panel)
	sorted.Sort()

	rows := make([]contracts.FactorRow, len(sorted))
	for i, bar := range sorted {
		rows[i] = contracts.FactorRow{PriceBar: bar}
	}

	// Group boundaries over the sorted panel.
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Code != sorted[start].Code {
			b.buildGroup(rows[start:i])
			start = i
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"rows":        len(rows),
		"instruments": len(panel.Codes()),
	}).Debug("Factor computation completed")

	return rows
}

// buildGroup computes rolling factors for one instrument's date-ordered
// rows.
func (b *Builder) buildGroup(group []contracts.FactorRow) {
	n := len(group)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	turnovers := make([]float64, n)
	pctChanges := make([]float64, n)

	for i, row := range group {
		closes[i] = row.Close
		volumes[i] = row.Volume
		pctChanges[i] = row.PctChange
		turnovers[i] = row.TurnoverRate.Or(math.NaN())
	}

	return20 := indicator.PctChange(closes, 20)
	volume5 := indicator.SMA(volumes, 5)
	turnover5 := indicator.SMA(turnovers, 5)
	volatility20 := indicator.RollingStd(pctChanges, 20)
	ma5 := indicator.SMA(closes, 5)
	ma20 := indicator.SMA(closes, 20)
	// Growth proxy: trailing mean of the daily move. The fundamentals
	// merge zero-fills rows whose window is not yet full.
	growth20 := indicator.SMA(pctChanges, 20)

	for i := range group {
		group[i].Return20D = fromSeries(return20[i])
		group[i].Volume5D = fromSeries(volume5[i])
		group[i].Turnover5D = fromSeries(turnover5[i])
		group[i].Volatility20D = fromSeries(volatility20[i])
		group[i].MA5 = fromSeries(ma5[i])
		group[i].MA20 = fromSeries(ma20[i])
		group[i].ProfitGrowth = fromSeries(growth20[i])

		if !math.IsNaN(ma5[i]) && !math.IsNaN(ma20[i]) && ma20[i] != 0 {
			group[i].Trend = contracts.Float(ma5[i]/ma20[i] - 1)
		}
	}
}

// LatestSlice returns the rows at the most recent trade date, one per
// instrument, preserving input order.
func LatestSlice(rows []contracts.FactorRow) []contracts.FactorRow {
	var latest int64
	for _, row := range rows {
		if ts := row.TradeDate.Unix(); ts > latest {
			latest = ts
		}
	}

	slice := make([]contracts.FactorRow, 0)
	for _, row := range rows {
		if row.TradeDate.Unix() == latest {
			slice = append(slice, row)
		}
	}
	return slice
}

func fromSeries(v float64) contracts.NullFloat {
	if math.IsNaN(v) {
		return contracts.Null()
	}
	return contracts.Float(v)
}
