// Package fundamentals attaches the day's valuation snapshot to the
// latest factor slice and resolves missing cells: PE falls back to the
// cross-sectional median, the growth proxy to zero.
package fundamentals

import (
	"sort"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Merge fills the valuation cells on each row from the snapshot, keyed
// by code. Rows without a snapshot entry get the fallback fills only;
// when no row carries a real PE at all, PE stays missing slice-wide and
// the valuation gates stand down. The slice is modified in place and
// returned.
func Merge(slice []contracts.FactorRow, funds []contracts.Fundamental, log *logger.Logger) []contracts.FactorRow {
	byCode := make(map[string]contracts.Fundamental, len(funds))
	for _, fund := range funds {
		byCode[fund.Code] = fund
	}

	matched := 0
	for i := range slice {
		fund, ok := byCode[slice[i].Code]
		if !ok {
			continue
		}
		matched++
		if fund.PE.Valid {
			slice[i].PE = fund.PE
		}
		if fund.MarketCap.Valid {
			slice[i].MarketCap = fund.MarketCap
		}
		if fund.ProfitGrowth.Valid && !slice[i].ProfitGrowth.Valid {
			slice[i].ProfitGrowth = fund.ProfitGrowth
		}
	}

	pes := make([]float64, 0, len(slice))
	for i := range slice {
		if slice[i].PE.Valid {
			pes = append(pes, slice[i].PE.Float64)
		}
	}
	if len(pes) > 0 {
		med := median(pes)
		for i := range slice {
			if !slice[i].PE.Valid {
				slice[i].PE = contracts.Float(med)
			}
		}
	}

	for i := range slice {
		if !slice[i].ProfitGrowth.Valid {
			slice[i].ProfitGrowth = contracts.Float(0)
		}
	}

	log.WithFields(map[string]interface{}{
		"rows":    len(slice),
		"matched": matched,
	}).Info("Fundamentals merged")

	return slice
}

// median of an unsorted slice; even counts average the two middle values.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
