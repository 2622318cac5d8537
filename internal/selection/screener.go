// Package selection applies tiered eligibility filters to the scored
// slice and ranks what passes by composite score.
package selection

import (
	"sort"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Screener selects the final candidate list from one date's scored
// rows. When fewer than MinCandidates rows pass the strict tier it
// retries once with the relaxed tier; there is never a third tier, and
// an empty selection is a valid outcome. The valuation gates (PE
// ceiling, market-cap floor) apply in both tiers.
type Screener struct {
	config   strategyconfig.Selection
	strategy strategyconfig.Strategy
	logger   *logger.Logger
}

// NewScreener creates a screener.
func NewScreener(config strategyconfig.Selection, strategy strategyconfig.Strategy, log *logger.Logger) *Screener {
	return &Screener{config: config, strategy: strategy, logger: log}
}

// Select filters, ranks and truncates the scored slice. Pure function of
// its input: no side effects beyond logging.
func (s *Screener) Select(date time.Time, rows []contracts.ScoredRow) contracts.SelectionResult {
	tier := contracts.TierStrict
	passed := s.filter(rows, s.config.Strict)

	if len(passed) < s.config.MinCandidates {
		s.logger.WithFields(map[string]interface{}{
			"strict_count":   len(passed),
			"min_candidates": s.config.MinCandidates,
		}).Info("Too few candidates, relaxing thresholds")

		tier = contracts.TierRelaxed
		passed = s.filter(rows, s.config.Relaxed)
	}

	// Rank by composite descending. Equal scores keep their input order,
	// so the ranking is deterministic.
	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].Composite > passed[j].Composite
	})

	if len(passed) > s.config.TopN {
		passed = passed[:s.config.TopN]
	}

	s.logger.WithFields(map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"tier":     tier.String(),
		"selected": len(passed),
	}).Info("Selection completed")

	return contracts.SelectionResult{
		Date: date,
		Tier: tier,
		Rows: passed,
	}
}

// filter returns the rows passing one tier's thresholds, preserving
// input order.
func (s *Screener) filter(rows []contracts.ScoredRow, th strategyconfig.Thresholds) []contracts.ScoredRow {
	passed := make([]contracts.ScoredRow, 0, len(rows))
	for _, row := range rows {
		if !qualifies(row, th) {
			continue
		}
		if !s.valuationOK(row) {
			continue
		}
		passed = append(passed, row)
	}
	return passed
}

func qualifies(row contracts.ScoredRow, th strategyconfig.Thresholds) bool {
	if row.Close < th.MinClose {
		return false
	}
	if row.Volume < th.MinVolume {
		return false
	}
	// A missing turnover rate never clears the floor.
	if !row.TurnoverRate.Valid || row.TurnoverRate.Float64 < th.MinTurnoverRate {
		return false
	}
	if th.MaxVolatility > 0 {
		if !row.Volatility20D.Valid || row.Volatility20D.Float64 > th.MaxVolatility {
			return false
		}
	}
	return true
}

// valuationOK applies the PE ceiling and market-cap floor. Cells the
// fundamentals merge could not resolve never disqualify a row, so a day
// without a valuation snapshot still selects normally.
func (s *Screener) valuationOK(row contracts.ScoredRow) bool {
	if s.strategy.MaxPE > 0 && row.PE.Valid && row.PE.Float64 > s.strategy.MaxPE {
		return false
	}
	if s.strategy.MinMarketCap > 0 && row.MarketCap.Valid && row.MarketCap.Float64 < s.strategy.MinMarketCap {
		return false
	}
	return true
}

// Signals converts a selection into ranked report signals.
func Signals(result contracts.SelectionResult) []contracts.Signal {
	signals := make([]contracts.Signal, 0, len(result.Rows))
	for i, row := range result.Rows {
		signals = append(signals, contracts.Signal{
			Code:         row.Code,
			Name:         row.Name,
			TradeDate:    row.TradeDate,
			Close:        row.Close,
			PctChange:    row.PctChange,
			TurnoverRate: row.TurnoverRate,
			Industry:     row.Industry,
			Rank:         i + 1,
			Composite:    contracts.Float(row.Composite),
		})
	}
	return signals
}
