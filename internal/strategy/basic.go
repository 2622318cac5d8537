// Package strategy implements the rule-based signal path: per-stock
// indicator checks on the latest bar, independent of the factor scorer.
package strategy

import (
	"math"
	"strings"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/indicator"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Reason clauses, assembled in a fixed order from independently-true
// sub-conditions.
const (
	ReasonActiveTurnover  = "active turnover"
	ReasonUpwardMomentum  = "upward momentum"
	ReasonMACDGoldenCross = "MACD golden cross"
	ReasonTechImprovement = "technical improvement"
	ReasonSharpDrawdown   = "sharp drawdown"
	ReasonRSIOverbought   = "RSI overbought"
	ReasonTechWeakening   = "technical weakening"
)

// Evaluation is one instrument's latest bar with its indicator snapshot
// and rule flags. Buy and Sell are not mutually exclusive: the rules
// define no precedence, so both are surfaced and left to the report
// consumer.
type Evaluation struct {
	Bar    contracts.PriceBar
	MACD   float64
	Signal float64
	RSI    float64
	Buy    bool
	Sell   bool
}

// Basic generates rule-based buy/sell signals.
type Basic struct {
	config strategyconfig.Strategy
	logger *logger.Logger
}

// NewBasic creates the rule-based strategy.
func NewBasic(config strategyconfig.Strategy, log *logger.Logger) *Basic {
	return &Basic{config: config, logger: log}
}

// Evaluate computes indicators per instrument over its date-ordered
// series and applies the buy/sell rules to the latest bar. Instruments
// whose latest turnover amount is below the configured floor are
// filtered out before evaluation.
func (b *Basic) Evaluate(panel contracts.Panel) []Evaluation {
	sorted := make(contracts.Panel, len(panel))
	copy(sorted, panel)
	sorted.Sort()

	evals := make([]Evaluation, 0)
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Code == sorted[start].Code {
			continue
		}

		group := sorted[start:i]
		start = i

		latest := group[len(group)-1]
		if latest.Amount < b.config.MinTurnover {
			continue
		}

		closes := make([]float64, len(group))
		for gi, bar := range group {
			closes[gi] = bar.Close
		}

		macd, signal, _ := indicator.MACD(closes)
		rsi := indicator.RSI(closes, 14)
		last := len(group) - 1

		eval := Evaluation{
			Bar:    latest,
			MACD:   macd[last],
			Signal: signal[last],
			RSI:    rsi[last],
		}
		eval.Buy, eval.Sell = b.applyRules(eval)
		evals = append(evals, eval)
	}

	b.logger.WithFields(map[string]interface{}{
		"evaluated": len(evals),
	}).Debug("Rule evaluation completed")

	return evals
}

// applyRules evaluates every sub-condition; none short-circuits, since
// reason strings depend on which ones are true. NaN indicator values
// fail every comparison, so a stock without enough history produces no
// buy flag. The price band and volume floor gate new positions only;
// sell rules fire regardless, since exits must stay reachable.
func (b *Basic) applyRules(e Evaluation) (buy, sell bool) {
	turnover := e.Bar.TurnoverRate.Or(math.NaN())

	macdCross := e.MACD > e.Signal
	rsiOK := e.RSI < 70
	dropOK := e.Bar.PctChange > b.config.MinReturn
	turnoverOK := turnover > 1
	priceOK := e.Bar.Close >= b.config.MinPrice &&
		(b.config.MaxPrice <= 0 || e.Bar.Close <= b.config.MaxPrice)
	volumeOK := e.Bar.Volume >= b.config.MinVolume
	buy = macdCross && rsiOK && dropOK && turnoverOK && priceOK && volumeOK

	macdDead := e.MACD < e.Signal
	rsiHot := e.RSI > 80
	sharpDrop := e.Bar.PctChange < -5
	sell = macdDead || rsiHot || sharpDrop

	return buy, sell
}

// Signals converts flagged evaluations into report signals with an
// action label, a target price and an assembled reason.
func (b *Basic) Signals(evals []Evaluation) []contracts.Signal {
	signals := make([]contracts.Signal, 0)
	for _, e := range evals {
		if !e.Buy && !e.Sell {
			continue
		}

		sig := contracts.Signal{
			Code:         e.Bar.Code,
			Name:         e.Bar.Name,
			TradeDate:    e.Bar.TradeDate,
			Close:        e.Bar.Close,
			PctChange:    e.Bar.PctChange,
			TurnoverRate: e.Bar.TurnoverRate,
			Industry:     e.Bar.Industry,
			Buy:          e.Buy,
			Sell:         e.Sell,
		}

		if e.Buy {
			sig.Action = contracts.ActionBuy
			sig.TargetPrice = contracts.Float(e.Bar.Close * b.config.TakeProfit)
		} else {
			sig.Action = contracts.ActionSell
			sig.TargetPrice = contracts.Float(e.Bar.Close * b.config.StopLoss)
		}
		sig.Reason = b.reason(e)

		signals = append(signals, sig)
	}

	b.logger.WithFields(map[string]interface{}{
		"signals": len(signals),
	}).Info("Rule-based signals generated")

	return signals
}

// reason assembles the advice text from the sub-conditions that hold.
func (b *Basic) reason(e Evaluation) string {
	if e.Buy {
		var reasons []string
		if e.Bar.TurnoverRate.Or(0) > 3 {
			reasons = append(reasons, ReasonActiveTurnover)
		}
		if e.Bar.PctChange > 0 {
			reasons = append(reasons, ReasonUpwardMomentum)
		}
		if e.MACD > e.Signal {
			reasons = append(reasons, ReasonMACDGoldenCross)
		}
		if len(reasons) == 0 {
			return ReasonTechImprovement
		}
		return strings.Join(reasons, ", ")
	}

	if e.Bar.PctChange < -5 {
		return ReasonSharpDrawdown
	}
	if e.RSI > 80 {
		return ReasonRSIOverbought
	}
	return ReasonTechWeakening
}
