// Package strategyconfig defines the tunable strategy parameters and
// loads them from a YAML file. Components receive the loaded value
// explicitly; there is no ambient lookup.
package strategyconfig

import "fmt"

// Config is the full strategy parameter set.
type Config struct {
	Strategy  Strategy  `yaml:"strategy" json:"strategy"`
	Weights   Weights   `yaml:"weights" json:"weights"`
	Selection Selection `yaml:"selection" json:"selection"`
}

// Strategy holds the basic-path eligibility thresholds and target-price
// ratios.
type Strategy struct {
	MinPrice     float64 `yaml:"min_price" json:"min_price"`
	MaxPrice     float64 `yaml:"max_price" json:"max_price"`
	MinTurnover  float64 `yaml:"min_turnover" json:"min_turnover"` // turnover amount floor
	MinMarketCap float64 `yaml:"min_market_cap" json:"min_market_cap"`
	MaxPE        float64 `yaml:"max_pe" json:"max_pe"`
	MinReturn    float64 `yaml:"min_return" json:"min_return"`
	MinVolume    float64 `yaml:"min_volume" json:"min_volume"`
	TakeProfit   float64 `yaml:"take_profit" json:"take_profit"` // BUY target ratio
	StopLoss     float64 `yaml:"stop_loss" json:"stop_loss"`     // SELL target ratio
}

// Weights are the factor weights for the composite score. Volatility is
// applied with a negative sign: less volatile is better.
type Weights struct {
	Momentum  float64 `yaml:"momentum" json:"momentum"`   // 20-day return
	Value     float64 `yaml:"value" json:"value"`         // 5-day avg turnover rate
	Quality   float64 `yaml:"quality" json:"quality"`     // 20-day volatility, negated
	Sentiment float64 `yaml:"sentiment" json:"sentiment"` // trend (MA5/MA20 - 1)
}

// Selection holds the tiered eligibility thresholds for the enhanced
// path.
type Selection struct {
	MinCandidates int        `yaml:"min_candidates" json:"min_candidates"` // below this, relax
	TopN          int        `yaml:"top_n" json:"top_n"`
	Strict        Thresholds `yaml:"strict" json:"strict"`
	Relaxed       Thresholds `yaml:"relaxed" json:"relaxed"`
}

// Thresholds is one eligibility tier. MaxVolatility <= 0 means no
// volatility ceiling (the relaxed tier drops it).
type Thresholds struct {
	MinClose        float64 `yaml:"min_close" json:"min_close"`
	MinVolume       float64 `yaml:"min_volume" json:"min_volume"`
	MinTurnoverRate float64 `yaml:"min_turnover_rate" json:"min_turnover_rate"`
	MaxVolatility   float64 `yaml:"max_volatility" json:"max_volatility"`
}

// Default returns the built-in parameter set.
func Default() *Config {
	return &Config{
		Strategy: Strategy{
			MinPrice:     5.0,
			MaxPrice:     100.0,
			MinTurnover:  100_000_000, // 1亿 turnover amount
			MinMarketCap: 5_000_000_000,
			MaxPE:        60,
			MinReturn:    -3,
			MinVolume:    1_000_000,
			TakeProfit:   1.10,
			StopLoss:     0.95,
		},
		Weights: Weights{
			Momentum:  0.3,
			Value:     0.3,
			Quality:   0.2,
			Sentiment: 0.2,
		},
		Selection: Selection{
			MinCandidates: 10,
			TopN:          30,
			Strict: Thresholds{
				MinClose:        5.0,
				MinVolume:       1_000_000,
				MinTurnoverRate: 0.5,
				MaxVolatility:   0.20,
			},
			Relaxed: Thresholds{
				MinClose:        3.0,
				MinVolume:       500_000,
				MinTurnoverRate: 0.3,
				MaxVolatility:   0, // ceiling dropped
			},
		},
	}
}

// Validate checks the parameter set for obvious mistakes.
func Validate(cfg *Config) error {
	if cfg.Strategy.TakeProfit <= 1.0 {
		return fmt.Errorf("strategy.take_profit must be > 1.0, got %v", cfg.Strategy.TakeProfit)
	}
	if cfg.Strategy.StopLoss <= 0 || cfg.Strategy.StopLoss >= 1.0 {
		return fmt.Errorf("strategy.stop_loss must be in (0, 1), got %v", cfg.Strategy.StopLoss)
	}

	w := cfg.Weights
	if w.Momentum < 0 || w.Value < 0 || w.Quality < 0 || w.Sentiment < 0 {
		return fmt.Errorf("weights must be non-negative (quality is negated internally)")
	}
	sum := w.Momentum + w.Value + w.Quality + w.Sentiment
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}

	if cfg.Selection.TopN <= 0 {
		return fmt.Errorf("selection.top_n must be positive, got %d", cfg.Selection.TopN)
	}
	if cfg.Selection.MinCandidates < 0 {
		return fmt.Errorf("selection.min_candidates must not be negative, got %d", cfg.Selection.MinCandidates)
	}
	return nil
}
