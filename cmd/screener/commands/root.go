package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zlin/ashare-quant/internal/cache"
	"github.com/zlin/ashare-quant/internal/factors"
	"github.com/zlin/ashare-quant/internal/llm"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/internal/pipeline"
	"github.com/zlin/ashare-quant/internal/provider"
	"github.com/zlin/ashare-quant/internal/report"
	"github.com/zlin/ashare-quant/internal/scoring"
	"github.com/zlin/ashare-quant/internal/selection"
	"github.com/zlin/ashare-quant/internal/strategy"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/config"
	"github.com/zlin/ashare-quant/pkg/logger"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "A-share daily stock screener",
	Long: `A-share daily stock screener.

Builds cross-sectional factors over a trailing window, scores the
latest session, applies tiered eligibility filters and writes a ranked
signal export plus a plain-text market report.

Examples:
  go run ./cmd/screener run
  go run ./cmd/screener run --date 2026-08-28 --no-cache
  go run ./cmd/screener analyze 600519
  go run ./cmd/screener monitor`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy parameter file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// app bundles the wired collaborators a command works with.
type app struct {
	pipeline *pipeline.Pipeline
	provider *provider.Client
	params   *strategyconfig.Config
	config   *config.Config
	logger   *logger.Logger
}

// bootstrap loads configuration and wires the pipeline. Every command
// goes through here.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat)

	strategyPath := cfg.StrategyFile
	if strategyFile != "" {
		strategyPath = strategyFile
	}
	params, err := strategyconfig.LoadOrDefault(strategyPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy parameters: %w", err)
	}

	providerClient := provider.NewClient(cfg.Provider, log)

	var narrator pipeline.Narrator
	if cfg.DeepSeek.Enabled {
		narrator = llm.NewClient(cfg.DeepSeek, log)
	}

	p := pipeline.New(pipeline.Deps{
		Source:       providerClient,
		Fundamentals: providerClient,
		Store:        cache.NewStore(cfg.CacheDir, log),
		Factors:      factors.NewBuilder(log),
		Scorer:       scoring.NewScorer(params.Weights, log),
		Screener:     selection.NewScreener(params.Selection, params.Strategy, log),
		Strategy:     strategy.NewBasic(params.Strategy, log),
		Market:       market.NewAnalyzer(providerClient, log),
		Narrator:     narrator,
		Reports:      report.NewWriter(cfg.OutputDir, log),
		Logger:       log,
	})

	return &app{
		pipeline: p,
		provider: providerClient,
		params:   params,
		config:   cfg,
		logger:   log,
	}, nil
}
