// Package pipeline coordinates one screening run end to end: panel
// acquisition, factor construction, scoring, selection, rule signals,
// market context and report output.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/factors"
	"github.com/zlin/ashare-quant/internal/fundamentals"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/internal/report"
	"github.com/zlin/ashare-quant/internal/scoring"
	"github.com/zlin/ashare-quant/internal/selection"
	"github.com/zlin/ashare-quant/internal/strategy"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// PanelSource fetches the day's panel from the providers.
type PanelSource interface {
	FetchPanel(ctx context.Context, date time.Time) (contracts.Panel, error)
}

// FundamentalSource fetches the day's valuation snapshot.
type FundamentalSource interface {
	FetchFundamentals(ctx context.Context) ([]contracts.Fundamental, error)
}

// PanelStore caches fetched panels and valuation snapshots between runs.
type PanelStore interface {
	Has(date time.Time) bool
	Load(date time.Time) (contracts.Panel, error)
	Save(date time.Time, panel contracts.Panel) error
	HasFundamentals(date time.Time) bool
	LoadFundamentals(date time.Time) ([]contracts.Fundamental, error)
	SaveFundamentals(date time.Time, funds []contracts.Fundamental) error
}

// ContextAnalyzer builds the market snapshot for the report.
type ContextAnalyzer interface {
	Analyze(ctx context.Context, date time.Time, panel contracts.Panel) market.Snapshot
}

// Narrator generates the optional narrative commentary.
type Narrator interface {
	Enabled() bool
	Narrative(ctx context.Context, snap market.Snapshot, signals []contracts.Signal) (string, error)
}

// Deps wires the pipeline's collaborators. Narrator and Fundamentals
// may be nil.
type Deps struct {
	Source       PanelSource
	Fundamentals FundamentalSource
	Store        PanelStore
	Factors      *factors.Builder
	Scorer       *scoring.Scorer
	Screener     *selection.Screener
	Strategy     *strategy.Basic
	Market       ContextAnalyzer
	Narrator     Narrator
	Reports      *report.Writer
	Logger       *logger.Logger
}

// RunConfig parameterizes one run.
type RunConfig struct {
	Date     time.Time
	UseCache bool
}

// Result is everything one successful run produced.
type Result struct {
	Date          time.Time
	Selection     contracts.SelectionResult
	RankedSignals []contracts.Signal
	ActionSignals []contracts.Signal
	Snapshot      market.Snapshot
	Narrative     string
	SignalsPath   string
	ReportPath    string
	Duration      time.Duration
}

// Pipeline runs the daily screen.
type Pipeline struct {
	deps   Deps
	logger *logger.Logger
}

// New creates a pipeline from its collaborators.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, logger: deps.Logger}
}

// Run executes one screening run. A panic anywhere inside becomes a
// single failed run; no partial output is written after a failure.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (result *Result, err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pipeline run panicked: %v", r)
			p.logger.WithField("panic", r).Error("Run aborted")
		}
	}()

	p.logger.WithFields(map[string]interface{}{
		"date":      cfg.Date.Format("2006-01-02"),
		"use_cache": cfg.UseCache,
	}).Info("Run started")

	panel, err := p.loadPanel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(panel) == 0 {
		return nil, contracts.ErrNoInputData
	}

	// Factor path: rolling factors, latest cross-section, valuation
	// merge, composite score, tiered selection.
	frame := p.deps.Factors.Build(panel)
	latest := factors.LatestSlice(frame)
	latest = fundamentals.Merge(latest, p.loadFundamentals(ctx, cfg), p.logger)
	scored := p.deps.Scorer.Score(latest)
	sel := p.deps.Screener.Select(panel.LatestDate(), scored)
	ranked := selection.Signals(sel)

	// Rule path: indicator checks on each instrument's latest bar.
	evals := p.deps.Strategy.Evaluate(panel)
	actions := p.deps.Strategy.Signals(evals)

	// Market context and narrative are best effort.
	snap := p.deps.Market.Analyze(ctx, sel.Date, panel)

	narrative := ""
	if p.deps.Narrator != nil && p.deps.Narrator.Enabled() {
		narrative, err = p.deps.Narrator.Narrative(ctx, snap, ranked)
		if err != nil {
			p.logger.WithError(err).Warn("Narrative unavailable, falling back to plain report")
			narrative = ""
		}
	}

	all := make([]contracts.Signal, 0, len(ranked)+len(actions))
	all = append(all, ranked...)
	all = append(all, actions...)

	signalsPath, err := p.deps.Reports.WriteSignalsCSV(sel.Date, all)
	if err != nil {
		return nil, fmt.Errorf("write signal export: %w", err)
	}

	reportPath, err := p.deps.Reports.WriteReport(report.Report{
		Date:      sel.Date,
		Tier:      sel.Tier,
		Snapshot:  snap,
		Signals:   all,
		Narrative: narrative,
	})
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	result = &Result{
		Date:          sel.Date,
		Selection:     sel,
		RankedSignals: ranked,
		ActionSignals: actions,
		Snapshot:      snap,
		Narrative:     narrative,
		SignalsPath:   signalsPath,
		ReportPath:    reportPath,
		Duration:      time.Since(started),
	}

	p.logger.WithFields(map[string]interface{}{
		"selected": len(ranked),
		"actions":  len(actions),
		"tier":     sel.Tier.String(),
		"duration": result.Duration.String(),
	}).Info("Run completed")

	return result, nil
}

// loadPanel serves the panel from the snapshot cache when allowed, and
// refreshes the cache after a provider fetch. A failed cache write is
// logged, not fatal.
func (p *Pipeline) loadPanel(ctx context.Context, cfg RunConfig) (contracts.Panel, error) {
	if cfg.UseCache && p.deps.Store != nil && p.deps.Store.Has(cfg.Date) {
		panel, err := p.deps.Store.Load(cfg.Date)
		if err == nil {
			p.logger.WithField("rows", len(panel)).Info("Panel served from cache")
			return panel, nil
		}
		p.logger.WithError(err).Warn("Cache read failed, refetching")
	}

	panel, err := p.deps.Source.FetchPanel(ctx, cfg.Date)
	if err != nil {
		return nil, fmt.Errorf("fetch panel: %w", err)
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.Save(cfg.Date, panel); err != nil {
			p.logger.WithError(err).Warn("Cache write failed")
		}
	}

	return panel, nil
}

// loadFundamentals serves the valuation snapshot from the cache when
// allowed, falling back to the provider. Fundamentals are best effort: a
// failed fetch returns nil and the valuation gates stand down for the
// run.
func (p *Pipeline) loadFundamentals(ctx context.Context, cfg RunConfig) []contracts.Fundamental {
	if cfg.UseCache && p.deps.Store != nil && p.deps.Store.HasFundamentals(cfg.Date) {
		funds, err := p.deps.Store.LoadFundamentals(cfg.Date)
		if err == nil {
			p.logger.WithField("rows", len(funds)).Info("Fundamentals served from cache")
			return funds
		}
		p.logger.WithError(err).Warn("Fundamentals cache read failed, refetching")
	}

	if p.deps.Fundamentals == nil {
		return nil
	}
	funds, err := p.deps.Fundamentals.FetchFundamentals(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Fundamentals unavailable, valuation gates skipped")
		return nil
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.SaveFundamentals(cfg.Date, funds); err != nil {
			p.logger.WithError(err).Warn("Fundamentals cache write failed")
		}
	}

	return funds
}
