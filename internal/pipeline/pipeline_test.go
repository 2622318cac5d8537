package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/cache"
	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/factors"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/internal/report"
	"github.com/zlin/ashare-quant/internal/scoring"
	"github.com/zlin/ashare-quant/internal/selection"
	"github.com/zlin/ashare-quant/internal/strategy"
	"github.com/zlin/ashare-quant/internal/strategyconfig"
	"github.com/zlin/ashare-quant/pkg/logger"
)

var runDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

type fakeSource struct {
	panel     contracts.Panel
	funds     []contracts.Fundamental
	calls     int
	fundCalls int
	boom      bool
}

func (f *fakeSource) FetchPanel(context.Context, time.Time) (contracts.Panel, error) {
	if f.boom {
		panic("provider exploded")
	}
	f.calls++
	return f.panel, nil
}

func (f *fakeSource) FetchFundamentals(context.Context) ([]contracts.Fundamental, error) {
	f.fundCalls++
	return f.funds, nil
}

type fakeIndexFetcher struct{}

func (fakeIndexFetcher) FetchIndexHistory(context.Context, string, string, time.Time) ([]contracts.PriceBar, error) {
	return nil, nil
}

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Enabled() bool { return true }

func (f *fakeNarrator) Narrative(context.Context, market.Snapshot, []contracts.Signal) (string, error) {
	return f.text, f.err
}

// history builds 40 daily bars ending on runDate. pct is applied as a
// compounding daily move.
func history(code, industry string, start, pct, turnover, volume float64) contracts.Panel {
	var panel contracts.Panel
	price := start
	for d := 0; d < 40; d++ {
		move := pct
		price *= 1 + move/100
		panel = append(panel, contracts.PriceBar{
			Code:         code,
			Name:         code,
			TradeDate:    runDate.AddDate(0, 0, d-39),
			Open:         price,
			High:         price * 1.01,
			Low:          price * 0.99,
			Close:        price,
			Volume:       volume,
			Amount:       2e8,
			TurnoverRate: contracts.Float(turnover),
			PctChange:    move,
			Industry:     industry,
		})
	}
	return panel
}

// choppy builds a high-volatility series alternating +8/-8.
func choppy(code string) contracts.Panel {
	var panel contracts.Panel
	price := 30.0
	for d := 0; d < 40; d++ {
		move := 8.0
		if d%2 == 1 {
			move = -8.0
		}
		price *= 1 + move/100
		panel = append(panel, contracts.PriceBar{
			Code:         code,
			Name:         code,
			TradeDate:    runDate.AddDate(0, 0, d-39),
			Close:        price,
			Open:         price,
			High:         price,
			Low:          price,
			Volume:       2_000_000,
			Amount:       2e8,
			TurnoverRate: contracts.Float(1.5),
			PctChange:    move,
			Industry:     "Steel",
		})
	}
	return panel
}

func testPanel() contracts.Panel {
	var panel contracts.Panel
	panel = append(panel, history("600100", "Banking", 10, 1.0, 2.0, 10_000_000)...) // steady winner
	panel = append(panel, history("600200", "Beverage", 15, 0.5, 0.1, 8_000_000)...) // turnover floor victim
	panel = append(panel, choppy("600300")...)                                       // volatility penalty
	return panel
}

func newPipeline(t *testing.T, source *fakeSource, store PanelStore, narrator Narrator) *Pipeline {
	t.Helper()
	log := logger.NewNop()
	cfg := strategyconfig.Default()

	return New(Deps{
		Source:       source,
		Fundamentals: source,
		Store:        store,
		Factors:      factors.NewBuilder(log),
		Scorer:       scoring.NewScorer(cfg.Weights, log),
		Screener:     selection.NewScreener(cfg.Selection, cfg.Strategy, log),
		Strategy:     strategy.NewBasic(cfg.Strategy, log),
		Market:       market.NewAnalyzer(fakeIndexFetcher{}, log),
		Narrator:     narrator,
		Reports:      report.NewWriter(t.TempDir(), log),
		Logger:       log,
	})
}

func TestRun_EndToEnd(t *testing.T) {
	source := &fakeSource{panel: testPanel()}
	p := newPipeline(t, source, nil, &fakeNarrator{text: "calm tape"})

	result, err := p.Run(context.Background(), RunConfig{Date: runDate})
	require.NoError(t, err)

	// Three instruments cannot fill the strict minimum, so the run
	// relaxes. The turnover-floored stock stays out even then.
	assert.Equal(t, contracts.TierRelaxed, result.Selection.Tier)
	codes := make([]string, 0, len(result.RankedSignals))
	for _, sig := range result.RankedSignals {
		codes = append(codes, sig.Code)
	}
	require.NotEmpty(t, codes)
	assert.Equal(t, "600100", codes[0], "the steady winner ranks first")
	assert.NotContains(t, codes, "600200")

	assert.Equal(t, "calm tape", result.Narrative)
	assert.Equal(t, runDate, result.Date)

	for _, path := range []string{result.SignalsPath, result.ReportPath} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "run output exists on disk")
	}
}

func TestRun_VolatilityRanksBelowMomentum(t *testing.T) {
	source := &fakeSource{panel: testPanel()}
	p := newPipeline(t, source, nil, nil)

	result, err := p.Run(context.Background(), RunConfig{Date: runDate})
	require.NoError(t, err)

	rank := map[string]int{}
	for _, sig := range result.RankedSignals {
		rank[sig.Code] = sig.Rank
	}
	if r1, ok := rank["600100"]; ok {
		if r3, ok := rank["600300"]; ok {
			assert.Less(t, r1, r3, "choppy stock pays the volatility penalty")
		}
	}
}

func TestRun_CacheShortCircuitsSecondRun(t *testing.T) {
	source := &fakeSource{panel: testPanel()}
	store := cache.NewStore(t.TempDir(), logger.NewNop())
	p := newPipeline(t, source, store, nil)

	_, err := p.Run(context.Background(), RunConfig{Date: runDate, UseCache: true})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), RunConfig{Date: runDate, UseCache: true})
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls, "second run is served from the snapshot cache")
}

func TestRun_FundamentalsGateExcludesExpensiveStock(t *testing.T) {
	source := &fakeSource{
		panel: testPanel(),
		funds: []contracts.Fundamental{
			{Code: "600100", PE: contracts.Float(500), MarketCap: contracts.Float(8e9)},
			{Code: "600200", PE: contracts.Float(20), MarketCap: contracts.Float(8e9)},
			{Code: "600300", PE: contracts.Float(20), MarketCap: contracts.Float(8e9)},
		},
	}
	p := newPipeline(t, source, nil, nil)

	result, err := p.Run(context.Background(), RunConfig{Date: runDate})
	require.NoError(t, err)

	codes := make([]string, 0, len(result.RankedSignals))
	for _, sig := range result.RankedSignals {
		codes = append(codes, sig.Code)
	}
	assert.NotContains(t, codes, "600100", "the PE ceiling outranks momentum")
	assert.Contains(t, codes, "600300")
}

func TestRun_FundamentalsCacheShortCircuitsSecondRun(t *testing.T) {
	source := &fakeSource{
		panel: testPanel(),
		funds: []contracts.Fundamental{{Code: "600100", PE: contracts.Float(20)}},
	}
	store := cache.NewStore(t.TempDir(), logger.NewNop())
	p := newPipeline(t, source, store, nil)

	_, err := p.Run(context.Background(), RunConfig{Date: runDate, UseCache: true})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), RunConfig{Date: runDate, UseCache: true})
	require.NoError(t, err)

	assert.Equal(t, 1, source.fundCalls, "the second run reads fundamental_data_<date>.csv")
}

func TestRun_EmptyPanel(t *testing.T) {
	p := newPipeline(t, &fakeSource{}, nil, nil)

	_, err := p.Run(context.Background(), RunConfig{Date: runDate})
	assert.ErrorIs(t, err, contracts.ErrNoInputData)
}

func TestRun_PanicBecomesSingleFailure(t *testing.T) {
	p := newPipeline(t, &fakeSource{boom: true}, nil, nil)

	result, err := p.Run(context.Background(), RunConfig{Date: runDate})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRun_NarrativeFailureDegrades(t *testing.T) {
	source := &fakeSource{panel: testPanel()}
	p := newPipeline(t, source, nil, &fakeNarrator{err: assert.AnError})

	result, err := p.Run(context.Background(), RunConfig{Date: runDate})
	require.NoError(t, err)
	assert.Empty(t, result.Narrative, "a failed narrative never fails the run")
	_, statErr := os.Stat(result.ReportPath)
	assert.NoError(t, statErr)
}
