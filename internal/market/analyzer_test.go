package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/pkg/logger"
)

var analysisDate = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

// fakeIndexFetcher serves canned index history per security id.
type fakeIndexFetcher struct {
	bars map[string][]contracts.PriceBar
	err  error
}

func (f *fakeIndexFetcher) FetchIndexHistory(_ context.Context, securityID, code string, _ time.Time) ([]contracts.PriceBar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[securityID], nil
}

func indexBars(n int, start, step float64) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, n)
	for i := range bars {
		bars[i] = contracts.PriceBar{
			TradeDate: analysisDate.AddDate(0, 0, i-n+1),
			Close:     start + step*float64(i),
			PctChange: step,
		}
	}
	return bars
}

func marketBar(code, industry string, pct float64) contracts.PriceBar {
	return contracts.PriceBar{
		Code: code, TradeDate: analysisDate,
		Industry: industry, PctChange: pct,
	}
}

func TestAnalyze_IndexTrends(t *testing.T) {
	fetcher := &fakeIndexFetcher{bars: map[string][]contracts.PriceBar{
		"1.000001": indexBars(25, 3000, 5),  // rising, above MA20
		"0.399001": indexBars(25, 12000, -8), // falling, below MA20
		"0.399006": indexBars(5, 2000, 1),   // too short for MA20
	}}

	snap := NewAnalyzer(fetcher, logger.NewNop()).Analyze(context.Background(), analysisDate, nil)

	require.Len(t, snap.Indexes, 3)
	assert.Equal(t, TrendUp, snap.Indexes[0].Trend)
	assert.Equal(t, TrendDown, snap.Indexes[1].Trend)
	assert.Equal(t, TrendUnknown, snap.Indexes[2].Trend)
}

func TestAnalyze_DegradesWhenIndexesFail(t *testing.T) {
	fetcher := &fakeIndexFetcher{err: errors.New("endpoint down")}

	panel := contracts.Panel{marketBar("000001", "Banking", 1.0)}
	snap := NewAnalyzer(fetcher, logger.NewNop()).Analyze(context.Background(), analysisDate, panel)

	assert.Empty(t, snap.Indexes, "failed index fetches leave the section empty")
	assert.Equal(t, 1, snap.Advancers, "breadth still computes from the panel")
}

func TestAnalyze_BreadthAndSentiment(t *testing.T) {
	tests := []struct {
		name string
		up   int
		down int
		want string
	}{
		{name: "bullish at 1.5x advancers", up: 3, down: 2, want: SentimentBullish},
		{name: "bearish at 1.5x decliners", up: 2, down: 3, want: SentimentBearish},
		{name: "neutral in between", up: 4, down: 3, want: SentimentNeutral},
		{name: "neutral when flat", up: 0, down: 0, want: SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var panel contracts.Panel
			for i := 0; i < tt.up; i++ {
				panel = append(panel, marketBar("", "Banking", 1))
			}
			for i := 0; i < tt.down; i++ {
				panel = append(panel, marketBar("", "Banking", -1))
			}

			snap := NewAnalyzer(&fakeIndexFetcher{}, logger.NewNop()).Analyze(context.Background(), analysisDate, panel)
			assert.Equal(t, tt.up, snap.Advancers)
			assert.Equal(t, tt.down, snap.Decliners)
			assert.Equal(t, tt.want, snap.Sentiment)
		})
	}
}

func TestAnalyze_SectorPerformance(t *testing.T) {
	panel := contracts.Panel{
		marketBar("1", "Banking", 2.0),
		marketBar("2", "Banking", 4.0),
		marketBar("3", "Beverage", -1.0),
		marketBar("4", "Steel", 0.5),
		marketBar("5", "Coal", -3.0),
		marketBar("6", contracts.DefaultIndustry, 9.9), // excluded
	}

	snap := NewAnalyzer(&fakeIndexFetcher{}, logger.NewNop()).Analyze(context.Background(), analysisDate, panel)

	require.Len(t, snap.TopSectors, 3)
	assert.Equal(t, "Banking", snap.TopSectors[0].Name)
	assert.InDelta(t, 3.0, snap.TopSectors[0].AvgPctChange, 1e-12)
	assert.Equal(t, 2, snap.TopSectors[0].Count)

	require.Len(t, snap.BottomSectors, 3)
	assert.Equal(t, "Coal", snap.BottomSectors[0].Name, "worst sector first")
	assert.Equal(t, "Beverage", snap.BottomSectors[1].Name)
}

func TestAnalyze_OnlyLatestDateCounts(t *testing.T) {
	stale := marketBar("1", "Banking", -5)
	stale.TradeDate = analysisDate.AddDate(0, 0, -1)

	panel := contracts.Panel{stale, marketBar("2", "Banking", 2)}
	snap := NewAnalyzer(&fakeIndexFetcher{}, logger.NewNop()).Analyze(context.Background(), analysisDate, panel)

	assert.Equal(t, 1, snap.Advancers)
	assert.Zero(t, snap.Decliners, "stale rows are ignored")
}
