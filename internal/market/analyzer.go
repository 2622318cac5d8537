// Package market builds the daily market-context snapshot that frames
// the stock selection: index trends, breadth and sector performance.
package market

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/indicator"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Sentiment labels derived from market breadth.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Trend labels for an index relative to its 20-day average.
const (
	TrendUp      = "uptrend"
	TrendDown    = "downtrend"
	TrendUnknown = "unknown"
)

// sectorLimit caps each of the top/bottom sector lists.
const sectorLimit = 3

// watchedIndexes are the benchmark indexes summarized in every report.
var watchedIndexes = []struct {
	SecurityID string
	Code       string
	Name       string
}{
	{SecurityID: "1.000001", Code: "000001", Name: "SSE Composite"},
	{SecurityID: "0.399001", Code: "399001", Name: "SZSE Component"},
	{SecurityID: "0.399006", Code: "399006", Name: "ChiNext"},
}

// IndexTrend is one benchmark index's position versus its 20-day average.
type IndexTrend struct {
	Name      string  `json:"name"`
	Trend     string  `json:"trend"`
	PctChange float64 `json:"pct_change"`
}

// SectorPerf is one industry's average daily move across its members.
type SectorPerf struct {
	Name         string  `json:"name"`
	AvgPctChange float64 `json:"avg_pct_change"`
	Count        int     `json:"count"`
}

// Snapshot is the market context for one trading date. Sections that
// could not be computed stay empty; a report renders around them.
type Snapshot struct {
	Date          time.Time    `json:"date"`
	Indexes       []IndexTrend `json:"indexes"`
	Advancers     int          `json:"advancers"`
	Decliners     int          `json:"decliners"`
	Sentiment     string       `json:"sentiment"`
	TopSectors    []SectorPerf `json:"top_sectors"`
	BottomSectors []SectorPerf `json:"bottom_sectors"`
}

// IndexFetcher supplies daily index history.
type IndexFetcher interface {
	FetchIndexHistory(ctx context.Context, securityID, code string, date time.Time) ([]contracts.PriceBar, error)
}

// Analyzer computes the snapshot from index history and the day's panel.
type Analyzer struct {
	fetcher IndexFetcher
	logger  *logger.Logger
}

// NewAnalyzer creates a market analyzer.
func NewAnalyzer(fetcher IndexFetcher, log *logger.Logger) *Analyzer {
	return &Analyzer{fetcher: fetcher, logger: log}
}

// Analyze builds the snapshot. Every section degrades independently: a
// failed index fetch leaves that index out, an empty panel leaves the
// breadth and sector sections empty. Analyze never fails the run.
func (a *Analyzer) Analyze(ctx context.Context, date time.Time, panel contracts.Panel) Snapshot {
	snap := Snapshot{Date: date, Sentiment: SentimentNeutral}
	snap.Indexes = a.IndexTrends(ctx, date)

	latest := latestBars(panel)
	snap.Advancers, snap.Decliners = breadth(latest)
	snap.Sentiment = sentiment(snap.Advancers, snap.Decliners)
	snap.TopSectors, snap.BottomSectors = sectorPerformance(latest)

	a.logger.WithFields(map[string]interface{}{
		"indexes":   len(snap.Indexes),
		"sentiment": snap.Sentiment,
		"sectors":   len(snap.TopSectors) + len(snap.BottomSectors),
	}).Info("Market snapshot built")

	return snap
}

// IndexTrends fetches the watched benchmark indexes and labels each one
// against its 20-day average. A failed fetch leaves that index out.
func (a *Analyzer) IndexTrends(ctx context.Context, date time.Time) []IndexTrend {
	var trends []IndexTrend
	for _, idx := range watchedIndexes {
		bars, err := a.fetcher.FetchIndexHistory(ctx, idx.SecurityID, idx.Code, date)
		if err != nil {
			a.logger.WithError(err).WithField("index", idx.Name).Warn("Index history unavailable, section skipped")
			continue
		}
		if len(bars) == 0 {
			continue
		}
		trends = append(trends, indexTrend(idx.Name, bars))
	}
	return trends
}

// indexTrend compares the latest close to the 20-day average.
func indexTrend(name string, bars []contracts.PriceBar) IndexTrend {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	latest := bars[len(bars)-1]
	trend := TrendUnknown

	ma20 := indicator.SMA(closes, 20)
	last := ma20[len(ma20)-1]
	if !math.IsNaN(last) {
		if latest.Close >= last {
			trend = TrendUp
		} else {
			trend = TrendDown
		}
	}

	return IndexTrend{Name: name, Trend: trend, PctChange: latest.PctChange}
}

// latestBars returns the panel rows on its most recent trade date.
func latestBars(panel contracts.Panel) []contracts.PriceBar {
	if len(panel) == 0 {
		return nil
	}
	latest := panel.LatestDate()
	bars := make([]contracts.PriceBar, 0, 256)
	for _, bar := range panel {
		if bar.TradeDate.Equal(latest) {
			bars = append(bars, bar)
		}
	}
	return bars
}

func breadth(bars []contracts.PriceBar) (advancers, decliners int) {
	for _, bar := range bars {
		switch {
		case bar.PctChange > 0:
			advancers++
		case bar.PctChange < 0:
			decliners++
		}
	}
	return advancers, decliners
}

// sentiment labels the day from the advance/decline ratio. 1.5x either
// way counts as a directional day.
func sentiment(advancers, decliners int) string {
	switch {
	case decliners == 0 && advancers == 0:
		return SentimentNeutral
	case float64(advancers) >= 1.5*float64(decliners):
		return SentimentBullish
	case float64(decliners) >= 1.5*float64(advancers):
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}

// sectorPerformance averages pct change per industry and returns the
// best and worst few. The unknown-industry bucket is excluded.
func sectorPerformance(bars []contracts.PriceBar) (top, bottom []SectorPerf) {
	sums := make(map[string]*SectorPerf)
	for _, bar := range bars {
		if bar.Industry == "" || bar.Industry == contracts.DefaultIndustry {
			continue
		}
		perf, ok := sums[bar.Industry]
		if !ok {
			perf = &SectorPerf{Name: bar.Industry}
			sums[bar.Industry] = perf
		}
		perf.AvgPctChange += bar.PctChange
		perf.Count++
	}

	sectors := make([]SectorPerf, 0, len(sums))
	for _, perf := range sums {
		perf.AvgPctChange /= float64(perf.Count)
		sectors = append(sectors, *perf)
	}

	sort.Slice(sectors, func(i, j int) bool {
		if sectors[i].AvgPctChange != sectors[j].AvgPctChange {
			return sectors[i].AvgPctChange > sectors[j].AvgPctChange
		}
		return sectors[i].Name < sectors[j].Name
	})

	n := len(sectors)
	if n == 0 {
		return nil, nil
	}

	topN := sectorLimit
	if topN > n {
		topN = n
	}
	top = append(top, sectors[:topN]...)

	bottomN := sectorLimit
	if bottomN > n {
		bottomN = n
	}
	bottom = append(bottom, sectors[n-bottomN:]...)
	// Worst first.
	for i, j := 0, len(bottom)-1; i < j; i, j = i+1, j-1 {
		bottom[i], bottom[j] = bottom[j], bottom[i]
	}

	return top, bottom
}
