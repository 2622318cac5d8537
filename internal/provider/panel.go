package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/zlin/ashare-quant/internal/contracts"
)

// FetchPanel assembles the full (instrument x date) panel for a target
// date: the market snapshot supplies the instrument list, per-code daily
// history supplies the trailing window, and sina quotes backfill codes
// whose history came back empty. Industries are resolved last, best
// effort.
func (c *Client) FetchPanel(ctx context.Context, date time.Time) (contracts.Panel, error) {
	spot, err := c.FetchSpot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch instrument list: %w", err)
	}
	if len(spot) == 0 {
		return nil, contracts.ErrNoInputData
	}

	panel := make(contracts.Panel, 0, len(spot)*20)
	var missing []string
	spotByCode := make(map[string]SpotQuote, len(spot))

	for i, quote := range spot {
		spotByCode[quote.Code] = quote

		bars, err := c.FetchDailyHistory(ctx, quote.Code, date)
		if err != nil {
			c.logger.WithError(err).WithField("code", quote.Code).Warn("History fetch failed, trying realtime fallback")
			missing = append(missing, quote.Code)
			continue
		}
		if len(bars) == 0 {
			missing = append(missing, quote.Code)
			continue
		}

		panel = append(panel, reconcile(bars, quote)...)

		if (i+1)%500 == 0 {
			c.logger.WithFields(map[string]interface{}{
				"done":  i + 1,
				"total": len(spot),
			}).Debug("History fetch progress")
		}
	}

	// Codes with no history still get their latest bar from sina, so the
	// rule-based path can at least see them.
	if len(missing) > 0 {
		quotes, err := c.FetchSinaQuotes(ctx, missing)
		if err != nil {
			c.logger.WithError(err).Warn("Realtime fallback failed, codes without history are dropped")
		} else {
			for _, code := range missing {
				bar, ok := quotes[code]
				if !ok {
					continue
				}
				panel = append(panel, reconcile([]contracts.PriceBar{bar}, spotByCode[code])...)
			}
		}
	}

	if len(panel) == 0 {
		return nil, contracts.ErrNoInputData
	}

	industries := c.fillIndustries(ctx, panel.Codes())
	for i := range panel {
		if industry, ok := industries[panel[i].Code]; ok && industry != "" {
			panel[i].Industry = industry
		}
	}

	panel.Sort()

	c.logger.WithFields(map[string]interface{}{
		"date":        date.Format("2006-01-02"),
		"instruments": len(industries),
		"rows":        len(panel),
	}).Info("Panel assembled")

	return panel, nil
}

// reconcile merges snapshot fields into a code's history: the name comes
// from the snapshot when history lacks one, and the latest bar borrows
// the snapshot turnover rate when its own is missing.
func reconcile(bars []contracts.PriceBar, quote SpotQuote) []contracts.PriceBar {
	for i := range bars {
		if bars[i].Name == "" {
			bars[i].Name = quote.Name
		}
	}

	last := len(bars) - 1
	if last >= 0 && !bars[last].TurnoverRate.Valid {
		bars[last].TurnoverRate = quote.TurnoverRate
	}
	return bars
}
