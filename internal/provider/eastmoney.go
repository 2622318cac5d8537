package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/zlin/ashare-quant/internal/cache"
	"github.com/zlin/ashare-quant/internal/contracts"
)

// klineFields requests date, open, close, high, low, volume, amount,
// amplitude, pct change, change amount and turnover rate, in that order.
const klineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"

type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// flexNumber tolerates the "-" placeholder eastmoney emits for
// suspended instruments instead of a number.
type flexNumber struct {
	Value float64
	Valid bool
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = flexNumber{}
		return nil
	}
	*f = flexNumber{Value: v, Valid: true}
	return nil
}

type spotResponse struct {
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			Close        flexNumber `json:"f2"`
			PctChange    flexNumber `json:"f3"`
			Volume       flexNumber `json:"f5"`
			Amount       flexNumber `json:"f6"`
			TurnoverRate flexNumber `json:"f8"`
			Code         string     `json:"f12"`
			Name         string     `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// SpotQuote is one row of the full-market snapshot.
type SpotQuote struct {
	Code         string
	Name         string
	Close        float64
	PctChange    float64
	Volume       float64
	Amount       float64
	TurnoverRate contracts.NullFloat
}

// FetchSpot downloads the full-market snapshot page by page. It is the
// source of the instrument list and of latest-day turnover rates.
func (c *Client) FetchSpot(ctx context.Context) ([]SpotQuote, error) {
	quotes := make([]SpotQuote, 0, 4096)
	const pageSize = 2000

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf(
			"%s/api/qt/clist/get?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2&fid=f3&fs=%s&fields=%s",
			c.config.EastmoneyBaseURL, page, pageSize,
			url.QueryEscape("m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"),
			"f2,f3,f5,f6,f8,f12,f14",
		)

		body, err := c.http.GetBody(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch spot page %d: %w", page, err)
		}

		var resp spotResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode spot page %d: %w", page, err)
		}
		if resp.Data == nil || len(resp.Data.Diff) == 0 {
			break
		}

		for _, row := range resp.Data.Diff {
			code := cache.PadCode(row.Code)
			if code == "" {
				continue
			}
			turnover := contracts.Null()
			if row.TurnoverRate.Valid {
				turnover = contracts.Float(row.TurnoverRate.Value)
			}
			quotes = append(quotes, SpotQuote{
				Code:         code,
				Name:         row.Name,
				Close:        row.Close.Value,
				PctChange:    row.PctChange.Value,
				Volume:       row.Volume.Value,
				Amount:       row.Amount.Value,
				TurnoverRate: turnover,
			})
		}

		if len(quotes) >= resp.Data.Total {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"instruments": len(quotes),
	}).Info("Market snapshot fetched")

	return quotes, nil
}

// FetchDailyHistory downloads forward-adjusted daily bars for one code
// in the trailing window before date.
func (c *Client) FetchDailyHistory(ctx context.Context, code string, date time.Time) ([]contracts.PriceBar, error) {
	return c.fetchKlines(ctx, secID(code), code, date, historyWindowDays)
}

// FetchAnalysisHistory downloads the longer daily window behind the
// per-stock deep dive.
func (c *Client) FetchAnalysisHistory(ctx context.Context, code string, date time.Time) ([]contracts.PriceBar, error) {
	return c.fetchKlines(ctx, secID(code), code, date, analysisWindowDays)
}

// FetchIndexHistory downloads daily bars for a market index. Indexes
// need an explicit security id since the exchange cannot be derived
// from the code prefix.
func (c *Client) FetchIndexHistory(ctx context.Context, securityID, code string, date time.Time) ([]contracts.PriceBar, error) {
	return c.fetchKlines(ctx, securityID, code, date, historyWindowDays)
}

func (c *Client) fetchKlines(ctx context.Context, securityID, code string, date time.Time, windowDays int) ([]contracts.PriceBar, error) {
	start := date.AddDate(0, 0, -windowDays)
	endpoint := fmt.Sprintf(
		"%s/api/qt/stock/kline/get?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=1&beg=%s&end=%s",
		c.config.EastmoneyBaseURL, securityID, klineFields,
		start.Format("20060102"), date.Format("20060102"),
	)

	body, err := c.http.GetBody(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", code, err)
	}

	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", code, err)
	}
	if resp.Data == nil {
		return nil, nil
	}

	bars := make([]contracts.PriceBar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		bar, ok := parseKline(code, resp.Data.Name, line)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline decodes one comma-joined kline row:
// date,open,close,high,low,volume,amount,amplitude,pct,chg,turnover.
func parseKline(code, name, line string) (contracts.PriceBar, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 11 {
		return contracts.PriceBar{}, false
	}

	tradeDate, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return contracts.PriceBar{}, false
	}

	return contracts.PriceBar{
		Code:         code,
		Name:         name,
		TradeDate:    tradeDate,
		Open:         parseFloat(fields[1]),
		Close:        parseFloat(fields[2]),
		High:         parseFloat(fields[3]),
		Low:          parseFloat(fields[4]),
		Volume:       parseFloat(fields[5]),
		Amount:       parseFloat(fields[6]),
		PctChange:    parseFloat(fields[8]),
		TurnoverRate: parseNullFloat(fields[10]),
		Industry:     contracts.DefaultIndustry,
	}, true
}
