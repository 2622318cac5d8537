package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/zlin/ashare-quant/internal/cache"
	"github.com/zlin/ashare-quant/internal/contracts"
)

type fundamentalResponse struct {
	Data *struct {
		Total int `json:"total"`
		Diff  []struct {
			PE        flexNumber `json:"f9"` // dynamic PE
			Code      string     `json:"f12"`
			MarketCap flexNumber `json:"f20"` // total market cap
		} `json:"diff"`
	} `json:"data"`
}

// FetchFundamentals downloads the full-market valuation snapshot page by
// page: dynamic PE and total market cap per code. Suspended instruments
// report "-" for either cell and come back as missing; the growth proxy
// is resolved later from price history.
func (c *Client) FetchFundamentals(ctx context.Context) ([]contracts.Fundamental, error) {
	funds := make([]contracts.Fundamental, 0, 4096)
	const pageSize = 2000

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf(
			"%s/api/qt/clist/get?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2&fid=f3&fs=%s&fields=%s",
			c.config.EastmoneyBaseURL, page, pageSize,
			url.QueryEscape("m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"),
			"f9,f12,f20",
		)

		body, err := c.http.GetBody(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("fetch fundamentals page %d: %w", page, err)
		}

		var resp fundamentalResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode fundamentals page %d: %w", page, err)
		}
		if resp.Data == nil || len(resp.Data.Diff) == 0 {
			break
		}

		for _, row := range resp.Data.Diff {
			code := cache.PadCode(row.Code)
			if code == "" {
				continue
			}
			fund := contracts.Fundamental{Code: code}
			if row.PE.Valid {
				fund.PE = contracts.Float(row.PE.Value)
			}
			if row.MarketCap.Valid {
				fund.MarketCap = contracts.Float(row.MarketCap.Value)
			}
			funds = append(funds, fund)
		}

		if len(funds) >= resp.Data.Total {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"instruments": len(funds),
	}).Info("Fundamentals snapshot fetched")

	return funds, nil
}
