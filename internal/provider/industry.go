package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/zlin/ashare-quant/internal/contracts"
)

// FetchIndustry scrapes the industry label from a stock's quote page
// breadcrumb. The last crumb anchor is the industry board the stock
// belongs to. Returns DefaultIndustry when the page has no breadcrumb.
func (c *Client) FetchIndustry(ctx context.Context, code string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s.html", c.config.IndustryBaseURL, sinaSymbol(code))
	body, err := c.http.GetBody(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("fetch industry page for %s: %w", code, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse industry page for %s: %w", code, err)
	}

	industry := strings.TrimSpace(doc.Find("div.crumbs a").Last().Text())
	if industry == "" {
		return contracts.DefaultIndustry, nil
	}
	return industry, nil
}

// fillIndustries resolves the industry for each code, best effort: a
// failed lookup keeps the sentinel and is logged once per code.
func (c *Client) fillIndustries(ctx context.Context, codes []string) map[string]string {
	industries := make(map[string]string, len(codes))
	failed := 0

	for _, code := range codes {
		industry, err := c.FetchIndustry(ctx, code)
		if err != nil {
			failed++
			industries[code] = contracts.DefaultIndustry
			continue
		}
		industries[code] = industry
	}

	if failed > 0 {
		c.logger.WithFields(map[string]interface{}{
			"failed": failed,
			"total":  len(codes),
		}).Warn("Industry lookups fell back to the default label")
	}

	return industries
}
