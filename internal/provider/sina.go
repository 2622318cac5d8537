package provider

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/zlin/ashare-quant/internal/contracts"
)

// quoteLine matches one `var hq_str_sh600519="...";` row.
var quoteLine = regexp.MustCompile(`var hq_str_(?:sh|sz)(\d{6})="([^"]*)"`)

// FetchSinaQuotes fetches realtime quotes for the given codes from the
// sina hq endpoint. The response is GBK-encoded and is decoded before
// parsing. It serves as the fallback source when a code has no daily
// history; a sina quote carries no turnover rate.
func (c *Client) FetchSinaQuotes(ctx context.Context, codes []string) (map[string]contracts.PriceBar, error) {
	if len(codes) == 0 {
		return map[string]contracts.PriceBar{}, nil
	}

	symbols := make([]string, len(codes))
	for i, code := range codes {
		symbols[i] = sinaSymbol(code)
	}

	endpoint := fmt.Sprintf("%s/list=%s", c.config.SinaBaseURL, strings.Join(symbols, ","))
	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch sina quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("sina quotes: unexpected status %d", resp.StatusCode)
	}

	// Sina serves GBK.
	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode sina response: %w", err)
	}

	quotes := make(map[string]contracts.PriceBar)
	for _, match := range quoteLine.FindAllStringSubmatch(string(body), -1) {
		code, content := match[1], match[2]
		if content == "" {
			continue
		}
		bar, ok := parseSinaQuote(code, content)
		if !ok {
			continue
		}
		quotes[code] = bar
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(codes),
		"returned":  len(quotes),
	}).Debug("Sina quotes fetched")

	return quotes, nil
}

// parseSinaQuote decodes one comma-joined quote row. Field order:
// name, open, prev close, price, high, low, ..., volume(8), amount(9),
// ..., date(30), time(31).
func parseSinaQuote(code, content string) (contracts.PriceBar, bool) {
	fields := strings.Split(content, ",")
	if len(fields) < 32 {
		return contracts.PriceBar{}, false
	}

	tradeDate, err := time.Parse("2006-01-02", fields[30])
	if err != nil {
		return contracts.PriceBar{}, false
	}

	price := parseFloat(fields[3])
	prevClose := parseFloat(fields[2])
	pct := 0.0
	if prevClose != 0 {
		pct = (price/prevClose - 1) * 100
	}

	return contracts.PriceBar{
		Code:         code,
		Name:         fields[0],
		TradeDate:    tradeDate,
		Open:         parseFloat(fields[1]),
		High:         parseFloat(fields[4]),
		Low:          parseFloat(fields[5]),
		Close:        price,
		Volume:       parseFloat(fields[8]),
		Amount:       parseFloat(fields[9]),
		TurnoverRate: contracts.Null(),
		PctChange:    pct,
		Industry:     contracts.DefaultIndustry,
	}, true
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseNullFloat(s string) contracts.NullFloat {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return contracts.Null()
	}
	return contracts.Float(v)
}
