// Package provider fetches the A-share panel from public market-data
// endpoints and reconciles their column vocabularies into PriceBar.
package provider

import (
	"strings"

	"github.com/zlin/ashare-quant/pkg/config"
	"github.com/zlin/ashare-quant/pkg/httputil"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// historyWindowDays is how far back the daily-history fetch reaches
// before the target date. 45 calendar days leaves roughly 30 trading
// days, enough for every 20-period rolling factor.
const historyWindowDays = 45

// analysisWindowDays is the longer window behind the per-stock deep
// dive, roughly 180 trading days.
const analysisWindowDays = 270

// Client talks to the eastmoney and sina endpoints.
type Client struct {
	http   *httputil.Client
	config config.ProviderConfig
	logger *logger.Logger
}

// NewClient creates a provider client with the shared retry and
// rate-limit policy.
func NewClient(cfg config.ProviderConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(log).
		WithRateLimit(cfg.RequestsPerSec).
		WithHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		WithHeader("Referer", "https://finance.sina.com.cn/")

	return &Client{
		http:   httpClient,
		config: cfg,
		logger: log,
	}
}

// secID builds the eastmoney security id. Shanghai-listed codes start
// with 6, everything else trades in Shenzhen.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// sinaSymbol builds the sina quote symbol (sh600519, sz000001).
func sinaSymbol(code string) string {
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}
