// Package llm turns the market snapshot and the day's picks into a
// narrative paragraph via the DeepSeek chat-completion API. The whole
// package is optional: callers fall back to the plain report on error.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/pkg/config"
	"github.com/zlin/ashare-quant/pkg/httputil"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// promptSignalLimit caps how many picks the prompt enumerates.
const promptSignalLimit = 10

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls the DeepSeek chat-completion endpoint.
type Client struct {
	http   *httputil.Client
	config config.DeepSeekConfig
	logger *logger.Logger
}

// NewClient creates a DeepSeek client.
func NewClient(cfg config.DeepSeekConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(log).
		WithHeader("Authorization", "Bearer "+cfg.APIKey)

	return &Client{
		http:   httpClient,
		config: cfg,
		logger: log,
	}
}

// Enabled reports whether narrative generation is configured.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

// Narrative asks the model for a short market commentary grounded in
// the snapshot and the selected stocks.
func (c *Client) Narrative(ctx context.Context, snap market.Snapshot, signals []contracts.Signal) (string, error) {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an A-share market analyst. Answer in concise Chinese."},
			{Role: "user", Content: BuildPrompt(snap, signals)},
		},
		Temperature: 0.7,
	}

	resp, err := c.http.PostJSON(ctx, c.config.Endpoint, req)
	if err != nil {
		return "", fmt.Errorf("deepseek request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read deepseek response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("deepseek status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode deepseek response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("deepseek error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.logger.WithField("chars", len(content)).Info("Narrative generated")
	return content, nil
}

// BuildPrompt renders the analysis request. Sections the snapshot could
// not compute are simply absent from the prompt.
func BuildPrompt(snap market.Snapshot, signals []contracts.Signal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trading date: %s\n", snap.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Market breadth: %d advancers, %d decliners (%s)\n",
		snap.Advancers, snap.Decliners, snap.Sentiment)

	for _, idx := range snap.Indexes {
		fmt.Fprintf(&b, "Index %s: %s, %.2f%% today\n", idx.Name, idx.Trend, idx.PctChange)
	}

	if len(snap.TopSectors) > 0 {
		b.WriteString("Strongest sectors:")
		for _, s := range snap.TopSectors {
			fmt.Fprintf(&b, " %s %.2f%%", s.Name, s.AvgPctChange)
		}
		b.WriteString("\n")
	}
	if len(snap.BottomSectors) > 0 {
		b.WriteString("Weakest sectors:")
		for _, s := range snap.BottomSectors {
			fmt.Fprintf(&b, " %s %.2f%%", s.Name, s.AvgPctChange)
		}
		b.WriteString("\n")
	}

	if len(signals) == 0 {
		b.WriteString("No stocks passed today's screen.\n")
	} else {
		fmt.Fprintf(&b, "Top screened stocks (%d total):\n", len(signals))
		for i, sig := range signals {
			if i == promptSignalLimit {
				break
			}
			fmt.Fprintf(&b, "- %s %s close %.2f, %+.2f%%, %s\n",
				sig.Code, sig.Name, sig.Close, sig.PctChange, sig.Industry)
		}
	}

	b.WriteString("\nWrite a short commentary on today's market and whether the screened stocks fit the current environment.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
