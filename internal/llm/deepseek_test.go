package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlin/ashare-quant/internal/contracts"
	"github.com/zlin/ashare-quant/internal/market"
	"github.com/zlin/ashare-quant/pkg/config"
	"github.com/zlin/ashare-quant/pkg/logger"
)

func snapshot() market.Snapshot {
	return market.Snapshot{
		Date:      time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Advancers: 2800,
		Decliners: 1900,
		Sentiment: market.SentimentNeutral,
		Indexes: []market.IndexTrend{
			{Name: "SSE Composite", Trend: market.TrendUp, PctChange: 0.8},
		},
		TopSectors:    []market.SectorPerf{{Name: "Banking", AvgPctChange: 1.2, Count: 40}},
		BottomSectors: []market.SectorPerf{{Name: "Coal", AvgPctChange: -2.1, Count: 25}},
	}
}

func TestBuildPrompt(t *testing.T) {
	signals := []contracts.Signal{
		{Code: "600519", Name: "Moutai", Close: 1510, PctChange: -0.33, Industry: "Beverage"},
	}

	prompt := BuildPrompt(snapshot(), signals)

	assert.Contains(t, prompt, "2026-08-28")
	assert.Contains(t, prompt, "2800 advancers, 1900 decliners")
	assert.Contains(t, prompt, "SSE Composite: uptrend, 0.80% today")
	assert.Contains(t, prompt, "Strongest sectors: Banking 1.20%")
	assert.Contains(t, prompt, "Weakest sectors: Coal -2.10%")
	assert.Contains(t, prompt, "600519 Moutai close 1510.00")
}

func TestBuildPrompt_NoSignals(t *testing.T) {
	prompt := BuildPrompt(snapshot(), nil)
	assert.Contains(t, prompt, "No stocks passed today's screen.")
}

func TestBuildPrompt_CapsSignalList(t *testing.T) {
	signals := make([]contracts.Signal, 30)
	for i := range signals {
		signals[i] = contracts.Signal{Code: fmt.Sprintf("60%04d", i)}
	}

	prompt := BuildPrompt(snapshot(), signals)
	assert.Contains(t, prompt, "Top screened stocks (30 total)")
	assert.Contains(t, prompt, "600009")
	assert.NotContains(t, prompt, "600010", "prompt enumerates at most ten picks")
}

func TestNarrative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[1].Role)

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  market looks constructive  "}}]}`)
	}))
	defer server.Close()

	c := NewClient(config.DeepSeekConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Model:    "deepseek-chat",
		Enabled:  true,
	}, logger.NewNop())

	text, err := c.Narrative(context.Background(), snapshot(), nil)
	require.NoError(t, err)
	assert.Equal(t, "market looks constructive", text)
	assert.True(t, c.Enabled())
}

func TestNarrative_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	c := NewClient(config.DeepSeekConfig{APIKey: "x", Endpoint: server.URL, Model: "deepseek-chat"}, logger.NewNop())

	_, err := c.Narrative(context.Background(), snapshot(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNarrative_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	c := NewClient(config.DeepSeekConfig{APIKey: "x", Endpoint: server.URL, Model: "deepseek-chat"}, logger.NewNop())

	_, err := c.Narrative(context.Background(), snapshot(), nil)
	assert.Error(t, err)
}
