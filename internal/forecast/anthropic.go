// Package forecast provides probability forecasters backed by LLM providers.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/valuebot/internal/domain"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	maxTokens        = 1024
	toolName         = "estimate_probability"
)

const systemPrompt = `You are a sports analyst estimating probabilities for prediction market outcomes. You will be given live game events and a market question. Analyze the game state and provide your best probability estimate.

Be calibrated: use base rates, current score, time remaining, and momentum. Do not be overconfident. If you lack information to make a strong estimate, set confidence to "low".

Always use the estimate_probability tool to provide your response.`

// estimateTool is the forced tool definition. Constraining the reply to a tool
// call keeps the output machine-parseable.
var estimateTool = map[string]any{
	"name":        toolName,
	"description": "Provide a probability estimate for this market outcome based on the game events so far.",
	"input_schema": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"yesProbability": map[string]any{
				"type":        "number",
				"description": "Probability that the YES outcome occurs, between 0 and 1",
			},
			"confidence": map[string]any{
				"type":        "string",
				"enum":        []string{"low", "medium", "high"},
				"description": "Your confidence in this estimate",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief explanation of your reasoning",
			},
		},
		"required": []string{"yesProbability", "confidence", "reasoning"},
	},
}

// AnthropicForecaster implements domain.Forecaster using the Anthropic
// Messages API with a forced tool call.
type AnthropicForecaster struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewAnthropicForecaster creates a forecaster for the given model.
func NewAnthropicForecaster(apiKey, model string, temperature float64, logger *slog.Logger) *AnthropicForecaster {
	return &AnthropicForecaster{
		baseURL:     anthropicBaseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.With(slog.String("component", "forecast")),
	}
}

// messagesRequest is the Messages API payload.
type messagesRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      string           `json:"system"`
	Tools       []map[string]any `json:"tools"`
	ToolChoice  map[string]any   `json:"tool_choice"`
	Messages    []chatMessage    `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the subset of the Messages API reply we consume.
type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// EstimateProbability asks the model for P(yes) on one market given the
// accumulated game events. The returned probability is clamped to [0,1].
func (f *AnthropicForecaster) EstimateProbability(ctx context.Context, sport domain.Sport, gameID string, events []domain.GameEvent, market domain.MarketSnapshot) (domain.ProbabilityEstimate, error) {
	f.logger.InfoContext(ctx, "estimating probability",
		slog.String("ticker", market.Ticker),
		slog.String("title", market.Title),
		slog.Int("events", len(events)),
	)

	req := messagesRequest{
		Model:       f.model,
		MaxTokens:   maxTokens,
		Temperature: f.temperature,
		System:      systemPrompt,
		Tools:       []map[string]any{estimateTool},
		ToolChoice:  map[string]any{"type": "tool", "name": toolName},
		Messages: []chatMessage{
			{Role: "user", Content: buildUserMessage(sport, gameID, events, market)},
		},
	}

	body, err := f.doRequest(ctx, req)
	if err != nil {
		return domain.ProbabilityEstimate{}, err
	}

	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ProbabilityEstimate{}, fmt.Errorf("forecast: decode response: %w", err)
	}

	var estimate domain.ProbabilityEstimate
	found := false
	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != toolName {
			continue
		}
		if err := json.Unmarshal(block.Input, &estimate); err != nil {
			return domain.ProbabilityEstimate{}, fmt.Errorf("forecast: decode tool input: %w", err)
		}
		found = true
		break
	}
	if !found {
		return domain.ProbabilityEstimate{}, fmt.Errorf("forecast: %s: %w", market.Ticker, domain.ErrNoEstimate)
	}

	estimate.YesProbability = clamp01(estimate.YesProbability)

	f.logger.InfoContext(ctx, "probability estimated",
		slog.String("ticker", market.Ticker),
		slog.Float64("yes_probability", estimate.YesProbability),
		slog.String("confidence", string(estimate.Confidence)),
	)

	return estimate, nil
}

// buildUserMessage lays out the game history and the market question.
func buildUserMessage(sport domain.Sport, gameID string, events []domain.GameEvent, market domain.MarketSnapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Sport: %s\n", sport)
	fmt.Fprintf(&sb, "Game ID: %s\n", gameID)
	fmt.Fprintf(&sb, "Total events so far: %d\n\n", len(events))

	sb.WriteString("Game events:\n")
	for i, ev := range events {
		payload := string(ev.Raw)
		if payload == "" {
			b, _ := json.Marshal(ev)
			payload = string(b)
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, payload)
	}

	fmt.Fprintf(&sb, "\nMarket: %s\n", market.Title)
	fmt.Fprintf(&sb, "YES: %s\n", market.YesSubTitle)
	fmt.Fprintf(&sb, "NO: %s\n", market.NoSubTitle)
	fmt.Fprintf(&sb, "Ticker: %s\n\n", market.Ticker)
	sb.WriteString("Based on these game events, what is the probability that YES occurs?")

	return sb.String()
}

func (f *AnthropicForecaster) doRequest(ctx context.Context, payload messagesRequest) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("forecast: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("forecast: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", f.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("forecast: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("forecast: HTTP %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("forecast: HTTP %d: %s", resp.StatusCode, body)
	}

	return body, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Compile-time interface check.
var _ domain.Forecaster = (*AnthropicForecaster)(nil)
