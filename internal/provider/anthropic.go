package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atomizehq/atomizer/internal/platform/logger"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// Anthropic talks to the Claude messages API. Claude has no embeddings
// endpoint, so EmbedText and EmbedTexts fail with a typed error.
type Anthropic struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

type AnthropicOptions struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func NewAnthropic(log *logger.Logger, apiKey string, model string, opts AnthropicOptions) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Anthropic api key")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Anthropic{
		log:        log.With("service", "AnthropicProvider"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}, nil
}

func (a *Anthropic) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "claude", Model: a.model}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := anthropicRequest{
		Model:       a.model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	return a.message(ctx, "complete", body)
}

func (a *Anthropic) AnalyzeImage(ctx context.Context, imageBase64 string, prompt string, system string) (string, error) {
	content := []map[string]any{
		{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": "image/png",
				"data":       imageBase64,
			},
		},
		{"type": "text", "text": prompt},
	}
	body := anthropicRequest{
		Model:     a.model,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: content}},
		MaxTokens: 4096,
	}
	return a.message(ctx, "analyze_image", body)
}

func (a *Anthropic) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, &Error{Provider: "claude", Op: "embed", Message: "embeddings not supported"}
}

func (a *Anthropic) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, &Error{Provider: "claude", Op: "embed", Message: "embeddings not supported"}
}

func (a *Anthropic) message(ctx context.Context, op string, body anthropicRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Provider: "claude", Op: op, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", &Error{Provider: "claude", Op: op, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
		if err != nil {
			return "", &Error{Provider: "claude", Op: op, Err: err}
		}
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = &Error{Provider: "claude", Op: op, Err: err}
			continue
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &Error{Provider: "claude", Op: op, Err: err}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &Error{Provider: "claude", Op: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
			a.log.Warn("anthropic request retryable failure", "op", op, "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", &Error{Provider: "claude", Op: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", &Error{Provider: "claude", Op: op, Err: err}
		}
		var out strings.Builder
		for _, block := range parsed.Content {
			if block.Type == "text" {
				out.WriteString(block.Text)
			}
		}
		if out.Len() == 0 {
			return "", &Error{Provider: "claude", Op: op, Message: "empty content"}
		}
		return out.String(), nil
	}
	return "", lastErr
}
