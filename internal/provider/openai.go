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

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAI talks to the OpenAI chat completions and embeddings APIs.
type OpenAI struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	embedModel  string
	httpClient  *http.Client
	maxRetries  int
}

// OpenAIOptions carries the optional knobs for NewOpenAI. Zero values fall
// back to sensible defaults.
type OpenAIOptions struct {
	BaseURL     string
	VisionModel string
	EmbedModel  string
	Timeout     time.Duration
	MaxRetries  int
}

func NewOpenAI(log *logger.Logger, apiKey string, model string, opts OpenAIOptions) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OpenAI api key")
	}
	if model == "" {
		model = "gpt-4o"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	visionModel := opts.VisionModel
	if visionModel == "" {
		visionModel = model
	}
	embedModel := opts.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OpenAI{
		log:         log.With("service", "OpenAIProvider"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		embedModel:  embedModel,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
	}, nil
}

func (o *OpenAI) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "openai", Model: o.model}
}

type oaMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type oaChatRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type oaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	msgs := make([]oaMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, oaMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, oaMessage{Role: "user", Content: req.Prompt})

	body := oaChatRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: &req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var resp oaChatResponse
	if err := o.doJSON(ctx, "complete", "/v1/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: "openai", Op: "complete", Message: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) AnalyzeImage(ctx context.Context, imageBase64 string, prompt string, system string) (string, error) {
	content := []map[string]any{
		{"type": "text", "text": prompt},
		{
			"type": "image_url",
			"image_url": map[string]any{
				"url":    "data:image/png;base64," + imageBase64,
				"detail": "high",
			},
		},
	}
	msgs := make([]oaMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, oaMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, oaMessage{Role: "user", Content: content})

	temp := 0.0
	body := oaChatRequest{
		Model:       o.visionModel,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   4096,
	}

	var resp oaChatResponse
	if err := o.doJSON(ctx, "analyze_image", "/v1/chat/completions", body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: "openai", Op: "analyze_image", Message: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

type oaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (o *OpenAI) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAI) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var resp oaEmbedResponse
	if err := o.doJSON(ctx, "embed", "/v1/embeddings", oaEmbedRequest{Model: o.embedModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, &Error{Provider: "openai", Op: "embed", Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data))}
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &Error{Provider: "openai", Op: "embed", Message: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (o *OpenAI) doJSON(ctx context.Context, op string, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &Error{Provider: "openai", Op: op, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return &Error{Provider: "openai", Op: op, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return &Error{Provider: "openai", Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			lastErr = &Error{Provider: "openai", Op: op, Err: err}
			continue
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &Error{Provider: "openai", Op: op, Err: err}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &Error{Provider: "openai", Op: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
			o.log.Warn("openai request retryable failure", "op", op, "status", resp.StatusCode, "attempt", attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return &Error{Provider: "openai", Op: op, StatusCode: resp.StatusCode, Message: truncateBody(raw)}
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Provider: "openai", Op: op, Err: err}
		}
		return nil
	}
	return lastErr
}

func truncateBody(b []byte) string {
	const max = 1024
	s := string(b)
	if len(s) > max {
		return s[:max]
	}
	return s
}
