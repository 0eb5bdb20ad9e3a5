package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	genai "google.golang.org/genai"

	"github.com/atomizehq/atomizer/internal/platform/logger"
)

// Google talks to the Gemini API through the genai SDK.
type Google struct {
	log        *logger.Logger
	client     *genai.Client
	model      string
	embedModel string
}

func NewGoogle(ctx context.Context, log *logger.Logger, apiKey string, model string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Google api key")
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Google{
		log:        log.With("service", "GoogleProvider"),
		client:     c,
		model:      model,
		embedModel: "text-embedding-004",
	}, nil
}

func (g *Google) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "google", Model: g.model}
}

func (g *Google) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", &Error{Provider: "google", Op: "complete", Err: err}
	}
	text := res.Text()
	if text == "" {
		return "", &Error{Provider: "google", Op: "complete", Message: "empty response"}
	}
	return text, nil
}

func (g *Google) AnalyzeImage(ctx context.Context, imageBase64 string, prompt string, system string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", &Error{Provider: "google", Op: "analyze_image", Err: err}
	}
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: raw}},
		},
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, cfg)
	if err != nil {
		return "", &Error{Provider: "google", Op: "analyze_image", Err: err}
	}
	text := res.Text()
	if text == "" {
		return "", &Error{Provider: "google", Op: "analyze_image", Message: "empty response"}
	}
	return text, nil
}

func (g *Google) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *Google) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	res, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, &Error{Provider: "google", Op: "embed", Err: err}
	}
	if len(res.Embeddings) != len(texts) {
		return nil, &Error{Provider: "google", Op: "embed", Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))}
	}
	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
