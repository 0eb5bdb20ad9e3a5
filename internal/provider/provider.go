package provider

import (
	"context"
	"fmt"
)

// CompleteRequest is the normalized text-completion input shared by every
// backend.
type CompleteRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// ModelInfo identifies the backend and model a provider instance is bound to.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Provider is the single abstraction the pipeline talks to. Selection happens
// once at construction; callers never branch on the backend.
type Provider interface {
	// Complete sends a prompt and returns the model's text output.
	Complete(ctx context.Context, req CompleteRequest) (string, error)

	// AnalyzeImage sends a base64-encoded PNG with a prompt and returns the
	// model's text output. Used by the OCR pass.
	AnalyzeImage(ctx context.Context, imageBase64 string, prompt string, system string) (string, error)

	// EmbedText returns an embedding vector for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts returns embedding vectors for a batch of texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	ModelInfo() ModelInfo
}

// Error wraps a backend failure with enough context to log and classify it.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
