package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/atomizehq/atomizer/internal/config"
	"github.com/atomizehq/atomizer/internal/platform/logger"
)

// Registry constructs and caches providers keyed by backend and model, so
// per-task overrides that share a backend also share the HTTP client.
type Registry struct {
	cfg config.Settings
	log *logger.Logger

	mu    sync.Mutex
	cache map[string]Provider
}

func NewRegistry(cfg config.Settings, log *logger.Logger) *Registry {
	return &Registry{
		cfg:   cfg,
		log:   log,
		cache: map[string]Provider{},
	}
}

// Default returns the provider for the globally configured backend and its
// default model.
func (r *Registry) Default(ctx context.Context) (Provider, error) {
	kind := r.cfg.AIProvider
	return r.get(ctx, kind, r.cfg.DefaultModel(kind))
}

// ForTask resolves the provider for a named task, falling back to the default
// backend and model when no override is configured.
func (r *Registry) ForTask(ctx context.Context, task string) (Provider, error) {
	kind, model := r.cfg.ProviderForTask(task)
	return r.get(ctx, kind, model)
}

func (r *Registry) get(ctx context.Context, kind config.ProviderKind, model string) (Provider, error) {
	key := string(kind) + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[key]; ok {
		return p, nil
	}

	apiKey, err := r.cfg.APIKeyFor(kind)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch kind {
	case config.ProviderOpenAI:
		p, err = NewOpenAI(r.log, apiKey, model, OpenAIOptions{VisionModel: r.cfg.OpenAIVisionModel})
	case config.ProviderClaude:
		p, err = NewAnthropic(r.log, apiKey, model, AnthropicOptions{})
	case config.ProviderGoogle:
		p, err = NewGoogle(ctx, r.log, apiKey, model)
	default:
		return nil, fmt.Errorf("unknown provider: %q", kind)
	}
	if err != nil {
		return nil, err
	}

	r.cache[key] = p
	r.log.Info("provider constructed", "provider", kind, "model", model)
	return p, nil
}
