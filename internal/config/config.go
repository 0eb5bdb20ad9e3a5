package config

import (
	"fmt"
	"strings"

	"github.com/atomizehq/atomizer/internal/platform/envutil"
)

// ProviderKind selects an LLM backend. Selection happens once, at
// construction time; callers only ever see the provider interface.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderClaude ProviderKind = "claude"
	ProviderGoogle ProviderKind = "google"
)

func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderClaude:
		return ProviderClaude, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	default:
		return "", fmt.Errorf("unknown ai provider: %q", s)
	}
}

// Task names for per-task provider overrides.
const (
	TaskStructureExtractor = "structure_extractor"
	TaskContentSummarizer  = "content_summarizer"
)

type Settings struct {
	// Provider selection
	AIProvider      ProviderKind
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string

	OpenAIModel       string
	OpenAIVisionModel string
	ClaudeModel       string
	GoogleModel       string

	// Optional per-task overrides; empty means "use the default provider".
	StructureExtractorProvider string
	StructureExtractorModel    string
	ContentSummarizerProvider  string
	ContentSummarizerModel     string

	// Directories
	OutputDir  string
	UploadsDir string

	// Processing limits
	MaxPagesPerChunk     int
	MaxConcurrentOCR     int
	MaxStructureChars    int
	MaxContentChars      int
	MaxTOCChars          int
	MaxChapterChars      int
	MaxRecursionDepth    int
	MinContentLenToSplit int

	// Filter keyword overrides (YAML file, optional)
	FilterKeywordsPath string

	// Job store
	JobStoreBackend string // "memory" (default) or "redis"
	RedisAddr       string
	RedisKeyPrefix  string

	// Server
	Host    string
	Port    int
	LogMode string
}

// Load reads settings from the environment, applying the same defaults the
// processing pipeline was tuned with.
func Load() Settings {
	return Settings{
		AIProvider:      ProviderKind(envutil.Str("AI_PROVIDER", string(ProviderOpenAI))),
		OpenAIAPIKey:    envutil.Str("OPENAI_API_KEY", ""),
		AnthropicAPIKey: envutil.Str("ANTHROPIC_API_KEY", ""),
		GoogleAPIKey:    envutil.Str("GOOGLE_API_KEY", ""),

		OpenAIModel:       envutil.Str("OPENAI_MODEL", "gpt-4o"),
		OpenAIVisionModel: envutil.Str("OPENAI_VISION_MODEL", "gpt-4o"),
		ClaudeModel:       envutil.Str("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		GoogleModel:       envutil.Str("GOOGLE_MODEL", "gemini-1.5-pro"),

		StructureExtractorProvider: envutil.Str("STRUCTURE_EXTRACTOR_PROVIDER", ""),
		StructureExtractorModel:    envutil.Str("STRUCTURE_EXTRACTOR_MODEL", ""),
		ContentSummarizerProvider:  envutil.Str("CONTENT_SUMMARIZER_PROVIDER", ""),
		ContentSummarizerModel:     envutil.Str("CONTENT_SUMMARIZER_MODEL", ""),

		OutputDir:  envutil.Str("OUTPUT_DIR", "./output"),
		UploadsDir: envutil.Str("UPLOADS_DIR", "./uploads"),

		MaxPagesPerChunk:     envutil.Int("MAX_PAGES_PER_CHUNK", 10),
		MaxConcurrentOCR:     envutil.Int("MAX_CONCURRENT_OCR", 5),
		MaxStructureChars:    envutil.Int("MAX_STRUCTURE_TEXT_CHARS", 300000),
		MaxContentChars:      envutil.Int("MAX_CONTENT_TEXT_CHARS", 100000),
		MaxTOCChars:          envutil.Int("MAX_TOC_CHARS", 60000),
		MaxChapterChars:      envutil.Int("MAX_CHAPTER_CHARS", 80000),
		MaxRecursionDepth:    envutil.Int("MAX_RECURSION_DEPTH", 10),
		MinContentLenToSplit: envutil.Int("MIN_CONTENT_LENGTH_FOR_SPLIT", 500),

		FilterKeywordsPath: envutil.Str("FILTER_KEYWORDS_PATH", ""),

		JobStoreBackend: envutil.Str("JOBSTORE_BACKEND", "memory"),
		RedisAddr:       envutil.Str("REDIS_ADDR", ""),
		RedisKeyPrefix:  envutil.Str("REDIS_KEY_PREFIX", "atomizer:job:"),

		Host:    envutil.Str("HOST", "0.0.0.0"),
		Port:    envutil.Int("PORT", 8000),
		LogMode: envutil.Str("LOG_MODE", "development"),
	}
}

// DefaultModel returns the configured default model for a provider.
func (s Settings) DefaultModel(kind ProviderKind) string {
	switch kind {
	case ProviderOpenAI:
		return s.OpenAIModel
	case ProviderClaude:
		return s.ClaudeModel
	case ProviderGoogle:
		return s.GoogleModel
	default:
		return ""
	}
}

// APIKeyFor returns the API key for a provider, or an error naming the
// missing variable.
func (s Settings) APIKeyFor(kind ProviderKind) (string, error) {
	switch kind {
	case ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return s.OpenAIAPIKey, nil
	case ProviderClaude:
		if s.AnthropicAPIKey == "" {
			return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return s.AnthropicAPIKey, nil
	case ProviderGoogle:
		if s.GoogleAPIKey == "" {
			return "", fmt.Errorf("GOOGLE_API_KEY not set")
		}
		return s.GoogleAPIKey, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", kind)
	}
}

// ProviderForTask resolves the provider and model for a named task. A task
// with no override configured falls back to the default provider and that
// provider's default model.
func (s Settings) ProviderForTask(task string) (ProviderKind, string) {
	var kindStr, model string
	switch task {
	case TaskStructureExtractor:
		kindStr, model = s.StructureExtractorProvider, s.StructureExtractorModel
	case TaskContentSummarizer:
		kindStr, model = s.ContentSummarizerProvider, s.ContentSummarizerModel
	}

	kind := s.AIProvider
	if kindStr != "" {
		if parsed, err := ParseProviderKind(kindStr); err == nil {
			kind = parsed
		}
	}
	if model == "" {
		model = s.DefaultModel(kind)
	}
	return kind, model
}
