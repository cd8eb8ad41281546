package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/sirupsen/logrus"
)

// DetectProvider infers the provider from a model name.
func DetectProvider(model string) string {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gemini-") || strings.HasPrefix(model, "gemini/") ||
		strings.HasPrefix(model, "text-embedding-0") || strings.HasPrefix(model, "embedding-"):
		return Gemini
	case strings.HasPrefix(model, "claude-") || strings.HasPrefix(model, "claude/"):
		return Claude
	default:
		return OpenAI
	}
}

// NormalizeModel strips a "provider/" prefix from a model name.
func NormalizeModel(model string) string {
	for _, prefix := range []string{"gemini/", "claude/", "openai/"} {
		if rest, ok := strings.CutPrefix(model, prefix); ok {
			return rest
		}
	}

	return model
}

// RetryPolicyFromSettings builds the retry policy from the settings.
func RetryPolicyFromSettings(cfg *config.Settings) RetryPolicy {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Providers.MaxAttempts
	policy.AttemptTimeout = cfg.Providers.Timeout

	return policy
}

// NewEmbedder creates the configured embedding provider.
func NewEmbedder(ctx context.Context, log logrus.FieldLogger, cfg *config.Settings) (Embedder, error) {
	name := cfg.Providers.EmbeddingProvider
	if name == "" {
		name = DetectProvider(cfg.Providers.EmbeddingModel)
	}

	model := NormalizeModel(cfg.Providers.EmbeddingModel)
	retry := RetryPolicyFromSettings(cfg)

	log.WithFields(logrus.Fields{
		"provider": name,
		"model":    model,
	}).Debug("creating embedder")

	switch name {
	case OpenAI:
		return NewOpenAIEmbedder(log, OpenAIConfig{
			APIKey:  cfg.Providers.OpenAIAPIKey,
			BaseURL: cfg.Providers.OpenAIBaseURL,
			Model:   model,
			Retry:   retry,
		})
	case Gemini:
		return NewGeminiEmbedder(ctx, log, GeminiConfig{
			APIKey: cfg.Providers.GeminiAPIKey,
			Model:  model,
			Retry:  retry,
		})
	case Claude:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEmbedder, name)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownProvider, name)
	}
}

// NewClassifier creates the configured chat-completion provider.
func NewClassifier(ctx context.Context, log logrus.FieldLogger, cfg *config.Settings) (Classifier, error) {
	name := cfg.Providers.ChatProvider
	if name == "" {
		name = DetectProvider(cfg.Providers.ChatModel)
	}

	model := NormalizeModel(cfg.Providers.ChatModel)
	retry := RetryPolicyFromSettings(cfg)

	log.WithFields(logrus.Fields{
		"provider": name,
		"model":    model,
	}).Debug("creating classifier")

	switch name {
	case OpenAI:
		return NewOpenAIClassifier(log, OpenAIConfig{
			APIKey:  cfg.Providers.OpenAIAPIKey,
			BaseURL: cfg.Providers.OpenAIBaseURL,
			Model:   model,
			Retry:   retry,
		})
	case Gemini:
		return NewGeminiClassifier(ctx, log, GeminiConfig{
			APIKey: cfg.Providers.GeminiAPIKey,
			Model:  model,
			Retry:  retry,
		})
	case Claude:
		return NewClaudeClassifier(log, ClaudeConfig{
			APIKey: cfg.Providers.AnthropicAPIKey,
			Model:  model,
			Retry:  retry,
		})
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownProvider, name)
	}
}
