package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
)

const claudeMaxTokens = 256

// ClaudeConfig configures the Anthropic client.
type ClaudeConfig struct {
	APIKey string
	Model  string
	Retry  RetryPolicy
}

type claudeClassifier struct {
	client anthropic.Client
	model  string
	retry  RetryPolicy
	log    logrus.FieldLogger
}

var _ Classifier = (*claudeClassifier)(nil)

// NewClaudeClassifier creates a classifier backed by the Messages API.
func NewClaudeClassifier(log logrus.FieldLogger, cfg ClaudeConfig) (Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", errMissingAPIKey)
	}

	// Retries are handled by RetryPolicy so attempts are counted in one place.
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)

	return &claudeClassifier{
		client: client,
		model:  cfg.Model,
		retry:  cfg.Retry,
		log:    log.WithField("component", "claude_classifier"),
	}, nil
}

func (c *claudeClassifier) Name() string  { return Claude }
func (c *claudeClassifier) Model() string { return c.model }

func (c *claudeClassifier) Classify(ctx context.Context, req ClassifyRequest) (Classification, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(UserPrompt(req))),
		},
		System: []anthropic.TextBlockParam{
			{Text: instructionOf(req)},
		},
		Temperature: anthropic.Float(0),
	}

	var text string

	err := c.retry.Do(ctx, c.log, Claude, "messages", func(ctx context.Context) error {
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return fmt.Errorf("claude API call failed: %w", err)
		}

		var response strings.Builder

		for _, block := range resp.Content {
			if block.Type == "text" {
				response.WriteString(block.Text)
			}
		}

		if response.Len() == 0 {
			return fmt.Errorf("%w: no text blocks", errEmptyResponse)
		}

		text = response.String()

		return nil
	})
	if err != nil {
		return Classification{}, err
	}

	return ParseClassification(text)
}
