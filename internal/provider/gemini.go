package provider

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
	Retry  RetryPolicy
}

type geminiClient struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
	log    logrus.FieldLogger
}

func newGeminiClient(ctx context.Context, log logrus.FieldLogger, cfg GeminiConfig) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY", errMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &geminiClient{
		client: client,
		model:  cfg.Model,
		retry:  cfg.Retry,
		log:    log,
	}, nil
}

type geminiEmbedder struct {
	*geminiClient
}

var _ Embedder = (*geminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder backed by the Gemini EmbedContent API.
func NewGeminiEmbedder(ctx context.Context, log logrus.FieldLogger, cfg GeminiConfig) (Embedder, error) {
	client, err := newGeminiClient(ctx, log.WithField("component", "gemini_embedder"), cfg)
	if err != nil {
		return nil, err
	}

	return &geminiEmbedder{geminiClient: client}, nil
}

func (g *geminiEmbedder) Name() string  { return Gemini }
func (g *geminiEmbedder) Model() string { return g.model }

func (g *geminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	var vectors [][]float64

	err := g.retry.Do(ctx, g.log, Gemini, "embed_content", func(ctx context.Context) error {
		result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		})
		if err != nil {
			return fmt.Errorf("embedding generation failed: %w", err)
		}

		if result == nil {
			return errEmptyResponse
		}

		vectors = make([][]float64, 0, len(result.Embeddings))
		for _, embedding := range result.Embeddings {
			vectors = append(vectors, toFloat64(embedding.Values))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

type geminiClassifier struct {
	*geminiClient
}

var _ Classifier = (*geminiClassifier)(nil)

// NewGeminiClassifier creates a classifier backed by GenerateContent with a
// response schema.
func NewGeminiClassifier(ctx context.Context, log logrus.FieldLogger, cfg GeminiConfig) (Classifier, error) {
	client, err := newGeminiClient(ctx, log.WithField("component", "gemini_classifier"), cfg)
	if err != nil {
		return nil, err
	}

	return &geminiClassifier{geminiClient: client}, nil
}

func (g *geminiClassifier) Name() string  { return Gemini }
func (g *geminiClassifier) Model() string { return g.model }

func (g *geminiClassifier) Classify(ctx context.Context, req ClassifyRequest) (Classification, error) {
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0)),
		SystemInstruction: genai.NewContentFromText(instructionOf(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"decision":   {Type: genai.TypeBoolean, Description: "Whether the reply satisfies the criterion"},
				"confidence": {Type: genai.TypeNumber, Description: "Confidence in the decision, between 0 and 1"},
			},
			Required: []string{"decision", "confidence"},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(UserPrompt(req), genai.RoleUser)}

	var text string

	err := g.retry.Do(ctx, g.log, Gemini, "generate_content", func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return fmt.Errorf("chat generation failed: %w", err)
		}

		text = resp.Text()
		if text == "" {
			return fmt.Errorf("%w: no text in candidates", errEmptyResponse)
		}

		return nil
	})
	if err != nil {
		return Classification{}, err
	}

	return ParseClassification(text)
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}

	return out
}
