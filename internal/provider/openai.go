package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const maxErrorBody = 512

// OpenAIConfig configures the OpenAI-compatible HTTP client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

type openAIClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   RetryPolicy
	log     logrus.FieldLogger
}

func newOpenAIClient(log logrus.FieldLogger, cfg OpenAIConfig) (*openAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", errMissingAPIKey)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &openAIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		retry:   cfg.Retry,
		log:     log,
	}, nil
}

// post sends body as JSON to path and returns the raw response body.
func (c *openAIClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(data)), maxErrorBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return data, nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}

	return 0
}

type openAIEmbedder struct {
	client *openAIClient
	model  string
}

var _ Embedder = (*openAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for the /embeddings endpoint.
func NewOpenAIEmbedder(log logrus.FieldLogger, cfg OpenAIConfig) (Embedder, error) {
	client, err := newOpenAIClient(log.WithField("component", "openai_embedder"), cfg)
	if err != nil {
		return nil, err
	}

	return &openAIEmbedder{client: client, model: cfg.Model}, nil
}

func (e *openAIEmbedder) Name() string  { return OpenAI }
func (e *openAIEmbedder) Model() string { return e.model }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64

	err := e.client.retry.Do(ctx, e.client.log, OpenAI, "embeddings", func(ctx context.Context) error {
		data, err := e.client.post(ctx, "/embeddings", embeddingRequest{Model: e.model, Input: texts})
		if err != nil {
			return err
		}

		var parsed embeddingResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("%w: decoding embeddings: %w", ErrMalformedResponse, err)
		}

		sort.SliceStable(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})

		vectors = make([][]float64, 0, len(parsed.Data))
		for _, item := range parsed.Data {
			vectors = append(vectors, item.Embedding)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.client.log.WithFields(logrus.Fields{
		"model":   e.model,
		"inputs":  len(texts),
		"vectors": len(vectors),
	}).Debug("embeddings received")

	return vectors, nil
}

type openAIClassifier struct {
	client *openAIClient
	model  string
}

var _ Classifier = (*openAIClassifier)(nil)

// NewOpenAIClassifier creates a classifier for the /chat/completions endpoint.
func NewOpenAIClassifier(log logrus.FieldLogger, cfg OpenAIConfig) (Classifier, error) {
	client, err := newOpenAIClient(log.WithField("component", "openai_classifier"), cfg)
	if err != nil {
		return nil, err
	}

	return &openAIClassifier{client: client, model: cfg.Model}, nil
}

func (c *openAIClassifier) Name() string  { return OpenAI }
func (c *openAIClassifier) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (c *openAIClassifier) Classify(ctx context.Context, req ClassifyRequest) (Classification, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: instructionOf(req)},
			{Role: "user", Content: UserPrompt(req)},
		},
		Temperature: 0,
	}

	var content string

	err := c.client.retry.Do(ctx, c.client.log, OpenAI, "chat_completion", func(ctx context.Context) error {
		data, err := c.client.post(ctx, "/chat/completions", body)
		if err != nil {
			return err
		}

		message := gjson.GetBytes(data, "choices.0.message.content")
		if !message.Exists() {
			return fmt.Errorf("%w: no choices in chat completion", errEmptyResponse)
		}

		content = message.String()

		return nil
	})
	if err != nil {
		return Classification{}, err
	}

	return ParseClassification(content)
}
