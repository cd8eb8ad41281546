// Package provider implements the embedding and chat-completion clients used
// to score chatbot replies.
package provider

import "context"

// Provider names.
const (
	OpenAI = "openai"
	Gemini = "gemini"
	Claude = "claude"
)

// Embedder turns texts into embedding vectors. The result holds one vector
// per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Name() string
	Model() string
}

// ClassifyRequest asks whether Text satisfies Criterion.
type ClassifyRequest struct {
	Instruction string
	Text        string
	Criterion   string
}

// Classification is the parsed structured answer of a chat model.
type Classification struct {
	Decision   bool    `json:"decision"`
	Confidence float64 `json:"confidence"`
	Raw        string  `json:"raw,omitempty"`
}

// Classifier answers yes/no classification questions with a confidence.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
	Name() string
	Model() string
}
