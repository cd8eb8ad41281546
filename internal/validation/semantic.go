package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/provider"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/sirupsen/logrus"
)

// SemanticValidator passes a reply whose embedding is close enough to the
// embedding of the expected text.
type SemanticValidator struct {
	embedder provider.Embedder
	log      logrus.FieldLogger
}

// NewSemanticValidator creates a semantic validator.
func NewSemanticValidator(log logrus.FieldLogger, embedder provider.Embedder) *SemanticValidator {
	return &SemanticValidator{
		embedder: embedder,
		log:      log.WithField("component", "semantic_validator"),
	}
}

// Validate scores actual against expected. It passes iff the cosine
// similarity is at least threshold.
func (v *SemanticValidator) Validate(ctx context.Context, actual, expected string, threshold float64) (Result, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Result{}, err
	}

	start := time.Now()

	scores, err := v.Similarities(ctx, actual, []string{expected})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Kind:       KindSemantic,
		Passed:     scores[0] >= threshold,
		Score:      scores[0],
		Threshold:  threshold,
		ActualText: actual,
		Expected:   expected,
		Provider:   v.embedder.Name(),
		Model:      v.embedder.Model(),
		Duration:   time.Since(start),
	}

	v.log.WithFields(logrus.Fields{
		"score":     result.Score,
		"threshold": threshold,
		"passed":    result.Passed,
	}).Debug("semantic validation complete")

	return result, nil
}

// Similarities returns the cosine similarity between actual and each
// reference, using one batched embedding call. References whose normalized
// text equals actual share its embedding and score exactly 1.
func (v *SemanticValidator) Similarities(ctx context.Context, actual string, references []string) ([]float64, error) {
	normActual := transcript.Normalize(actual)

	// Unique texts to embed, actual first.
	texts := []string{normActual}
	index := map[string]int{normActual: 0}
	refIdx := make([]int, len(references))

	for i, ref := range references {
		norm := transcript.Normalize(ref)

		idx, ok := index[norm]
		if !ok {
			idx = len(texts)
			index[norm] = idx
			texts = append(texts, norm)
		}

		refIdx[i] = idx
	}

	vectors, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbedding, len(texts), len(vectors))
	}

	scores := make([]float64, len(references))

	for i, idx := range refIdx {
		score, err := Cosine(vectors[0], vectors[idx])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
		}

		if idx == 0 {
			score = 1
		}

		scores[i] = score
	}

	return scores, nil
}
