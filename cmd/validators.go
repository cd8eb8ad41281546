package cmd

import (
	"context"
	"fmt"

	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/provider"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/ethpandaops/chatbot-e2e/internal/validation"
)

// validatorSet holds the validators a run needs; unneeded ones stay nil.
type validatorSet struct {
	semantic *validation.SemanticValidator
	intent   *validation.IntentValidator
	refusal  *validation.RefusalValidator
}

// requirements reports which providers the cases need. Refusal examples are
// compared by embedding, so they need an embedder too.
func requirements(cases []*testdef.TestCase) (embed, classify bool) {
	for _, tc := range cases {
		for _, step := range tc.Steps() {
			switch step.ValidatorKind {
			case validation.KindSemantic:
				embed = true
			case validation.KindIntent:
				classify = true
			case validation.KindInjection:
				classify = true
				embed = embed || len(step.RefusalExamples) > 0
			}
		}
	}

	return embed, classify
}

// newValidators creates only the providers the cases use, so a run of
// semantic cases does not need a chat API key and vice versa.
func newValidators(ctx context.Context, cfg *config.Settings, cases []*testdef.TestCase) (validatorSet, error) {
	var set validatorSet

	embed, classify := requirements(cases)

	if embed {
		embedder, err := provider.NewEmbedder(ctx, Logger, cfg)
		if err != nil {
			return set, fmt.Errorf("creating embedding provider: %w", err)
		}

		set.semantic = validation.NewSemanticValidator(Logger, embedder)
	}

	if classify {
		classifier, err := provider.NewClassifier(ctx, Logger, cfg)
		if err != nil {
			return set, fmt.Errorf("creating chat provider: %w", err)
		}

		set.intent = validation.NewIntentValidator(Logger, classifier)
		set.refusal = validation.NewRefusalValidator(set.intent, set.semantic, cfg.Thresholds.RefusalSimilarity)
	}

	return set, nil
}
