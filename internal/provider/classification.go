package provider

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultInstruction is the system instruction sent with every
// classification request.
const DefaultInstruction = `You are a strict evaluator of chatbot replies.
You are given a chatbot reply and a criterion.
Decide whether the reply satisfies the criterion.
Respond only with a JSON object of the form {"decision": true|false, "confidence": <number between 0 and 1>}.
Do not add any other text.`

// UserPrompt renders the classification question for req.
func UserPrompt(req ClassifyRequest) string {
	return fmt.Sprintf("Criterion: %s\n\nChatbot reply:\n\"\"\"\n%s\n\"\"\"\n\nDoes the reply satisfy the criterion?", req.Criterion, req.Text)
}

func instructionOf(req ClassifyRequest) string {
	if req.Instruction != "" {
		return req.Instruction
	}

	return DefaultInstruction
}

// ParseClassification parses a model answer into a Classification. It
// accepts a bare JSON object or one wrapped in a markdown code fence, and a
// decision given as a boolean or as "yes"/"no"/"true"/"false".
func ParseClassification(raw string) (Classification, error) {
	body := extractJSON(raw)
	if body == "" || !gjson.Valid(body) {
		return Classification{}, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(raw, 200))
	}

	result := gjson.Parse(body)
	if !result.IsObject() {
		return Classification{}, fmt.Errorf("%w: expected a JSON object, got %q", ErrMalformedResponse, truncate(body, 200))
	}

	decision, err := parseDecision(result.Get("decision"))
	if err != nil {
		return Classification{}, err
	}

	confidence := result.Get("confidence")
	if !confidence.Exists() {
		return Classification{}, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}

	if confidence.Type != gjson.Number {
		return Classification{}, fmt.Errorf("%w: confidence must be a number, got %s", ErrMalformedResponse, confidence.Type)
	}

	value := confidence.Float()
	if value < 0 || value > 1 {
		return Classification{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedResponse, value)
	}

	return Classification{
		Decision:   decision,
		Confidence: value,
		Raw:        raw,
	}, nil
}

func parseDecision(field gjson.Result) (bool, error) {
	if !field.Exists() {
		return false, fmt.Errorf("%w: missing decision", ErrMalformedResponse)
	}

	switch field.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(field.String())) {
		case "yes", "true":
			return true, nil
		case "no", "false":
			return false, nil
		}
	}

	return false, fmt.Errorf("%w: decision must be a boolean or yes/no, got %s", ErrMalformedResponse, field.Raw)
}

// extractJSON strips an optional code fence and returns the outermost
// object in s.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}

		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')

	if start < 0 || end < start {
		return ""
	}

	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
