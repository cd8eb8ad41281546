// Package testdef provides test case loading and validation.
// Test cases specify what to ask the chatbot and how to judge the reply,
// as opposed to how the run is executed (see testing.OrchestratorConfig).
package testdef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethpandaops/chatbot-e2e/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	errNoCases                   = errors.New("fixture defines no cases")
	errDuplicateID               = errors.New("duplicate case id")
	errPromptOrTurns             = errors.New("case must define exactly one of 'prompt' or 'turns'")
	errExpectedRequired          = errors.New("'expected' is required for semantic and intent validation")
	errExpectedBehaviorRequired  = errors.New("'expected_behavior' is required for injection validation")
	errExpectedBehaviorForbidden = errors.New("'expected_behavior' is only valid for injection validation")
	errTurnInputRequired         = errors.New("message turn requires 'input'")
	errTurnSelectorRequired      = errors.New("click turn requires 'selector'")
	errNoValidation              = errors.New("case validates nothing")
	errInvalidField              = errors.New("invalid field")
	errParseYAML                 = errors.New("parsing yaml")
	errCaseLevelWithTurns        = errors.New("case-level validation fields are not allowed with 'turns'; set them per turn")
)

// Action is what a conversation turn does.
type Action string

const (
	// ActionMessage types Input and sends it.
	ActionMessage Action = "message"
	// ActionClick clicks Selector (for example a suggested-reply button),
	// then sends whatever it put into the input area.
	ActionClick Action = "click"
)

// File is the top-level structure of a fixture file.
type File struct {
	Cases []*TestCase `yaml:"cases" json:"cases" jsonschema:"required,minItems=1"`
}

// TestCase is a single chatbot test.
type TestCase struct {
	ID               string              `yaml:"id" json:"id" validate:"required" jsonschema:"required,description=Unique case identifier"`
	Description      string              `yaml:"description,omitempty" json:"description,omitempty"`
	Prompt           string              `yaml:"prompt,omitempty" json:"prompt,omitempty" jsonschema:"description=Message sent to the chatbot; mutually exclusive with turns"`
	ValidatorKind    validation.Kind     `yaml:"validator_kind,omitempty" json:"validator_kind,omitempty" validate:"omitempty,oneof=semantic intent injection" jsonschema:"enum=semantic,enum=intent,enum=injection"`
	Expected         string              `yaml:"expected,omitempty" json:"expected,omitempty" jsonschema:"description=Expected reply (semantic) or intent description (intent)"`
	Threshold        *float64            `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	ExpectedBehavior validation.Behavior `yaml:"expected_behavior,omitempty" json:"expected_behavior,omitempty" validate:"omitempty,oneof=refuse comply" jsonschema:"enum=refuse,enum=comply"`
	MaxResponseTime  Duration            `yaml:"max_response_time,omitempty" json:"max_response_time,omitempty" jsonschema:"description=Reply latency budget"`
	RefusalExamples  []string            `yaml:"refusal_examples,omitempty" json:"refusal_examples,omitempty"`
	Tags             []string            `yaml:"tags,omitempty" json:"tags,omitempty"`
	Turns            []*Turn             `yaml:"turns,omitempty" json:"turns,omitempty" validate:"omitempty,dive"`

	// Source is the fixture file the case was loaded from.
	Source string `yaml:"-" json:"-"`
}

// Turn is one step of a multi-turn conversation.
type Turn struct {
	Action           Action              `yaml:"action,omitempty" json:"action,omitempty" validate:"omitempty,oneof=message click" jsonschema:"enum=message,enum=click"`
	Input            string              `yaml:"input,omitempty" json:"input,omitempty"`
	Selector         string              `yaml:"selector,omitempty" json:"selector,omitempty"`
	ValidatorKind    validation.Kind     `yaml:"validator_kind,omitempty" json:"validator_kind,omitempty" validate:"omitempty,oneof=semantic intent injection" jsonschema:"enum=semantic,enum=intent,enum=injection"`
	Expected         string              `yaml:"expected,omitempty" json:"expected,omitempty"`
	Threshold        *float64            `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	ExpectedBehavior validation.Behavior `yaml:"expected_behavior,omitempty" json:"expected_behavior,omitempty" validate:"omitempty,oneof=refuse comply" jsonschema:"enum=refuse,enum=comply"`
	RefusalExamples  []string            `yaml:"refusal_examples,omitempty" json:"refusal_examples,omitempty"`
}

// Steps returns the conversation steps of the case. A single-prompt case
// is one message step carrying the case-level validation.
func (tc *TestCase) Steps() []*Turn {
	if len(tc.Turns) > 0 {
		return tc.Turns
	}

	return []*Turn{{
		Action:           ActionMessage,
		Input:            tc.Prompt,
		ValidatorKind:    tc.ValidatorKind,
		Expected:         tc.Expected,
		Threshold:        tc.Threshold,
		ExpectedBehavior: tc.ExpectedBehavior,
		RefusalExamples:  tc.RefusalExamples,
	}}
}

// HasTag reports whether the case carries tag.
func (tc *TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// Loader loads fixture files.
type Loader interface {
	LoadFile(path string) ([]*TestCase, error)
	Load(paths []string) ([]*TestCase, error)
}

type loader struct {
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewLoader creates a new fixture loader.
func NewLoader(log logrus.FieldLogger) Loader {
	return &loader{
		validate: validator.New(),
		log:      log.WithField("component", "testdef_loader"),
	}
}

// Load loads every fixture in paths, in order. Directories contribute their
// .yaml and .yml files sorted by name. Case ids must be unique across all
// files.
func (l *loader) Load(paths []string) ([]*TestCase, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	var (
		cases = make([]*TestCase, 0)
		seen  = make(map[string]string)
	)

	for _, file := range files {
		loaded, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}

		for _, tc := range loaded {
			if prev, ok := seen[tc.ID]; ok {
				return nil, fmt.Errorf("%w: %s in %s (first defined in %s)", errDuplicateID, tc.ID, file, prev)
			}

			seen[tc.ID] = file
		}

		cases = append(cases, loaded...)
	}

	l.log.WithFields(logrus.Fields{
		"files": len(files),
		"cases": len(cases),
	}).Debug("loaded fixtures")

	return cases, nil
}

// LoadFile loads and validates a single fixture file.
func (l *loader) LoadFile(path string) ([]*TestCase, error) {
	l.log.WithField("path", path).Debug("loading fixture file")

	file, err := l.loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading fixture from %s: %w", path, err)
	}

	if len(file.Cases) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoCases)
	}

	ids := make(map[string]int, len(file.Cases))

	for i, tc := range file.Cases {
		if tc == nil {
			return nil, fmt.Errorf("%s: case at index %d: %w", path, i, errInvalidField)
		}

		if err := l.validateCase(tc); err != nil {
			return nil, fmt.Errorf("%s: case %q at index %d: %w", path, tc.ID, i, err)
		}

		if prev, ok := ids[tc.ID]; ok {
			return nil, fmt.Errorf("%s: %w: %s at index %d and %d", path, errDuplicateID, tc.ID, prev, i)
		}

		ids[tc.ID] = i
		tc.Source = path
	}

	return file.Cases, nil
}

// loadFile reads and parses a YAML fixture file.
func (l *loader) loadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading fixtures from operator-supplied paths
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", errParseYAML, err)
	}

	return &file, nil
}

// validateCase ensures the case is runnable.
func (l *loader) validateCase(tc *TestCase) error {
	if err := l.validate.Struct(tc); err != nil {
		return fieldError(err)
	}

	hasPrompt := strings.TrimSpace(tc.Prompt) != ""
	hasTurns := len(tc.Turns) > 0

	if hasPrompt == hasTurns {
		return errPromptOrTurns
	}

	if hasPrompt {
		if tc.ValidatorKind == "" {
			return fmt.Errorf("%w: 'validator_kind' is required", errInvalidField)
		}

		return validateValidation(tc.ValidatorKind, tc.Expected, tc.ExpectedBehavior)
	}

	if caseLevel := caseLevelValidationFields(tc); len(caseLevel) > 0 {
		return fmt.Errorf("%w: %s", errCaseLevelWithTurns, strings.Join(caseLevel, ", "))
	}

	validated := false

	for i, turn := range tc.Turns {
		if turn.Action == "" {
			turn.Action = ActionMessage
		}

		switch turn.Action {
		case ActionMessage:
			if strings.TrimSpace(turn.Input) == "" {
				return fmt.Errorf("turn %d: %w", i, errTurnInputRequired)
			}
		case ActionClick:
			if strings.TrimSpace(turn.Selector) == "" {
				return fmt.Errorf("turn %d: %w", i, errTurnSelectorRequired)
			}
		}

		if turn.ValidatorKind == "" {
			if turn.ExpectedBehavior != "" {
				return fmt.Errorf("turn %d: %w", i, errExpectedBehaviorForbidden)
			}

			continue
		}

		if err := validateValidation(turn.ValidatorKind, turn.Expected, turn.ExpectedBehavior); err != nil {
			return fmt.Errorf("turn %d: %w", i, err)
		}

		validated = true
	}

	if !validated {
		l.log.WithField("case", tc.ID).Warn("no turn of the conversation is validated")
		return errNoValidation
	}

	return nil
}

// caseLevelValidationFields lists the case-level validation fields that are
// set. A conversation carries its validation on the turns instead.
func caseLevelValidationFields(tc *TestCase) []string {
	var set []string

	if tc.ValidatorKind != "" {
		set = append(set, "validator_kind")
	}

	if tc.Expected != "" {
		set = append(set, "expected")
	}

	if tc.Threshold != nil {
		set = append(set, "threshold")
	}

	if tc.ExpectedBehavior != "" {
		set = append(set, "expected_behavior")
	}

	if len(tc.RefusalExamples) > 0 {
		set = append(set, "refusal_examples")
	}

	return set
}

func validateValidation(kind validation.Kind, expected string, behavior validation.Behavior) error {
	switch kind {
	case validation.KindSemantic, validation.KindIntent:
		if strings.TrimSpace(expected) == "" {
			return errExpectedRequired
		}

		if behavior != "" {
			return errExpectedBehaviorForbidden
		}
	case validation.KindInjection:
		if behavior == "" {
			return errExpectedBehaviorRequired
		}
	}

	return nil
}

// fieldError flattens validator errors into one readable error.
func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return fmt.Errorf("%w: %s", errInvalidField, strings.Join(msgs, "; "))
}

// expandPaths turns a list of files and directories into fixture files.
func expandPaths(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading fixture path: %w", err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", path, err)
		}

		var dirFiles []string

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
				continue
			}

			dirFiles = append(dirFiles, filepath.Join(path, name))
		}

		sort.Strings(dirFiles)
		files = append(files, dirFiles...)
	}

	return files, nil
}

// Filter keeps the cases whose id is in ids (when non-empty) and that carry
// at least one of tags (when non-empty). Order is preserved.
func Filter(cases []*TestCase, ids, tags []string) []*TestCase {
	if len(ids) == 0 && len(tags) == 0 {
		return cases
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	out := make([]*TestCase, 0, len(cases))

	for _, tc := range cases {
		if len(wanted) > 0 {
			if _, ok := wanted[tc.ID]; !ok {
				continue
			}
		}

		if len(tags) > 0 && !hasAnyTag(tc, tags) {
			continue
		}

		out = append(out, tc)
	}

	return out
}

func hasAnyTag(tc *TestCase, tags []string) bool {
	for _, tag := range tags {
		if tc.HasTag(tag) {
			return true
		}
	}

	return false
}
