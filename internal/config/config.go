// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// MatchPolicy decides how a selector matching several elements is resolved.
type MatchPolicy string

const (
	// MatchFirst takes the first element in document order.
	MatchFirst MatchPolicy = "first"
	// MatchAll takes every matching element in document order.
	MatchAll MatchPolicy = "all"
)

var errInvalidSettings = errors.New("invalid settings")

// Selectors holds the named CSS or XPath selectors of the chat widget.
type Selectors struct {
	OpenWidget           string `yaml:"open_widget" validate:"required"`
	InputArea            string `yaml:"input_area" validate:"required"`
	SendButton           string `yaml:"send_button"`
	MessagesContainer    string `yaml:"messages_container"`
	MessageRow           string `yaml:"message_row" validate:"required"`
	MessageRoleAttribute string `yaml:"message_role_attribute" validate:"required"`
	MessageText          string `yaml:"message_text"`
}

// RoleTokens lists the role attribute tokens recognised as user or bot authored.
type RoleTokens struct {
	User []string `yaml:"user" validate:"min=1,dive,required"`
	Bot  []string `yaml:"bot" validate:"min=1,dive,required"`
}

// Thresholds holds the global pass thresholds, overridable per test case.
type Thresholds struct {
	Semantic          float64 `yaml:"semantic" validate:"gte=0,lte=1"`
	IntentConfidence  float64 `yaml:"intent_confidence" validate:"gte=0,lte=1"`
	RefusalSimilarity float64 `yaml:"refusal_similarity" validate:"gte=0,lte=1"`
}

// Providers configures the embedding and chat-completion providers.
type Providers struct {
	ChatProvider      string        `yaml:"chat_provider" validate:"omitempty,oneof=openai gemini claude"`
	ChatModel         string        `yaml:"chat_model" validate:"required"`
	EmbeddingProvider string        `yaml:"embedding_provider" validate:"omitempty,oneof=openai gemini"`
	EmbeddingModel    string        `yaml:"embedding_model" validate:"required"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url" validate:"omitempty,url"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	AnthropicAPIKey   string        `yaml:"anthropic_api_key"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts       int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
}

// Browser configures the browser driver and evidence capture.
type Browser struct {
	Headless            bool          `yaml:"headless"`
	ExecPath            string        `yaml:"exec_path"`
	UserAgent           string        `yaml:"user_agent"`
	WindowWidth         int           `yaml:"window_width" validate:"gt=0"`
	WindowHeight        int           `yaml:"window_height" validate:"gt=0"`
	RecordVideo         bool          `yaml:"record_video"`
	ScreenshotOnFailure bool          `yaml:"screenshot_on_failure"`
	WidgetTimeout       time.Duration `yaml:"widget_timeout" validate:"gt=0"`
	ReplyTimeout        time.Duration `yaml:"reply_timeout" validate:"gt=0"`
	PollInterval        time.Duration `yaml:"poll_interval" validate:"gt=0"`
	NetworkIdleTimeout  time.Duration `yaml:"network_idle_timeout" validate:"gt=0"`
	CaseTimeout         time.Duration `yaml:"case_timeout" validate:"gt=0"`
}

// Settings is the complete harness configuration. It is built once at process
// start and handed to every component; nothing mutates it afterwards.
type Settings struct {
	BaseURL       string      `yaml:"base_url" validate:"required,url"`
	ArtifactsDir  string      `yaml:"artifacts_dir" validate:"required"`
	Selectors     Selectors   `yaml:"selectors"`
	SelectorMatch MatchPolicy `yaml:"selector_match" validate:"oneof=first all"`
	RoleTokens    RoleTokens  `yaml:"role_tokens"`
	Thresholds    Thresholds  `yaml:"thresholds"`
	Providers     Providers   `yaml:"providers"`
	Browser       Browser     `yaml:"browser"`
}

// Defaults returns the settings used when neither a file nor the environment
// overrides a value.
func Defaults() *Settings {
	return &Settings{
		BaseURL:      DefaultBaseURL,
		ArtifactsDir: DefaultArtifactsDir,
		Selectors: Selectors{
			OpenWidget:           `[data-testid='chatbot-icon']`,
			InputArea:            `[data-testid="mimir-chat-input-field"]`,
			SendButton:           `[data-testid="mimir-chat-send-button"]`,
			MessagesContainer:    `.mimir-chat-container`,
			MessageRow:           `.mimir-chat-message`,
			MessageRoleAttribute: "class",
			MessageText:          "p",
		},
		SelectorMatch: MatchFirst,
		RoleTokens: RoleTokens{
			User: []string{"user", "human", "visitor", "customer"},
			Bot:  []string{"bot", "assistant", "ai", "agent"},
		},
		Thresholds: Thresholds{
			Semantic:          DefaultSemanticThreshold,
			IntentConfidence:  DefaultIntentConfidenceThreshold,
			RefusalSimilarity: DefaultRefusalSimilarityThreshold,
		},
		Providers: Providers{
			ChatModel:      DefaultChatModel,
			EmbeddingModel: DefaultEmbeddingModel,
			OpenAIBaseURL:  DefaultOpenAIBaseURL,
			Timeout:        DefaultProviderTimeout,
			MaxAttempts:    DefaultProviderMaxAttempts,
		},
		Browser: Browser{
			Headless:            true,
			WindowWidth:         DefaultWindowWidth,
			WindowHeight:        DefaultWindowHeight,
			RecordVideo:         true,
			ScreenshotOnFailure: true,
			WidgetTimeout:       DefaultWidgetTimeout,
			ReplyTimeout:        DefaultReplyTimeout,
			PollInterval:        DefaultPollInterval,
			NetworkIdleTimeout:  DefaultNetworkIdleTimeout,
			CaseTimeout:         DefaultCaseTimeout,
		},
	}
}

// Load builds settings from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins). A .env file
// is loaded first when present.
func Load(envFile, configFile string) (*Settings, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := Defaults()

	if configFile != "" {
		if err := cfg.mergeFile(configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Settings) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", errInvalidSettings, err)
	}

	return nil
}

// ScreenshotPath returns the failure screenshot location for a test case.
func (c *Settings) ScreenshotPath(caseID string) string {
	return joinPath(c.ArtifactsDir, ScreenshotsDir, caseID+".png")
}

// VideoDir returns the screencast frame directory for a test case.
func (c *Settings) VideoDir(caseID string) string {
	return joinPath(c.ArtifactsDir, VideosDir, caseID)
}

// LogsPath returns the directory holding results.jsonl and summary.json.
func (c *Settings) LogsPath() string {
	return joinPath(c.ArtifactsDir, LogsDir)
}

// loadEnvFile loads the given env file, tolerating a missing default .env.
func loadEnvFile(file string) error {
	if file == "" {
		file = ".env"
	}

	if err := godotenv.Load(file); err != nil {
		if file == ".env" && os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to load env file '%s': %w", file, err)
	}

	return nil
}

func (c *Settings) applyEnv() error {
	envString("BASE_URL", &c.BaseURL)
	envString("ARTIFACTS_DIR", &c.ArtifactsDir)

	envString("SELECTOR_OPEN_WIDGET", &c.Selectors.OpenWidget)
	envString("SELECTOR_INPUT_AREA", &c.Selectors.InputArea)
	envString("SELECTOR_SEND_BUTTON", &c.Selectors.SendButton)
	envString("SELECTOR_MESSAGES_CONTAINER", &c.Selectors.MessagesContainer)
	envString("SELECTOR_MESSAGE_ROW", &c.Selectors.MessageRow)
	envString("SELECTOR_MESSAGE_ROLE_ATTRIBUTE", &c.Selectors.MessageRoleAttribute)
	envString("SELECTOR_MESSAGE_TEXT", &c.Selectors.MessageText)

	if v := os.Getenv("SELECTOR_MATCH"); v != "" {
		c.SelectorMatch = MatchPolicy(strings.ToLower(strings.TrimSpace(v)))
	}

	envList("ROLE_TOKENS_USER", &c.RoleTokens.User)
	envList("ROLE_TOKENS_BOT", &c.RoleTokens.Bot)

	envString("CHAT_PROVIDER", &c.Providers.ChatProvider)
	envString("CHAT_MODEL", &c.Providers.ChatModel)
	envString("EMBEDDING_PROVIDER", &c.Providers.EmbeddingProvider)
	envString("EMBEDDING_MODEL", &c.Providers.EmbeddingModel)
	envString("OPENAI_API_KEY", &c.Providers.OpenAIAPIKey)
	envString("OPENAI_BASE_URL", &c.Providers.OpenAIBaseURL)
	envString("GEMINI_API_KEY", &c.Providers.GeminiAPIKey)
	envString("ANTHROPIC_API_KEY", &c.Providers.AnthropicAPIKey)
	envString("BROWSER_EXEC_PATH", &c.Browser.ExecPath)
	envString("BROWSER_USER_AGENT", &c.Browser.UserAgent)

	parsers := []func() error{
		func() error { return envFloat("SEMANTIC_THRESHOLD", &c.Thresholds.Semantic) },
		func() error { return envFloat("INTENT_CONFIDENCE_THRESHOLD", &c.Thresholds.IntentConfidence) },
		func() error { return envFloat("REFUSAL_SIMILARITY_THRESHOLD", &c.Thresholds.RefusalSimilarity) },
		func() error { return envDuration("PROVIDER_TIMEOUT", &c.Providers.Timeout) },
		func() error { return envInt("PROVIDER_MAX_ATTEMPTS", &c.Providers.MaxAttempts) },
		func() error { return envBool("HEADLESS", &c.Browser.Headless) },
		func() error { return envBool("RECORD_VIDEO", &c.Browser.RecordVideo) },
		func() error { return envBool("SCREENSHOT_ON_FAILURE", &c.Browser.ScreenshotOnFailure) },
		func() error { return envInt("WINDOW_WIDTH", &c.Browser.WindowWidth) },
		func() error { return envInt("WINDOW_HEIGHT", &c.Browser.WindowHeight) },
		func() error { return envDuration("WIDGET_TIMEOUT", &c.Browser.WidgetTimeout) },
		func() error { return envDuration("REPLY_TIMEOUT", &c.Browser.ReplyTimeout) },
		func() error { return envDuration("POLL_INTERVAL", &c.Browser.PollInterval) },
		func() error { return envDuration("NETWORK_IDLE_TIMEOUT", &c.Browser.NetworkIdleTimeout) },
		func() error { return envDuration("CASE_TIMEOUT", &c.Browser.CaseTimeout) },
	}

	for _, parse := range parsers {
		if err := parse(); err != nil {
			return err
		}
	}

	return nil
}

func envString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func envList(key string, dst *[]string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, strings.ToLower(trimmed))
		}
	}

	*dst = items
}

func envFloat(key string, dst *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	*dst = parsed

	return nil
}

func envInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	*dst = parsed

	return nil
}

func envBool(key string, dst *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parsed, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	*dst = parsed

	return nil
}

// envDuration accepts Go duration strings ("5s") or bare milliseconds ("5000").
func envDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	*dst = parsed

	return nil
}

func (c *Settings) String() string {
	return fmt.Sprintf(`Current Configuration:
======================
Base URL:                    %s
Artifacts Dir:               %s
Selector Match:              %s

Selectors:
  Open Widget:               %s
  Input Area:                %s
  Send Button:               %s
  Messages Container:        %s
  Message Row:               %s
  Message Role Attribute:    %s
  Message Text:              %s

Thresholds:
  Semantic:                  %.2f
  Intent Confidence:         %.2f
  Refusal Similarity:        %.2f

Providers:
  Chat:                      %s (%s)
  Embedding:                 %s (%s)
  OpenAI API Key:            %s
  OpenAI Base URL:           %s
  Gemini API Key:            %s
  Anthropic API Key:         %s
  Timeout / Attempts:        %s / %d

Browser:
  Headless:                  %t
  Record Video:              %t
  Screenshot On Failure:     %t
  Widget / Reply Timeout:    %s / %s
  Poll Interval:             %s
  Case Timeout:              %s`,
		c.BaseURL,
		c.ArtifactsDir,
		c.SelectorMatch,
		c.Selectors.OpenWidget,
		c.Selectors.InputArea,
		displayOrUnset(c.Selectors.SendButton),
		displayOrUnset(c.Selectors.MessagesContainer),
		c.Selectors.MessageRow,
		c.Selectors.MessageRoleAttribute,
		displayOrUnset(c.Selectors.MessageText),
		c.Thresholds.Semantic,
		c.Thresholds.IntentConfidence,
		c.Thresholds.RefusalSimilarity,
		displayOrAuto(c.Providers.ChatProvider),
		c.Providers.ChatModel,
		displayOrAuto(c.Providers.EmbeddingProvider),
		c.Providers.EmbeddingModel,
		mask(c.Providers.OpenAIAPIKey),
		c.Providers.OpenAIBaseURL,
		mask(c.Providers.GeminiAPIKey),
		mask(c.Providers.AnthropicAPIKey),
		c.Providers.Timeout,
		c.Providers.MaxAttempts,
		c.Browser.Headless,
		c.Browser.RecordVideo,
		c.Browser.ScreenshotOnFailure,
		c.Browser.WidgetTimeout,
		c.Browser.ReplyTimeout,
		c.Browser.PollInterval,
		c.Browser.CaseTimeout,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}

	return "********"
}

func displayOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}

	return v
}

func displayOrAuto(v string) string {
	if v == "" {
		return "auto"
	}

	return v
}
