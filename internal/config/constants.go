package config

import "time"

const (
	// DefaultBaseURL is the page hosting the chatbot widget under test.
	DefaultBaseURL = "https://sunrv-chatbot.dev02cms.milestoneinternet.info/?_enablechatbot=true"

	// DefaultSemanticThreshold is the minimum cosine similarity for semantic cases.
	DefaultSemanticThreshold = 0.80
	// DefaultIntentConfidenceThreshold is the minimum classifier confidence for intent cases.
	DefaultIntentConfidenceThreshold = 0.50
	// DefaultRefusalSimilarityThreshold is the similarity a reply needs against a
	// refusal example when the classifier misses a refusal.
	DefaultRefusalSimilarityThreshold = 0.50

	// DefaultChatModel is the chat-completion model used for classification.
	DefaultChatModel = "gpt-4"
	// DefaultEmbeddingModel is the embedding model used for semantic similarity.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultOpenAIBaseURL is the OpenAI-compatible API root.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultArtifactsDir is where screenshots, videos and reports are written.
	DefaultArtifactsDir = "artifacts"
	// DefaultFixturesDir is where fixture YAML files are discovered.
	DefaultFixturesDir = "fixtures"

	// ScreenshotsDir is the artifacts subdirectory for failure screenshots.
	ScreenshotsDir = "screenshots"
	// VideosDir is the artifacts subdirectory for screencast recordings.
	VideosDir = "videos"
	// LogsDir is the artifacts subdirectory for JSONL results and summaries.
	LogsDir = "logs"

	// DefaultWidgetTimeout bounds the wait for the open-widget control.
	DefaultWidgetTimeout = 10 * time.Second
	// DefaultReplyTimeout bounds the wait for a new bot turn.
	DefaultReplyTimeout = 15 * time.Second
	// DefaultPollInterval is the transcript polling cadence while waiting for a reply.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultNetworkIdleTimeout bounds the wait for network idle after navigation.
	DefaultNetworkIdleTimeout = 15 * time.Second
	// DefaultCaseTimeout bounds a whole test case, all turns included.
	DefaultCaseTimeout = 3 * time.Minute
	// DefaultProviderTimeout bounds a single provider request attempt.
	DefaultProviderTimeout = 30 * time.Second
	// DefaultProviderMaxAttempts bounds retries of rate-limited provider calls.
	DefaultProviderMaxAttempts = 3

	// DefaultWindowWidth is the browser viewport width.
	DefaultWindowWidth = 1280
	// DefaultWindowHeight is the browser viewport height.
	DefaultWindowHeight = 720
)
