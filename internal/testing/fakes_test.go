package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/browser"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/provider"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/ethpandaops/chatbot-e2e/internal/validation"
	"github.com/sirupsen/logrus"
)

const (
	openWidgetSel = "#launcher"
	inputSel      = "#input"
	sendSel       = "#send"
	rowSel        = ".row"
	roleAttr      = "data-role"
)

var (
	errNotFound  = errors.New("no node matched")
	errStaleNode = errors.New("node with given id does not belong to the document")
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()

	cfg := config.Defaults()
	cfg.BaseURL = "https://widget.test/"
	cfg.ArtifactsDir = t.TempDir()
	cfg.Selectors = config.Selectors{
		OpenWidget:           openWidgetSel,
		InputArea:            inputSel,
		SendButton:           sendSel,
		MessageRow:           rowSel,
		MessageRoleAttribute: roleAttr,
	}
	cfg.Browser.RecordVideo = false
	cfg.Browser.ScreenshotOnFailure = true
	cfg.Browser.WidgetTimeout = 50 * time.Millisecond
	cfg.Browser.NetworkIdleTimeout = 10 * time.Millisecond
	cfg.Browser.ReplyTimeout = time.Second
	cfg.Browser.PollInterval = 10 * time.Millisecond
	cfg.Browser.CaseTimeout = 10 * time.Second

	return cfg
}

// reply is what the fake widget answers to one message. A streamed reply
// reveals one more chunk on every transcript read.
type reply struct {
	chunks []string
	delay  time.Duration
	stream bool
}

func say(text string) reply {
	return reply{chunks: []string{text}, delay: 20 * time.Millisecond}
}

// silence never answers.
var silence = reply{}

type pendingTurn struct {
	at    time.Time
	shown int
	reply
}

// fakeSession is a scripted chat widget.
type fakeSession struct {
	mu sync.Mutex

	launcher     bool
	inputVisible bool
	sendVisible  bool
	respond      func(input string) reply
	frames       int

	// staleReads makes the next transcript reads after a message fail on a
	// re-rendered row; brokenReads makes all of them fail.
	staleReads  int
	brokenReads bool

	opened      bool
	typed       string
	turns       []transcript.ChatTurn
	pending     []pendingTurn
	clicks      []string
	submits     int
	sent        []string
	screenshots []string
	closed      bool
}

var _ browser.Session = (*fakeSession)(nil)

func newFakeSession(respond func(input string) reply) *fakeSession {
	return &fakeSession{
		launcher:    true,
		sendVisible: true,
		respond:     respond,
		turns: []transcript.ChatTurn{
			{Role: transcript.RoleBot, Text: "Welcome to Sun RV!"},
		},
	}
}

func (s *fakeSession) Navigate(_ context.Context, _ string) error {
	return nil
}

func (s *fakeSession) WaitForNetworkIdle(_ context.Context, _ time.Duration) error {
	return nil
}

func (s *fakeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	s.mu.Lock()
	present := (selector == openWidgetSel && s.launcher) ||
		(selector == inputSel && (s.opened || s.inputVisible))
	s.mu.Unlock()

	if present {
		return nil
	}

	select {
	case <-time.After(timeout):
		return errNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSession) Visible(_ context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch selector {
	case inputSel:
		return s.opened || s.inputVisible, nil
	case sendSel:
		return s.sendVisible, nil
	default:
		return false, nil
	}
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clicks = append(s.clicks, selector)

	switch selector {
	case openWidgetSel:
		s.opened = true
	case sendSel:
		s.send()
	default:
		// Suggested-reply buttons fill the input with their label.
		s.typed = "option " + selector
	}

	return nil
}

func (s *fakeSession) TypeText(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typed = text

	return nil
}

func (s *fakeSession) Submit(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submits++
	s.send()

	return nil
}

// send must be called with mu held.
func (s *fakeSession) send() {
	if s.typed == "" {
		return
	}

	s.flush(time.Now())

	input := s.typed
	s.typed = ""
	s.sent = append(s.sent, input)
	s.turns = append(s.turns, transcript.ChatTurn{Role: transcript.RoleUser, Text: input})

	if r := s.respond(input); len(r.chunks) > 0 {
		p := pendingTurn{at: time.Now().Add(r.delay), reply: r}
		if !r.stream {
			p.shown = len(r.chunks)
		}

		s.pending = append(s.pending, p)
	}
}

// flush moves fully revealed replies into the transcript. mu must be held.
func (s *fakeSession) flush(now time.Time) {
	kept := s.pending[:0]

	for _, p := range s.pending {
		if !now.Before(p.at) && p.shown == len(p.chunks) {
			s.turns = append(s.turns, transcript.ChatTurn{Role: transcript.RoleBot, Text: strings.Join(p.chunks, " ")})
			continue
		}

		kept = append(kept, p)
	}

	s.pending = kept
}

func (s *fakeSession) Locate(_ context.Context, selector string) ([]transcript.Element, error) {
	if selector != rowSel {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.flush(now)

	rows := make([]transcript.Element, 0, len(s.turns)+len(s.pending))
	for _, turn := range s.turns {
		rows = append(rows, fakeRow{role: string(turn.Role), text: turn.Text})
	}

	for i := range s.pending {
		p := &s.pending[i]
		if now.Before(p.at) {
			continue
		}

		p.shown = min(len(p.chunks), p.shown+1)
		rows = append(rows, fakeRow{role: "bot", text: strings.Join(p.chunks[:p.shown], " ")})
	}

	if len(s.sent) > 0 && (s.brokenReads || s.staleReads > 0) {
		if s.staleReads > 0 {
			s.staleReads--
		}

		rows = append(rows, fakeRow{role: "bot", err: errStaleNode})
	}

	return rows, nil
}

func (s *fakeSession) Screenshot(_ context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		return err
	}

	s.mu.Lock()
	s.screenshots = append(s.screenshots, path)
	s.mu.Unlock()

	return nil
}

func (s *fakeSession) StartRecording(_ context.Context, dir string) (func() (int, error), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	for i := 0; i < s.frames; i++ {
		name := filepath.Join(dir, fmt.Sprintf("frame_%05d.jpg", i+1))
		if err := os.WriteFile(name, []byte("jpg"), 0o600); err != nil {
			return nil, err
		}
	}

	return func() (int, error) { return s.frames, nil }, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return nil
}

type fakeRow struct {
	role string
	text string
	err  error
}

func (r fakeRow) Locate(_ context.Context, _ string) ([]transcript.Element, error) {
	return nil, nil
}

func (r fakeRow) Text(_ context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}

	return r.text, nil
}

func (r fakeRow) Attribute(_ context.Context, name string) (string, bool, error) {
	if name != roleAttr {
		return "", false, nil
	}

	return r.role, true, nil
}

// fakeBrowser hands out sessions from newSession.
type fakeBrowser struct {
	mu         sync.Mutex
	newSession func() (*fakeSession, error)
	sessions   []*fakeSession
}

func (b *fakeBrowser) Start(_ context.Context) error { return nil }

func (b *fakeBrowser) Stop() error { return nil }

func (b *fakeBrowser) NewSession(_ context.Context) (browser.Session, error) {
	s, err := b.newSession()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()

	return s, nil
}

// tableEmbedder returns fixed vectors for known texts and an orthogonal-ish
// fallback for everything else.
type tableEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}

	out := make([][]float64, len(texts))

	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
			continue
		}

		// Deterministic fallback spread over the remaining dimensions.
		v := make([]float64, 8)
		for j, r := range text {
			v[3+(j+int(r))%5] += 1
		}

		out[i] = v
	}

	return out, nil
}

func (e *tableEmbedder) Name() string  { return "fake" }
func (e *tableEmbedder) Model() string { return "fake-embedding" }

var greetingVectors = map[string][]float64{
	"Hi! How can I help you today?": {1, 0.2, 0, 0, 0, 0, 0, 0},
	"Hello! How can I assist you?":  {0.95, 0.3, 0.05, 0, 0, 0, 0, 0},
}

// fixedClassifier answers every request with the same classification.
type fixedClassifier struct {
	mu       sync.Mutex
	decision bool
	conf     float64
	err      error
	requests []provider.ClassifyRequest
}

func (c *fixedClassifier) Classify(_ context.Context, req provider.ClassifyRequest) (provider.Classification, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.err != nil {
		return provider.Classification{}, c.err
	}

	return provider.Classification{Decision: c.decision, Confidence: c.conf}, nil
}

func (c *fixedClassifier) Name() string  { return "fake" }
func (c *fixedClassifier) Model() string { return "fake-chat" }

type recordingSink struct {
	mu      sync.Mutex
	results []*CaseResult
}

func (s *recordingSink) Record(result *CaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)

	return nil
}

type harness struct {
	cfg        *config.Settings
	browser    *fakeBrowser
	embedder   *tableEmbedder
	classifier *fixedClassifier
	sink       *recordingSink
	metrics    metrics.Collector
}

func newHarness(t *testing.T, respond func(input string) reply) *harness {
	t.Helper()

	return &harness{
		cfg: testSettings(t),
		browser: &fakeBrowser{newSession: func() (*fakeSession, error) {
			return newFakeSession(respond), nil
		}},
		embedder:   &tableEmbedder{vectors: greetingVectors},
		classifier: &fixedClassifier{decision: true, conf: 0.9},
		sink:       &recordingSink{},
		metrics:    metrics.NewCollector(newTestLogger()),
	}
}

func (h *harness) orchestrator() *Orchestrator {
	log := newTestLogger()

	semantic := validation.NewSemanticValidator(log, h.embedder)
	intent := validation.NewIntentValidator(log, h.classifier)

	return NewOrchestrator(&OrchestratorConfig{
		Logger:           log,
		Settings:         h.cfg,
		Writer:           io.Discard,
		Browser:          h.browser,
		MetricsCollector: h.metrics,
		Semantic:         semantic,
		Intent:           intent,
		Refusal:          validation.NewRefusalValidator(intent, semantic, h.cfg.Thresholds.RefusalSimilarity),
		Sinks:            []ResultSink{h.sink},
	})
}

func (h *harness) lastSession() *fakeSession {
	h.browser.mu.Lock()
	defer h.browser.mu.Unlock()

	return h.browser.sessions[len(h.browser.sessions)-1]
}

func almostOne(v float64) bool {
	return math.Abs(v-1) < 1e-9
}
