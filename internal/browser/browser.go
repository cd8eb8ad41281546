// Package browser drives a Chrome instance through the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/sirupsen/logrus"
)

var (
	errNotStarted          = errors.New("browser not started")
	errNetworkIdleTimeout  = errors.New("network idle not reached")
	errRecordingInProgress = errors.New("recording already in progress")
)

// Session is one isolated browser context with a single tab.
type Session interface {
	transcript.Page

	Navigate(ctx context.Context, url string) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Visible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string) error
	Submit(ctx context.Context, selector string) error
	Screenshot(ctx context.Context, path string) error
	// StartRecording writes screencast frames into dir until the returned
	// stop function is called. stop returns the number of frames written.
	StartRecording(ctx context.Context, dir string) (stop func() (int, error), err error)
	Close() error
}

// Browser owns the Chrome process and hands out sessions.
type Browser interface {
	Start(ctx context.Context) error
	Stop() error
	NewSession(ctx context.Context) (Session, error)
}

// Config configures the Chrome process.
type Config struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// ConfigFromSettings derives the browser configuration from the settings.
func ConfigFromSettings(cfg *config.Settings) Config {
	return Config{
		Headless:     cfg.Browser.Headless,
		ExecPath:     cfg.Browser.ExecPath,
		UserAgent:    cfg.Browser.UserAgent,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
	}
}

type chrome struct {
	cfg Config
	log logrus.FieldLogger

	mu             sync.Mutex
	allocCancel    context.CancelFunc
	browserCtx     context.Context
	browserCancel  context.CancelFunc
	sessionCounter int
}

var _ Browser = (*chrome)(nil)

// NewBrowser creates a Chrome-backed browser. Start must be called before
// sessions are requested.
func NewBrowser(log logrus.FieldLogger, cfg Config) Browser {
	return &chrome{
		cfg: cfg,
		log: log.WithField("component", "browser"),
	}
}

func (c *chrome) Start(ctx context.Context) error {
	c.log.WithField("headless", c.cfg.Headless).Debug("starting browser")

	opts := append(chromedp.DefaultExecAllocatorOptions[:], //nolint:gocritic // copy of the defaults
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(c.cfg.WindowWidth, c.cfg.WindowHeight),
	)

	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}

	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	// The allocator outlives the start context; it is cancelled by Stop.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(c.log.Debugf))

	// First Run launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()

		return fmt.Errorf("launching chrome: %w", err)
	}

	c.mu.Lock()
	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	c.mu.Unlock()

	c.log.Info("browser started")

	return nil
}

func (c *chrome) Stop() error {
	c.log.Debug("stopping browser")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
	}

	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}

	c.browserCtx = nil

	return nil
}

// NewSession opens a tab in a fresh incognito browser context, so cookies
// and storage never leak between sessions.
func (c *chrome) NewSession(_ context.Context) (Session, error) {
	c.mu.Lock()
	browserCtx := c.browserCtx
	c.sessionCounter++
	id := c.sessionCounter
	c.mu.Unlock()

	if browserCtx == nil {
		return nil, errNotStarted
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())

	s := newSession(tabCtx, cancel, c.log.WithField("session", id))

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(c.cfg.WindowWidth), int64(c.cfg.WindowHeight))); err != nil {
		cancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	return s, nil
}
