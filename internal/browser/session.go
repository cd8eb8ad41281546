package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/sirupsen/logrus"
)

const screenshotQuality = 90

// visibleJS reports whether any element matching the selector has a layout
// box and is not hidden by CSS. Placeholders: selector, isXPath.
const visibleJS = `(() => {
  const sel = %s;
  let nodes = [];
  if (%t) {
    const res = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (let i = 0; i < res.snapshotLength; i++) nodes.push(res.snapshotItem(i));
  } else {
    nodes = Array.from(document.querySelectorAll(sel));
  }
  return nodes.some(el => {
    if (!(el instanceof Element)) return false;
    const style = window.getComputedStyle(el);
    if (style.visibility === 'hidden' || style.display === 'none') return false;
    return el.getClientRects().length > 0;
  });
})()`

// visibleScript fills visibleJS for sel. The selector is embedded as a JSON
// string literal so quotes in it cannot break the script.
func visibleScript(sel transcript.Selector) (string, error) {
	quoted, err := json.Marshal(sel.Expr)
	if err != nil {
		return "", fmt.Errorf("encoding selector: %w", err)
	}

	return fmt.Sprintf(visibleJS, quoted, sel.XPath), nil
}

// scopeXPath rewrites expr to run under the node at the absolute path base.
// Expressions starting with "(" cannot be scoped and run against the document.
func scopeXPath(base, expr string) string {
	switch {
	case strings.HasPrefix(expr, "("):
		return expr
	case expr == ".":
		return base
	case strings.HasPrefix(expr, "./"):
		return base + expr[1:]
	case strings.HasPrefix(expr, "/"):
		return base + expr
	default:
		return base + "/" + expr
	}
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger

	idleMu sync.Mutex
	idle   chan struct{}

	recording atomic.Bool
	frameDir  atomic.Value
	frames    atomic.Int64
}

var _ Session = (*session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, log logrus.FieldLogger) *session {
	s := &session{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		idle:   make(chan struct{}),
	}

	chromedp.ListenTarget(ctx, s.onEvent)

	return s
}

func (s *session) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		if e.Name == "networkIdle" {
			s.markIdle()
		}
	case *page.EventScreencastFrame:
		s.onFrame(e)
	}
}

func (s *session) markIdle() {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()

	select {
	case <-s.idle:
	default:
		close(s.idle)
	}
}

func (s *session) resetIdle() {
	s.idleMu.Lock()
	s.idle = make(chan struct{})
	s.idleMu.Unlock()
}

// run executes actions on the tab, bounded by the caller's context.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc

		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return err
	}

	return nil
}

// queryOption selects every match, for element lookups.
func queryOption(sel transcript.Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}

	return chromedp.ByQueryAll
}

// actionOption selects the first match, for interactions.
func actionOption(sel transcript.Selector) chromedp.QueryOption {
	if sel.XPath {
		return chromedp.BySearch
	}

	return chromedp.ByQuery
}

func (s *session) Navigate(ctx context.Context, url string) error {
	s.resetIdle()

	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}

	return nil
}

func (s *session) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	s.idleMu.Lock()
	idle := s.idle
	s.idleMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w within %s", errNetworkIdleTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) Locate(ctx context.Context, selector string) ([]transcript.Element, error) {
	sel := transcript.ParseSelector(selector)

	var nodes []*cdp.Node

	if err := s.run(ctx, chromedp.Nodes(sel.Expr, &nodes, queryOption(sel), chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("locating %s: %w", selector, err)
	}

	return s.wrap(nodes), nil
}

func (s *session) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	sel := transcript.ParseSelector(selector)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.run(waitCtx, chromedp.WaitReady(sel.Expr, actionOption(sel))); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}

	return nil
}

func (s *session) Visible(ctx context.Context, selector string) (bool, error) {
	sel := transcript.ParseSelector(selector)

	script, err := visibleScript(sel)
	if err != nil {
		return false, err
	}

	var visible bool
	if err := s.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("checking visibility of %s: %w", selector, err)
	}

	return visible, nil
}

func (s *session) Click(ctx context.Context, selector string) error {
	sel := transcript.ParseSelector(selector)

	if err := s.run(ctx, chromedp.Click(sel.Expr, actionOption(sel), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}

	return nil
}

func (s *session) TypeText(ctx context.Context, selector, text string) error {
	sel := transcript.ParseSelector(selector)

	if err := s.run(ctx,
		chromedp.WaitVisible(sel.Expr, actionOption(sel)),
		chromedp.Focus(sel.Expr, actionOption(sel)),
		chromedp.SetValue(sel.Expr, "", actionOption(sel)),
		chromedp.SendKeys(sel.Expr, text, actionOption(sel)),
	); err != nil {
		return fmt.Errorf("typing into %s: %w", selector, err)
	}

	return nil
}

func (s *session) Submit(ctx context.Context, selector string) error {
	sel := transcript.ParseSelector(selector)

	if err := s.run(ctx, chromedp.SendKeys(sel.Expr, kb.Enter, actionOption(sel))); err != nil {
		return fmt.Errorf("submitting %s: %w", selector, err)
	}

	return nil
}

func (s *session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating screenshot directory: %w", err)
	}

	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}

	return nil
}

func (s *session) StartRecording(ctx context.Context, dir string) (func() (int, error), error) {
	if s.recording.Load() {
		return nil, errRecordingInProgress
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating video directory: %w", err)
	}

	s.frameDir.Store(dir)
	s.frames.Store(0)
	s.recording.Store(true)

	if err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(60).
			WithEveryNthFrame(2).
			Do(ctx)
	})); err != nil {
		s.recording.Store(false)
		return nil, fmt.Errorf("starting screencast: %w", err)
	}

	s.log.WithField("dir", dir).Debug("screencast started")

	stop := func() (int, error) {
		s.recording.Store(false)

		// The tab may already be gone; stopping uses its own short deadline.
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.run(stopCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.StopScreencast().Do(ctx)
		}))

		frames := int(s.frames.Load())
		s.log.WithField("frames", frames).Debug("screencast stopped")

		if err != nil {
			return frames, fmt.Errorf("stopping screencast: %w", err)
		}

		return frames, nil
	}

	return stop, nil
}

func (s *session) onFrame(ev *page.EventScreencastFrame) {
	sessionID := ev.SessionID

	// Frames must be acknowledged or Chrome stops sending them. Listeners
	// must not block, so the ack runs on its own goroutine.
	go func() {
		_ = chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return page.ScreencastFrameAck(sessionID).Do(ctx)
		}))
	}()

	if !s.recording.Load() {
		return
	}

	dir, _ := s.frameDir.Load().(string)
	if dir == "" {
		return
	}

	data, err := base64.StdEncoding.DecodeString(ev.Data)
	if err != nil {
		s.log.WithError(err).Debug("dropping undecodable screencast frame")
		return
	}

	n := s.frames.Add(1)
	name := filepath.Join(dir, fmt.Sprintf("frame_%05d.jpg", n))

	if err := os.WriteFile(name, data, 0o600); err != nil {
		s.log.WithError(err).Debug("failed to write screencast frame")
	}
}

func (s *session) Close() error {
	s.cancel()
	return nil
}

func (s *session) wrap(nodes []*cdp.Node) []transcript.Element {
	elements := make([]transcript.Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{session: s, node: node})
	}

	return elements
}

type element struct {
	session *session
	node    *cdp.Node
}

var _ transcript.Element = (*element)(nil)

func (e *element) Locate(ctx context.Context, selector string) ([]transcript.Element, error) {
	sel := transcript.ParseSelector(selector)

	var nodes []*cdp.Node

	if sel.XPath {
		expr := scopeXPath(e.node.FullXPath(), sel.Expr)

		if err := e.session.run(ctx, chromedp.Nodes(expr, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
			return nil, fmt.Errorf("locating %s: %w", selector, err)
		}

		return e.session.wrap(nodes), nil
	}

	if err := e.session.run(ctx, chromedp.Nodes(sel.Expr, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("locating %s: %w", selector, err)
	}

	return e.session.wrap(nodes), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	// innerText keeps line breaks from <br> and skips script content;
	// chromedp.Text would block on hidden nodes.
	if err := e.session.run(ctx, chromedp.JavascriptAttribute([]cdp.NodeID{e.node.NodeID}, "innerText", &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}

	return text, nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)

	if err := e.session.run(ctx, chromedp.AttributeValue([]cdp.NodeID{e.node.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, fmt.Errorf("reading attribute %s: %w", name, err)
	}

	return value, ok, nil
}
