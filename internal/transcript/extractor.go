package transcript

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/sirupsen/logrus"
)

// Element is a located DOM node.
type Element interface {
	// Locate returns the descendants matching selector, in document order.
	Locate(ctx context.Context, selector string) ([]Element, error)
	// Text returns the rendered text content of the element.
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Page is the read-only part of the browser control surface used to read
// the transcript.
type Page interface {
	// Locate returns the elements matching selector, in document order.
	Locate(ctx context.Context, selector string) ([]Element, error)
	// WaitForSelector blocks until selector matches at least one element or
	// the timeout expires.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
}

// Options configures an Extractor.
type Options struct {
	ContainerSelector string
	RowSelector       string
	RoleAttribute     string
	TextSelector      string
	Match             config.MatchPolicy
	UserTokens        []string
	BotTokens         []string
	// WaitWindow bounds the wait for the messages container.
	WaitWindow time.Duration
}

// OptionsFromSettings derives extractor options from the harness settings.
func OptionsFromSettings(cfg *config.Settings) Options {
	return Options{
		ContainerSelector: cfg.Selectors.MessagesContainer,
		RowSelector:       cfg.Selectors.MessageRow,
		RoleAttribute:     cfg.Selectors.MessageRoleAttribute,
		TextSelector:      cfg.Selectors.MessageText,
		Match:             cfg.SelectorMatch,
		UserTokens:        cfg.RoleTokens.User,
		BotTokens:         cfg.RoleTokens.Bot,
		WaitWindow:        cfg.Browser.WidgetTimeout,
	}
}

// Extractor reads chat turns from a page.
type Extractor struct {
	opts  Options
	roles RoleClassifier
	log   logrus.FieldLogger
}

// NewExtractor creates an extractor for the given options.
func NewExtractor(log logrus.FieldLogger, opts Options) *Extractor {
	if opts.Match == "" {
		opts.Match = config.MatchFirst
	}

	return &Extractor{
		opts:  opts,
		roles: NewRoleClassifier(opts.UserTokens, opts.BotTokens),
		log:   log.WithField("component", "transcript_extractor"),
	}
}

// Turns returns the transcript as a lazy sequence. Every range over the
// sequence queries the page again, so it always reflects the current DOM.
// Rows whose normalized text is empty are skipped. The first error ends the
// sequence.
func (e *Extractor) Turns(ctx context.Context, page Page) iter.Seq2[ChatTurn, error] {
	return func(yield func(ChatTurn, error) bool) {
		rows, err := e.rows(ctx, page)
		if err != nil {
			yield(ChatTurn{}, err)
			return
		}

		order := 0

		for _, row := range rows {
			turn, err := e.readRow(ctx, row)
			if err != nil {
				yield(ChatTurn{}, err)
				return
			}

			if turn.Text == "" {
				continue
			}

			turn.Order = order
			order++

			if !yield(turn, nil) {
				return
			}
		}
	}
}

// Extract collects the full transcript.
func (e *Extractor) Extract(ctx context.Context, page Page) ([]ChatTurn, error) {
	var turns []ChatTurn

	for turn, err := range e.Turns(ctx, page) {
		if err != nil {
			return nil, err
		}

		turns = append(turns, turn)
	}

	e.log.WithField("turns", len(turns)).Debug("extracted transcript")

	return turns, nil
}

// rows resolves the message rows under the configured container(s).
func (e *Extractor) rows(ctx context.Context, page Page) ([]Element, error) {
	if e.opts.ContainerSelector == "" {
		rows, err := page.Locate(ctx, e.opts.RowSelector)
		if err != nil {
			return nil, fmt.Errorf("locating message rows: %w", err)
		}

		return rows, nil
	}

	if err := page.WaitForSelector(ctx, e.opts.ContainerSelector, e.opts.WaitWindow); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, &ElementNotFoundError{
			Name:     "messages_container",
			Selector: e.opts.ContainerSelector,
			Waited:   e.opts.WaitWindow,
			Err:      err,
		}
	}

	containers, err := page.Locate(ctx, e.opts.ContainerSelector)
	if err != nil {
		return nil, fmt.Errorf("locating messages container: %w", err)
	}

	if len(containers) == 0 {
		return nil, &ElementNotFoundError{
			Name:     "messages_container",
			Selector: e.opts.ContainerSelector,
			Waited:   e.opts.WaitWindow,
		}
	}

	if len(containers) > 1 {
		e.log.WithFields(logrus.Fields{
			"selector": e.opts.ContainerSelector,
			"matches":  len(containers),
			"policy":   e.opts.Match,
		}).Debug("messages container selector is ambiguous")
	}

	if e.opts.Match == config.MatchFirst {
		containers = containers[:1]
	}

	var rows []Element

	for _, container := range containers {
		found, err := container.Locate(ctx, e.opts.RowSelector)
		if err != nil {
			return nil, fmt.Errorf("locating message rows: %w", err)
		}

		rows = append(rows, found...)
	}

	return rows, nil
}

func (e *Extractor) readRow(ctx context.Context, row Element) (ChatTurn, error) {
	value, ok, err := row.Attribute(ctx, e.opts.RoleAttribute)
	if err != nil {
		return ChatTurn{}, fmt.Errorf("reading role attribute %q: %w", e.opts.RoleAttribute, err)
	}

	role := RoleUnknown
	if ok {
		role = e.roles.Classify(value)
	}

	text, err := e.rowText(ctx, row)
	if err != nil {
		return ChatTurn{}, err
	}

	return ChatTurn{Role: role, Text: text}, nil
}

func (e *Extractor) rowText(ctx context.Context, row Element) (string, error) {
	if e.opts.TextSelector == "" {
		return readText(ctx, row)
	}

	nodes, err := row.Locate(ctx, e.opts.TextSelector)
	if err != nil {
		return "", fmt.Errorf("locating message text: %w", err)
	}

	if len(nodes) == 0 {
		return readText(ctx, row)
	}

	if e.opts.Match == config.MatchFirst {
		nodes = nodes[:1]
	}

	parts := make([]string, 0, len(nodes))

	for _, node := range nodes {
		text, err := readText(ctx, node)
		if err != nil {
			return "", err
		}

		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func readText(ctx context.Context, el Element) (string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("reading message text: %w", err)
	}

	return Normalize(text), nil
}
