// Package static implements the read-only page surface over a saved HTML
// document, for selector debugging and deterministic extraction.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"golang.org/x/net/html"
)

var errNoMatch = errors.New("selector matched nothing in snapshot")

// Page is a parsed HTML snapshot.
type Page struct {
	root *html.Node
}

var _ transcript.Page = (*Page)(nil)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Page, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	return &Page{root: doc}, nil
}

// Load reads and parses the HTML file at path.
func Load(path string) (*Page, error) {
	f, err := os.Open(path) //nolint:gosec // G304: snapshot path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Title returns the document title, if any.
func (p *Page) Title() string {
	if node := htmlquery.FindOne(p.root, "//title"); node != nil {
		return strings.TrimSpace(htmlquery.InnerText(node))
	}

	return ""
}

// Locate returns the elements matching selector in document order.
func (p *Page) Locate(_ context.Context, selector string) ([]transcript.Element, error) {
	return locate(p.root, selector)
}

// WaitForSelector succeeds immediately when selector matches; a snapshot
// never changes, so there is nothing to wait for.
func (p *Page) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	found, err := p.Locate(ctx, selector)
	if err != nil {
		return err
	}

	if len(found) == 0 {
		return fmt.Errorf("%w: %s", errNoMatch, selector)
	}

	return nil
}

// Visible reports whether selector matches an element that is not hidden
// by the hidden attribute or an inline display:none style.
func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	found, err := p.Locate(ctx, selector)
	if err != nil {
		return false, err
	}

	for _, el := range found {
		if !hidden(el.(*element).node) {
			return true, nil
		}
	}

	return false, nil
}

type element struct {
	node *html.Node
}

var _ transcript.Element = (*element)(nil)

func (e *element) Locate(_ context.Context, selector string) ([]transcript.Element, error) {
	return locate(e.node, selector)
}

func (e *element) Text(context.Context) (string, error) {
	return goquery.NewDocumentFromNode(e.node).Text(), nil
}

func (e *element) Attribute(_ context.Context, name string) (string, bool, error) {
	value, ok := goquery.NewDocumentFromNode(e.node).Attr(name)
	return value, ok, nil
}

func locate(root *html.Node, raw string) ([]transcript.Element, error) {
	sel := transcript.ParseSelector(raw)

	var nodes []*html.Node

	if sel.XPath {
		expr := sel.Expr
		if root.Type != html.DocumentNode && strings.HasPrefix(expr, "/") {
			// Scope absolute expressions to the element.
			expr = "." + expr
		}

		found, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", sel.Expr, err)
		}

		nodes = found
	} else {
		compiled, err := compileCSS(sel.Expr)
		if err != nil {
			return nil, err
		}

		nodes = goquery.NewDocumentFromNode(root).FindMatcher(compiled).Nodes
	}

	elements := make([]transcript.Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{node: node})
	}

	return elements, nil
}

func hidden(node *html.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}

		for _, attr := range n.Attr {
			switch strings.ToLower(attr.Key) {
			case "hidden":
				return true
			case "style":
				style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return true
				}
			}
		}
	}

	return false
}
