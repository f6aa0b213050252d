package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Static is an in-memory document. It is safe for concurrent use: the poll loop reads
// it from its own goroutine while click hooks or tests mutate it.
type Static struct {
	mu        sync.Mutex
	root      *html.Node
	events    map[*html.Node][]string
	clicks    int
	writes    int
	onClick   func(doc *Static, el *StaticElement)
	selectors map[string]cascadia.Selector
}

// StaticElement is an Element backed by a node of a Static document.
type StaticElement struct {
	doc  *Static
	node *html.Node
}

// Parse builds a Static document from HTML.
func Parse(r io.Reader) (*Static, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Static{
		root:      root,
		events:    make(map[*html.Node][]string),
		selectors: make(map[string]cascadia.Selector),
	}, nil
}

// ParseString is Parse for an HTML string.
func ParseString(markup string) (*Static, error) {
	return Parse(strings.NewReader(markup))
}

// OnClick registers a hook run after any element of the document is clicked. The hook
// runs without the document lock held and may mutate the document.
func (d *Static) OnClick(fn func(doc *Static, el *StaticElement)) {
	d.mu.Lock()
	d.onClick = fn
	d.mu.Unlock()
}

// Query implements Document.
func (d *Static) Query(selector string) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	n := sel.MatchFirst(d.root)
	if n == nil {
		return nil, nil
	}
	return &StaticElement{doc: d, node: n}, nil
}

// QueryAll implements Document.
func (d *Static) QueryAll(selector string) ([]Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := sel.MatchAll(d.root)
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &StaticElement{doc: d, node: n})
	}
	return out, nil
}

// Append parses markup and appends it to the first element matching parent.
func (d *Static) Append(parent, markup string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel, err := d.compile(parent)
	if err != nil {
		return err
	}
	target := sel.MatchFirst(d.root)
	if target == nil {
		return fmt.Errorf("append: no element matches %q", parent)
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), target)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		target.AppendChild(n)
	}
	return nil
}

// Clicks returns how many element clicks the document has seen.
func (d *Static) Clicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks
}

// Writes returns how many SetHTML calls the document has seen.
func (d *Static) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Render writes the current document as HTML.
func (d *Static) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Static) compile(selector string) (cascadia.Selector, error) {
	if sel, ok := d.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	d.selectors[selector] = sel
	return sel, nil
}

// Text implements Element. Script and style contents are skipped.
func (e *StaticElement) Text() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var sb strings.Builder
	collectText(e.node, &sb)
	return sb.String(), nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// Click implements Element.
func (e *StaticElement) Click() error {
	e.doc.mu.Lock()
	e.doc.clicks++
	hook := e.doc.onClick
	e.doc.mu.Unlock()

	if hook != nil {
		hook(e.doc, e)
	}
	return nil
}

// SetHTML implements Element.
func (e *StaticElement) SetHTML(markup string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	e.doc.writes++
	return nil
}

// Dispatch implements Element. Events are recorded, not delivered.
func (e *StaticElement) Dispatch(event string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.events[e.node] = append(e.doc.events[e.node], event)
	return nil
}

// InnerHTML renders the element's children.
func (e *StaticElement) InnerHTML() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Events returns the event types dispatched on this element, in order.
func (e *StaticElement) Events() []string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return append([]string(nil), e.doc.events[e.node]...)
}

// Attr returns the value of an attribute on the element.
func (e *StaticElement) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}
