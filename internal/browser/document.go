package browser

import (
	"fmt"

	"postpilot/internal/dom"

	"github.com/go-rod/rod"
)

// PageDocument is a dom.Document over a live tab. Lookups never wait for elements to
// appear; callers that need to wait poll.
type PageDocument struct {
	page *rod.Page
}

// NewPageDocument wraps a rod page. The page's context bounds every call.
func NewPageDocument(page *rod.Page) *PageDocument {
	return &PageDocument{page: page}
}

// Query implements dom.Document.
func (d *PageDocument) Query(selector string) (dom.Element, error) {
	has, el, err := d.page.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &pageElement{el: el}, nil
}

// QueryAll implements dom.Document.
func (d *PageDocument) QueryAll(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{el: el})
	}
	return out, nil
}

// pageElement runs DOM operations as page script so the host framework sees the same
// events a user action would produce.
type pageElement struct {
	el *rod.Element
}

func (e *pageElement) Text() (string, error) {
	return e.el.Text()
}

func (e *pageElement) Click() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *pageElement) SetHTML(markup string) error {
	_, err := e.el.Eval(`(markup) => { this.innerHTML = markup }`, markup)
	return err
}

func (e *pageElement) Dispatch(event string) error {
	_, err := e.el.Eval(`(type) => this.dispatchEvent(new Event(type, { bubbles: true }))`, event)
	return err
}
