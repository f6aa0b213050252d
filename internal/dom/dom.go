// Package dom defines the minimal document surface the injector needs from a page.
// Two implementations exist: a live Chrome tab (internal/browser) and Static, an
// in-memory tree parsed from HTML.
package dom

// Event names dispatched after content is written into an editor.
const (
	EventInput = "input"
	EventBlur  = "blur"
)

// Element is a transient handle to a node. Handles are only valid at the time they
// were resolved; the page may re-render and invalidate them.
type Element interface {
	// Text returns the rendered text of the element.
	Text() (string, error)
	// Click activates the element the way element.click() does.
	Click() error
	// SetHTML replaces the element's children with the given markup.
	SetHTML(markup string) error
	// Dispatch fires a bubbling event of the given type on the element.
	Dispatch(event string) error
}

// Document is a queryable page.
type Document interface {
	// Query returns the first element matching selector, or nil when none match.
	Query(selector string) (Element, error)
	// QueryAll returns every element matching selector in document order.
	QueryAll(selector string) ([]Element, error)
}
