package injector

import (
	"strings"

	"postpilot/internal/dom"

	"go.uber.org/zap"
)

// Probes are the page markers used to find the compose surface. Every list is ordered
// from most to least specific; the first hit wins.
type Probes struct {
	// Editor selectors, tried one at a time.
	Editor []string
	// TriggerClasses are stable class markers for the "start a post" control. They are
	// queried together so the earliest node in document order wins.
	TriggerClasses []string
	// TriggerAria are aria-label substring selectors, queried together.
	TriggerAria []string
	// TriggerCandidates selects the elements scanned by visible text.
	TriggerCandidates string
	// TriggerPhrases are lower-case phrases looked for in candidate text.
	TriggerPhrases []string

	// FeedItem selects feed posts for page context.
	FeedItem string
	// FeedLimit caps how many feed posts are read.
	FeedLimit int
	// MinContextLength is the length a feed post must exceed to count.
	MinContextLength int
}

// DefaultProbes returns the LinkedIn markers.
func DefaultProbes() Probes {
	return Probes{
		Editor: []string{
			".ql-editor",
			`div[contenteditable="true"][role="textbox"]`,
			`.editor-content[contenteditable="true"]`,
		},
		TriggerClasses: []string{
			".share-box-feed-entry__trigger",
			"button.artdeco-button--muted.inline-flex.align-items-center",
		},
		TriggerAria: []string{
			`button[aria-label*="Start a post"]`,
			`button[aria-label*="Create a post"]`,
		},
		TriggerCandidates: "button, span, div.artdeco-button, .share-box-feed-entry__trigger",
		TriggerPhrases:    []string{"start a post", "write a post"},
		FeedItem:          ".feed-shared-update-v2__description-wrapper",
		FeedLimit:         5,
		MinContextLength:  50,
	}
}

// Merge returns p with every non-empty field of override applied.
func (p Probes) Merge(override Probes) Probes {
	if len(override.Editor) > 0 {
		p.Editor = override.Editor
	}
	if len(override.TriggerClasses) > 0 {
		p.TriggerClasses = override.TriggerClasses
	}
	if len(override.TriggerAria) > 0 {
		p.TriggerAria = override.TriggerAria
	}
	if override.TriggerCandidates != "" {
		p.TriggerCandidates = override.TriggerCandidates
	}
	if len(override.TriggerPhrases) > 0 {
		p.TriggerPhrases = override.TriggerPhrases
	}
	if override.FeedItem != "" {
		p.FeedItem = override.FeedItem
	}
	if override.FeedLimit > 0 {
		p.FeedLimit = override.FeedLimit
	}
	if override.MinContextLength > 0 {
		p.MinContextLength = override.MinContextLength
	}
	return p
}

// Locator runs the probe chains against a document. A probe that fails is logged and
// treated as a miss.
type Locator struct {
	probes Probes
	logger *zap.Logger
}

// NewLocator creates a locator.
func NewLocator(probes Probes, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{probes: probes, logger: logger}
}

// FindEditor returns the compose surface, or nil if none is on the page.
func (l *Locator) FindEditor(doc dom.Document) dom.Element {
	for _, sel := range l.probes.Editor {
		if el := l.query(doc, sel); el != nil {
			return el
		}
	}
	return nil
}

// FindTrigger returns the control that opens the compose surface, or nil.
func (l *Locator) FindTrigger(doc dom.Document) dom.Element {
	if len(l.probes.TriggerClasses) > 0 {
		if el := l.query(doc, strings.Join(l.probes.TriggerClasses, ", ")); el != nil {
			return el
		}
	}
	if len(l.probes.TriggerAria) > 0 {
		if el := l.query(doc, strings.Join(l.probes.TriggerAria, ", ")); el != nil {
			return el
		}
	}
	return l.findByPhrase(doc)
}

func (l *Locator) findByPhrase(doc dom.Document) dom.Element {
	if l.probes.TriggerCandidates == "" || len(l.probes.TriggerPhrases) == 0 {
		return nil
	}
	candidates, err := doc.QueryAll(l.probes.TriggerCandidates)
	if err != nil {
		l.logger.Debug("trigger scan failed", zap.String("selector", l.probes.TriggerCandidates), zap.Error(err))
		return nil
	}
	for _, el := range candidates {
		text, err := el.Text()
		if err != nil {
			continue
		}
		text = strings.ToLower(text)
		for _, phrase := range l.probes.TriggerPhrases {
			if strings.Contains(text, strings.ToLower(phrase)) {
				return el
			}
		}
	}
	return nil
}

func (l *Locator) query(doc dom.Document, selector string) dom.Element {
	el, err := doc.Query(selector)
	if err != nil {
		l.logger.Debug("probe failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	return el
}
