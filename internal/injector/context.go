package injector

import (
	"strings"
	"unicode/utf8"

	"postpilot/internal/dom"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	// ContextPlaceholder is returned when no feed post qualifies.
	ContextPlaceholder = "No recent feed activity found."
	contextSeparator   = "\n---\n"
)

// PageContext reads the first few feed posts on the page and joins the substantial
// ones. Short posts are noise. It never mutates the page.
func (i *Injector) PageContext(doc dom.Document) string {
	items, err := doc.QueryAll(i.probes.FeedItem)
	if err != nil {
		i.logger.Debug("feed scan failed", zap.String("selector", i.probes.FeedItem), zap.Error(err))
		return ContextPlaceholder
	}

	texts := lo.Map(lo.Slice(items, 0, i.probes.FeedLimit), func(el dom.Element, _ int) string {
		text, err := el.Text()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	})
	posts := lo.Filter(texts, func(text string, _ int) bool {
		return utf8.RuneCountInString(text) > i.probes.MinContextLength
	})

	if len(posts) == 0 {
		return ContextPlaceholder
	}
	return strings.Join(posts, contextSeparator)
}
