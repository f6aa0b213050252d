// Package history keeps the last few generated posts for quick reuse.
package history

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Limit is how many entries are kept.
const Limit = 10

const titleLength = 30

// Entry is one generated post.
type Entry struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Text  string    `json:"text"`
	Date  time.Time `json:"date"`
}

// Store holds entries newest first and never more than Limit of them.
type Store interface {
	Add(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
}

// NewEntry builds an entry for text. label names it, usually the topic or prompt.
func NewEntry(text, label string, now time.Time) Entry {
	return Entry{
		ID:    uuid.NewString(),
		Title: Title(label),
		Text:  text,
		Date:  now,
	}
}

// Title is the first 30 characters of label followed by an ellipsis. The ellipsis is
// added even to short labels.
func Title(label string) string {
	if utf8.RuneCountInString(label) > titleLength {
		label = string([]rune(label)[:titleLength])
	}
	return label + "..."
}

// Label picks the history label for a generation, falling back from topic to prompt.
func Label(topic, prompt string) string {
	switch {
	case topic != "":
		return topic
	case prompt != "":
		return prompt
	default:
		return "Generated Post"
	}
}
