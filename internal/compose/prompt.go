// Package compose builds LinkedIn post prompts and runs them against a text model.
package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Formats.
const (
	FormatText     = "text"
	FormatBullet   = "bullet"
	FormatCarousel = "carousel"
)

// Kinds of generation the compose UI offers.
type Kind string

const (
	KindFull     Kind = "full"
	KindHook     Kind = "hook"
	KindHashtags Kind = "hashtags"
)

// ErrNothingToRefine is returned when a refine action has no draft to work on.
var ErrNothingToRefine = errors.New("nothing to refine")

var emojiInstructions = map[string]string{
	"0": "Do strictly NOT use any emojis.",
	"1": "Use very few emojis (max 1-2).",
	"2": "Use a balanced amount of emojis to break up text.",
	"3": "Use emojis heavily / frequently for visual impact.",
}

// EmojiLabels names the density levels for display.
var EmojiLabels = []string{"None", "Minimal", "Balanced", "Heavy"}

// Settings are the generation knobs.
type Settings struct {
	Tone         string `json:"tone" mapstructure:"tone"`
	Format       string `json:"format" mapstructure:"format"`
	EmojiDensity string `json:"emojiDensity" mapstructure:"emojiDensity"`
}

// DefaultSettings returns professional, plain-text, balanced emoji.
func DefaultSettings() Settings {
	return Settings{Tone: "professional", Format: FormatText, EmojiDensity: "2"}
}

// Or fills empty fields of s from fallback.
func (s Settings) Or(fallback Settings) Settings {
	if s.Tone == "" {
		s.Tone = fallback.Tone
	}
	if s.Format == "" {
		s.Format = fallback.Format
	}
	if s.EmojiDensity == "" {
		s.EmojiDensity = fallback.EmojiDensity
	}
	return s
}

// EmojiInstruction returns the model instruction for a density level. Unknown levels
// yield an empty instruction.
func EmojiInstruction(density string) string {
	return emojiInstructions[density]
}

// Request is one generation request.
type Request struct {
	Topic    string   `json:"topic"`
	Prompt   string   `json:"prompt"`
	Context  string   `json:"context"`
	Settings Settings `json:"config"`
}

// BuildPrompt renders the full generation prompt. Settings are expected to be resolved.
func BuildPrompt(req Request) string {
	topic := req.Topic
	if topic == "" {
		topic = "latest trends"
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = "professional update"
	}
	s := req.Settings

	var live string
	if req.Context != "" {
		live = fmt.Sprintf("LinkedIn Live Context: %s (Bridge this with the user prompt if relevant)", req.Context)
	}

	body := "Use short, punchy paragraphs."
	if s.Format == FormatBullet {
		body = "Use distinct bullet points for the main content."
	}
	var slides string
	if s.Format == FormatCarousel {
		slides = `Format the output as clear "Slide 1:", "Slide 2:" sections.`
	}

	var sb strings.Builder
	sb.WriteString("Task: Generate a high-impact LinkedIn post.\n")
	fmt.Fprintf(&sb, "Topic: %s\n", topic)
	fmt.Fprintf(&sb, "User Prompt: %s\n\n", prompt)
	fmt.Fprintf(&sb, "%s\n\n", live)
	sb.WriteString("Configuration:\n")
	fmt.Fprintf(&sb, "- Tone: %s\n", s.Tone)
	fmt.Fprintf(&sb, "- Format: %s\n", s.Format)
	fmt.Fprintf(&sb, "- Emojis: %s\n\n", EmojiInstruction(s.EmojiDensity))
	sb.WriteString("Guidelines:\n")
	fmt.Fprintf(&sb, "- Start with a strong hook relevant to the %s tone.\n", s.Tone)
	fmt.Fprintf(&sb, "- %s\n", body)
	if slides != "" {
		fmt.Fprintf(&sb, "- %s\n", slides)
	}
	sb.WriteString("- Include 3-5 relevant hashtags.\n")
	sb.WriteString("- Keep it under 1300 characters.\n\n")
	sb.WriteString("Format: Plain text only.")
	return sb.String()
}

// UserPrompt turns what the user typed into the prompt sent for a kind. The subject of
// hook and hashtag requests is the typed prompt, or the topic when nothing was typed.
func UserPrompt(kind Kind, prompt, topic string) string {
	subject := prompt
	if subject == "" {
		subject = topic
	}
	switch kind {
	case KindHook:
		return "Generate 3 viral opening hooks for a LinkedIn post about: " + subject
	case KindHashtags:
		return "Generate a set of high-reach, niche-specific hashtags for: " + subject
	default:
		return prompt
	}
}

// RefinePrompt asks the model to rewrite draft in the style named by action, for
// example "shorter" or "more witty".
func RefinePrompt(draft, action string) (string, error) {
	if strings.TrimSpace(draft) == "" {
		return "", ErrNothingToRefine
	}
	return fmt.Sprintf("Original context: %s. \nTask: Re-write this to be %s. Keep the core message but align with the requested style via Refine Action.", draft, action), nil
}
