package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"postpilot/internal/metrics"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeModel) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func TestBuildPrompt_Full(t *testing.T) {
	got := BuildPrompt(Request{
		Topic:    "Remote work",
		Prompt:   "share lessons from a year of async teams",
		Context:  "Someone posted about meeting fatigue.",
		Settings: Settings{Tone: "witty", Format: FormatBullet, EmojiDensity: "0"},
	})

	want := `Task: Generate a high-impact LinkedIn post.
Topic: Remote work
User Prompt: share lessons from a year of async teams

LinkedIn Live Context: Someone posted about meeting fatigue. (Bridge this with the user prompt if relevant)

Configuration:
- Tone: witty
- Format: bullet
- Emojis: Do strictly NOT use any emojis.

Guidelines:
- Start with a strong hook relevant to the witty tone.
- Use distinct bullet points for the main content.
- Include 3-5 relevant hashtags.
- Keep it under 1300 characters.

Format: Plain text only.`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildPrompt mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPrompt_DefaultsAndCarousel(t *testing.T) {
	got := BuildPrompt(Request{Settings: Settings{Tone: "professional", Format: FormatCarousel, EmojiDensity: "3"}})

	assert.Contains(t, got, "Topic: latest trends\n")
	assert.Contains(t, got, "User Prompt: professional update\n")
	assert.NotContains(t, got, "LinkedIn Live Context")
	assert.Contains(t, got, "- Use short, punchy paragraphs.\n")
	assert.Contains(t, got, `- Format the output as clear "Slide 1:", "Slide 2:" sections.`)
	assert.Contains(t, got, "- Emojis: Use emojis heavily / frequently for visual impact.\n")
}

func TestSettings_Or(t *testing.T) {
	got := Settings{Format: FormatBullet}.Or(DefaultSettings())
	assert.Equal(t, Settings{Tone: "professional", Format: FormatBullet, EmojiDensity: "2"}, got)
}

func TestUserPrompt(t *testing.T) {
	assert.Equal(t, "Generate 3 viral opening hooks for a LinkedIn post about: hiring", UserPrompt(KindHook, "hiring", "AI"))
	assert.Equal(t, "Generate 3 viral opening hooks for a LinkedIn post about: AI", UserPrompt(KindHook, "", "AI"))
	assert.Equal(t, "Generate a set of high-reach, niche-specific hashtags for: AI", UserPrompt(KindHashtags, "", "AI"))
	assert.Equal(t, "hiring", UserPrompt(KindFull, "hiring", "AI"))
}

func TestRefinePrompt(t *testing.T) {
	p, err := RefinePrompt("We shipped v2.", "shorter")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "Original context: We shipped v2.. \nTask: Re-write this to be shorter."))

	_, err = RefinePrompt("  ", "shorter")
	assert.ErrorIs(t, err, ErrNothingToRefine)
}

func TestComposer_Compose(t *testing.T) {
	model := &fakeModel{reply: "  Big news!\n#launch  "}
	c := NewComposer(model, WithDefaults(Settings{Tone: "inspiring"}))

	post, err := c.Compose(context.Background(), Request{Topic: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, "Big news!\n#launch", post)
	assert.Contains(t, model.last(), "- Tone: inspiring\n")
	assert.Contains(t, model.last(), "- Format: text\n")
}

func TestComposer_SetDefaults(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	c := NewComposer(model)
	assert.Equal(t, DefaultSettings(), c.Defaults())

	c.SetDefaults(Settings{Tone: "casual", EmojiDensity: "1"})
	_, err := c.Compose(context.Background(), Request{})
	require.NoError(t, err)
	assert.Contains(t, model.last(), "- Tone: casual\n")
	assert.Contains(t, model.last(), "- Emojis: Use very few emojis (max 1-2).\n")

	// Request settings win over defaults.
	_, err = c.Compose(context.Background(), Request{Settings: Settings{Tone: "bold"}})
	require.NoError(t, err)
	assert.Contains(t, model.last(), "- Tone: bold\n")
}

func TestComposer_RateLimit(t *testing.T) {
	m := metrics.New()
	c := NewComposer(&fakeModel{err: errors.New("Error 429, Message: Resource has been exhausted")}, WithMetrics(m))

	_, err := c.Compose(context.Background(), Request{})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, strings.HasPrefix(err.Error(), "Rate limit exceeded. Please wait a minute and try again."))
}

func TestComposer_OtherError(t *testing.T) {
	c := NewComposer(&fakeModel{err: errors.New("connection reset")})

	_, err := c.Compose(context.Background(), Request{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestComposer_NoModel(t *testing.T) {
	_, err := NewComposer(nil).Compose(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewGenAIModel_RequiresKey(t *testing.T) {
	_, err := NewGenAIModel(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestComposer_Timeout(t *testing.T) {
	c := NewComposer(blockingModel{}, WithTimeout(10*time.Millisecond))
	_, err := c.Compose(context.Background(), Request{Topic: "slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
