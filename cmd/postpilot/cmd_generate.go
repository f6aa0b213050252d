package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"postpilot/cmd/postpilot/ui"
	"postpilot/internal/compose"
	"postpilot/internal/history"
	"postpilot/internal/metrics"
	"postpilot/internal/readability"
	"postpilot/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	genTopic   string
	genContext string
	genTone    string
	genFormat  string
	genEmoji   string
	genKind    string
	genRefine  string
	genImage   bool
	genSave    bool
	genRaw     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a LinkedIn post",
	Long: `Generates a post from a topic and/or prompt and prints it with its readability
grade. --kind hook or hashtags asks for opening hooks or hashtags instead of a full
post; --refine rewrites the prompt text as a draft in the given style.

Examples:
  postpilot generate --topic "Remote work" "what we learned after two years"
  postpilot generate --kind hook --topic "AI agents"
  postpilot generate --refine shorter "Our quarterly update..."`,
	RunE: runGenerate,
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "List trending business and tech topics",
	RunE:  runTrends,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genTopic, "topic", "", "Topic of the post")
	f.StringVar(&genContext, "context", "", "Extra context, e.g. from 'postpilot context'")
	f.StringVar(&genTone, "tone", "", "Tone (default from config)")
	f.StringVar(&genFormat, "format", "", "text, bullet or carousel (default from config)")
	f.StringVar(&genEmoji, "emoji", "", "Emoji density 0-3 (default from config)")
	f.StringVar(&genKind, "kind", string(compose.KindFull), "full, hook or hashtags")
	f.StringVar(&genRefine, "refine", "", "Rewrite the prompt text as a draft, e.g. shorter or \"more witty\"")
	f.BoolVar(&genImage, "image", false, "Also generate an image")
	f.BoolVar(&genSave, "save", false, "Save the post to the database")
	f.BoolVar(&genRaw, "raw", false, "Print plain text without styling")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	m := metrics.New()
	composer := newComposer(ctx, cfg, m)

	typed := joinArgs(args)
	req := compose.Request{
		Topic:   genTopic,
		Prompt:  typed,
		Context: genContext,
		Settings: compose.Settings{
			Tone:         genTone,
			Format:       genFormat,
			EmojiDensity: genEmoji,
		},
	}
	label := history.Label(req.Topic, req.Prompt)
	if genRefine != "" {
		prompt, err := compose.RefinePrompt(typed, genRefine)
		if err != nil {
			return err
		}
		req.Prompt = prompt
	} else {
		req.Prompt = compose.UserPrompt(compose.Kind(genKind), typed, genTopic)
	}

	post, err := composer.Compose(ctx, req)
	if err != nil {
		return err
	}
	score := readability.Evaluate(post)

	var imageURL string
	if genImage {
		imageURL, err = newImageClient(cfg, m).Generate(ctx, post)
		if err != nil {
			logger.Warn("image generation failed", zap.Error(err))
		}
	}

	if err := recordGeneration(ctx, post, label, store.NewPost{Topic: genTopic, Prompt: typed, ImageURL: imageURL}); err != nil {
		logger.Warn("failed to record generation", zap.Error(err))
	}

	if genRaw {
		fmt.Println(post)
		return nil
	}
	printPost(post, score, imageURL)
	return nil
}

// recordGeneration adds the post to history and, with --save, to the database.
func recordGeneration(ctx context.Context, post, label string, meta store.NewPost) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hist, closeHistory, err := openHistory(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeHistory() //nolint:errcheck

	if err := hist.Add(ctx, history.NewEntry(post, label, time.Now())); err != nil {
		return err
	}
	if !genSave {
		return nil
	}
	meta.Content = post
	saved, err := db.SavePost(ctx, meta)
	if err != nil {
		return err
	}
	fmt.Printf("Saved as post #%d\n", saved.ID)
	return nil
}

func printPost(post string, score readability.Score, imageURL string) {
	styles := ui.DefaultStyles()
	body := post
	if r, err := ui.NewRenderer(styles.Theme, 80); err == nil {
		if out, err := r.Render(post); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	fmt.Println(styles.Card.Render(body))
	fmt.Printf("%s %s\n", styles.Muted.Render("Readability:"), styles.Grade(score.String(), score.Good()))
	if imageURL != "" {
		fmt.Printf("%s %s\n", styles.Muted.Render("Image:"), imageURL)
	}
}

func runTrends(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	topics, err := newTrendsClient(cfg, nil).Fetch(ctx)
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()
	for i, t := range topics {
		fmt.Printf("%s %s\n", styles.Muted.Render(fmt.Sprintf("%2d.", i+1)), t)
	}
	return nil
}
