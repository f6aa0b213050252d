package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"postpilot/cmd/postpilot/ui"
	"postpilot/internal/dom"
	"postpilot/internal/injector"
	"postpilot/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	injectSession string
	injectMatch   string
	injectFile    string
	injectOut     string
)

var injectCmd = &cobra.Command{
	Use:   "inject [text]",
	Short: "Write a post into the LinkedIn compose editor",
	Long: `Writes text into the compose editor of the LinkedIn tab. When the editor is not
open, the "Start a post" control is clicked and the editor is awaited.

With --file the injection runs against a saved HTML page instead of Chrome, and
the resulting page is written to --out (stdout by default).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInject,
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the recent feed posts visible in the LinkedIn tab",
	RunE:  runContext,
}

func init() {
	for _, c := range []*cobra.Command{injectCmd, contextCmd} {
		c.Flags().StringVar(&injectSession, "session", "", "Tracked session id (default: first tab matching --match)")
		c.Flags().StringVar(&injectMatch, "match", "", "URL substring of the target tab (overrides browser.target_match)")
		c.Flags().StringVar(&injectFile, "file", "", "Use a saved HTML page instead of Chrome")
	}
	injectCmd.Flags().StringVarP(&injectOut, "out", "o", "", "Where to write the page after --file injection")
}

// openDocument returns the page to work on and a release func.
func openDocument(ctx context.Context) (dom.Document, func(), error) {
	if injectFile != "" {
		f, err := os.Open(injectFile)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		doc, err := dom.Parse(f)
		if err != nil {
			return nil, nil, err
		}
		return doc, func() {}, nil
	}

	match := cfg.Browser.TargetMatch
	if injectMatch != "" {
		match = injectMatch
	}
	mgr := newSessionManager(cfg)
	doc, err := documentSource(mgr, match)(ctx, injectSession)
	release := func() { _ = mgr.Shutdown(context.Background()) }
	if err != nil {
		release()
		return nil, nil, err
	}
	return doc, release, nil
}

func runInject(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	text := joinArgs(args)
	doc, release, err := openDocument(ctx)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer release()

	inj := newInjector(cfg, metrics.New())
	status := inj.Inject(ctx, doc, text)
	logger.Info("injection finished", zap.String("status", string(status)))

	styles := ui.DefaultStyles()
	if static, ok := doc.(*dom.Static); ok {
		if err := writePage(static); err != nil {
			return err
		}
	}
	if status != injector.StatusSuccess {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Could not find the LinkedIn editor. Open LinkedIn first!"))
		return errors.New("editor not found")
	}
	fmt.Fprintln(os.Stderr, styles.Success.Render("Post written to the editor."))
	return nil
}

func writePage(doc *dom.Static) error {
	var w io.Writer = os.Stdout
	if injectOut != "" {
		f, err := os.Create(injectOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return doc.Render(w)
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	doc, release, err := openDocument(ctx)
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer release()

	fmt.Println(newInjector(cfg, nil).PageContext(doc))
	return nil
}
