package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"postpilot/cmd/postpilot/ui"
	"postpilot/internal/browser"
	"postpilot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// BROWSER COMMANDS
// =============================================================================

var errNoBrowser = errors.New("no browser running; start one with 'postpilot browser launch'")

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage the Chrome instance postpilot injects into",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch Chrome and keep it running",
	Long: `Launches (or connects to) Chrome and writes its DevTools URL to
.postpilot/browser/control.txt so other commands reuse it. Log in to LinkedIn in
the launched window, then run "postpilot serve".`,
	RunE: browserLaunch,
}

var browserSessionCmd = &cobra.Command{
	Use:   "session [url]",
	Short: "Open a new tab and track it",
	Args:  cobra.ExactArgs(1),
	RunE:  browserSession,
}

var browserAttachCmd = &cobra.Command{
	Use:   "attach [target-id]",
	Short: "Track an open tab by its DevTools target id",
	Args:  cobra.ExactArgs(1),
	RunE:  browserAttach,
}

var browserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked tabs",
	RunE:  browserList,
}

func init() {
	browserCmd.AddCommand(browserLaunchCmd)
	browserCmd.AddCommand(browserSessionCmd)
	browserCmd.AddCommand(browserAttachCmd)
	browserCmd.AddCommand(browserListCmd)
}

func browserLaunch(cmd *cobra.Command, args []string) error {
	logger.Info("Launching browser")

	mgr := newSessionManager(cfg)
	if err := mgr.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start session manager: %w", err)
	}

	control := controlFile()
	if err := os.MkdirAll(filepath.Dir(control), 0o755); err == nil {
		if err := os.WriteFile(control, []byte(mgr.ControlURL()), 0o644); err != nil {
			logging.BootWarn("failed to write browser control file: %v", err)
		}
	}

	fmt.Printf("Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Printf("Session store: %s\n", cfg.Browser.SessionStore)
	fmt.Println("Press Ctrl+C to shutdown")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := os.Remove(control); err != nil && !os.IsNotExist(err) {
		logging.BootWarn("failed to remove browser control file: %v", err)
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		logging.BootWarn("failed to shutdown browser manager: %v", err)
	}
	return nil
}

// runningManager connects to the browser started by "browser launch".
func runningManager(ctx context.Context) (*browser.SessionManager, error) {
	if browserConfig(cfg).DebuggerURL == "" {
		return nil, errNoBrowser
	}
	mgr := newSessionManager(cfg)
	if err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return mgr, nil
}

func printSession(s *browser.Session) {
	fmt.Printf("Session: %s\n", s.ID)
	fmt.Printf("Target ID: %s\n", s.TargetID)
	fmt.Printf("URL: %s\n", s.URL)
	fmt.Printf("\nUse 'postpilot inject --session %s' to write a post into it\n", s.ID)
}

func browserSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url := args[0]
	logger.Info("Creating browser session", zap.String("url", url))

	// No Shutdown: the new tab has to stay open for later commands.
	mgr, err := runningManager(ctx)
	if err != nil {
		return err
	}

	session, err := mgr.CreateSession(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	printSession(session)
	return nil
}

func browserAttach(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	mgr, err := runningManager(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	session, err := mgr.Attach(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to attach: %w", err)
	}
	printSession(session)
	return nil
}

func browserList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	mgr, err := runningManager(ctx)
	if errors.Is(err, errNoBrowser) {
		fmt.Println("No browser running. Start one with 'postpilot browser launch'.")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	// Pick up the target tab so it shows even if nothing tracked it yet.
	if _, err := mgr.AttachByURL(ctx, cfg.Browser.TargetMatch); err != nil {
		logger.Debug("no target tab open", zap.Error(err))
	}

	sessions := mgr.List()
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	styles := ui.DefaultStyles()
	for _, s := range sessions {
		fmt.Printf("%s %s\n", styles.Badge.Render(s.Status), styles.Title.Render(s.ID))
		fmt.Printf("  %s %s\n", styles.Muted.Render(s.TargetID), s.URL)
		if s.Title != "" {
			fmt.Printf("  %s\n", styles.Muted.Render(s.Title))
		}
	}
	return nil
}
