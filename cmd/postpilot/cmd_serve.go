package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postpilot/internal/config"
	"postpilot/internal/logging"
	"postpilot/internal/metrics"
	"postpilot/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API for the compose UI",
	Long: `Starts the HTTP API: post generation, images, trends, saved posts, history,
and editor injection into the LinkedIn tab of the configured Chrome.

The config file is watched; changes to the compose defaults apply without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	m := metrics.New()
	composer := newComposer(ctx, cfg, m)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	hist, closeHistory, err := openHistory(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	mgr := newSessionManager(cfg)
	srv := server.New(server.Deps{
		Composer:    composer,
		Images:      newImageClient(cfg, m),
		Trends:      newTrendsClient(cfg, m),
		Posts:       db,
		History:     hist,
		Injector:    newInjector(cfg, m),
		Documents:   documentSource(mgr, cfg.Browser.TargetMatch),
		Sessions:    mgr,
		TargetMatch: cfg.Browser.TargetMatch,
		Metrics:     m,
		Logger:      logging.Get(logging.CategoryAPI),
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Boot("listening on http://%s", addr)
		fmt.Printf("postpilot API listening on http://%s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if _, err := os.Stat(configPath); err == nil {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(next *config.Config) {
				composer.SetDefaults(composeSettings(next))
				logging.Get(logging.CategoryBoot).Info("compose defaults reloaded",
					zap.String("tone", next.Compose.Tone),
					zap.String("format", next.Compose.Format),
					zap.String("emoji_density", next.Compose.EmojiDensity))
			}, func(err error) {
				logging.BootWarn("config reload rejected: %v", err)
			})
		})
	}

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	closeErr := closeAll(
		func() error { return mgr.Shutdown(shutdownCtx) },
		closeHistory,
		db.Close,
	)
	return errors.Join(runErr, closeErr)
}
