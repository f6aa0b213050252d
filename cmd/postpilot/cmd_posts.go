package main

import (
	"context"
	"fmt"
	"strings"

	"postpilot/cmd/postpilot/ui"
	"postpilot/internal/store"

	"github.com/spf13/cobra"
)

var postsLimit int

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List saved posts, newest first",
	RunE:  runPosts,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the recent generation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the last generated posts",
	RunE:  runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the generation history",
	RunE:  runHistoryClear,
}

func init() {
	postsCmd.Flags().IntVarP(&postsLimit, "limit", "n", store.RecentLimit, "How many posts to show")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func runPosts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	posts, err := db.RecentPosts(ctx, postsLimit)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Println("No saved posts.")
		return nil
	}

	styles := ui.DefaultStyles()
	for _, p := range posts {
		header := fmt.Sprintf("#%d %s", p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04"))
		if p.Topic != "" {
			header += " · " + p.Topic
		}
		fmt.Println(styles.Title.Render(header))
		fmt.Println(styles.Card.Render(strings.TrimSpace(p.Content)))
		if p.ImageURL != nil {
			fmt.Printf("%s %s\n", styles.Muted.Render("Image:"), *p.ImageURL)
		}
	}
	return nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

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

	entries, err := hist.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No history yet.")
		return nil
	}
	styles := ui.DefaultStyles()
	for _, e := range entries {
		fmt.Printf("%s %s\n", styles.Muted.Render(e.Date.Local().Format("Jan 2 15:04")), styles.Title.Render(e.Title))
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

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

	if err := hist.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("History cleared.")
	return nil
}
