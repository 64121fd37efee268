package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/mb/internal/config"
	"github.com/marcus/mb/internal/history"
	"github.com/marcus/mb/internal/output"
)

var historyCmd = &cobra.Command{
	Use:     "history [slug]",
	Aliases: []string{"log"},
	Short:   "Show recent sync, create and delete results",
	Args:    cobra.MaximumNArgs(1),
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}
		slug := ""
		if len(args) == 1 {
			slug = args[0]
		}

		dir, err := config.Dir()
		if err != nil {
			return err
		}
		store, err := history.Open(filepath.Join(dir, "history.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Tail(cmd.Context(), slug, limit)
		if err != nil {
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(historyJSON(entries))
		}
		if len(entries) == 0 {
			output.Info("No history yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Println(formatEntry(e))
		}
		return nil
	},
}

func formatEntry(e history.Entry) string {
	line := fmt.Sprintf("%s %-8s %-6s %-20s %6s",
		output.OutcomeMark(e.OK),
		output.FormatTimeAgo(e.Timestamp),
		e.Op,
		e.Slug,
		e.Duration.Round(time.Millisecond))
	if !e.OK && e.Message != "" {
		line += "  " + e.Message
	}
	return line
}

type historyEntryJSON struct {
	Op         string    `json:"op"`
	Slug       string    `json:"slug"`
	OK         bool      `json:"ok"`
	Kind       string    `json:"kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func historyJSON(entries []history.Entry) []historyEntryJSON {
	out := make([]historyEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryJSON{
			Op:         e.Op,
			Slug:       e.Slug,
			OK:         e.OK,
			Kind:       e.Kind,
			Message:    e.Message,
			DurationMS: e.Duration.Milliseconds(),
			Timestamp:  e.Timestamp,
		})
	}
	return out
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}
