package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name    string
		verbose bool
		format  string
		debug   bool
		wantErr bool
	}{
		{name: "default text", format: "text"},
		{name: "empty format", format: ""},
		{name: "verbose json", verbose: true, format: "json", debug: true},
		{name: "unknown format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := setupLogging(tt.verbose, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("setupLogging: %v", err)
			}
			ctx := context.Background()
			if got := slog.Default().Enabled(ctx, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if !slog.Default().Enabled(ctx, slog.LevelWarn) {
				t.Error("warn should always be enabled")
			}
		})
	}
}

func TestNameWithAliases(t *testing.T) {
	c := &cobra.Command{Use: "project", Aliases: []string{"p"}}
	if got := nameWithAliases(c); got != "project, p" {
		t.Errorf("got %q", got)
	}
	c = &cobra.Command{Use: "sync"}
	if got := nameWithAliases(c); got != "sync" {
		t.Errorf("got %q", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"auth", "login"},
		{"auth", "status"},
		{"project", "create"},
		{"project", "list"},
		{"project", "show"},
		{"project", "delete"},
		{"sync"},
		{"watch"},
		{"history"},
		{"config", "set"},
		{"version"},
	} {
		c, _, err := rootCmd.Find(path)
		if err != nil || c == rootCmd {
			t.Errorf("command %v not registered", path)
		}
	}
}
