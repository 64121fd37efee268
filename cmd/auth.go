package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/mb/internal/apiclient"
	"github.com/marcus/mb/internal/config"
	"github.com/marcus/mb/internal/models"
	"github.com/marcus/mb/internal/output"
	"github.com/marcus/mb/internal/session"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage your Markbase token",
	GroupID: "system",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store and verify a Markbase token",
	Long: `Store a Markbase API token. Get one from ` + models.DashboardURL + `.

The token is read from --token, from stdin when piped, or from a prompt.
It is verified before being saved to the OS keyring (or auth.json when
no keyring is available).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		plain, _ := cmd.Flags().GetBool("plain")

		if token == "" {
			var err error
			token, err = promptToken(plain)
			if err != nil {
				return err
			}
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("token required")
		}

		client := apiclient.New(config.APIURL(), token)
		v, err := client.VerifyToken(cmd.Context())
		if err != nil {
			return report(err, "")
		}
		if !v.Valid {
			return report(session.ErrInvalidSession, "")
		}

		source, err := config.SaveToken(token)
		if err != nil {
			return report(fmt.Errorf("save token: %w", err), "")
		}

		output.Success("Logged in (%s plan). Token stored in %s.", plan(v.Subscribed), source)
		return nil
	},
}

// promptToken reads a token from stdin when piped, otherwise prompts.
func promptToken(plain bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read token: %w", err)
		}
		return line, nil
	}

	if plain {
		fmt.Print("Markbase token: ")
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return string(b), nil
	}

	var token string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Markbase token").
			Description("Find it on " + models.DashboardURL).
			EchoMode(huh.EchoModePassword).
			Value(&token).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("token required")
				}
				return nil
			}),
	)).WithTheme(huh.ThemeDracula()).Run()
	return token, err
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearToken(); err != nil {
			return report(fmt.Errorf("logout: %w", err), "")
		}
		fmt.Println("Logged out.")
		if os.Getenv("MB_TOKEN") != "" {
			output.Warning("MB_TOKEN is still set in the environment")
		}
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show token and session status",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, source, err := config.LoadToken()
		if err != nil {
			return report(err, "")
		}
		if token == "" {
			fmt.Println("Not logged in. Run `mb auth login`.")
			return nil
		}

		snap, err := verifyToken(cmd.Context(), token)
		fmt.Printf("Token:   %s (%s)\n", config.MaskToken(token), source)
		fmt.Printf("Server:  %s\n", config.APIURL())
		fmt.Printf("Status:  %s\n", snap.State)
		if err != nil {
			return report(err, "")
		}
		if !snap.Valid() {
			return report(session.ErrInvalidSession, "")
		}
		fmt.Printf("Plan:    %s\n", plan(snap.Subscribed))
		return nil
	},
}

// verifyToken runs a one-off session verification for token.
func verifyToken(ctx context.Context, token string) (session.Snapshot, error) {
	m := session.New(apiclient.New(config.APIURL(), token), token)
	defer m.Close()
	err := m.Verify(ctx)
	return m.Snapshot(), err
}

func plan(subscribed bool) string {
	if subscribed {
		return "premium"
	}
	return "free"
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)

	authLoginCmd.Flags().String("token", "", "Token to store (default: prompt or stdin)")
	authLoginCmd.Flags().Bool("plain", false, "Prompt without the interactive form")
}
