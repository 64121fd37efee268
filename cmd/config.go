package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marcus/mb/internal/config"
	"github.com/marcus/mb/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage mb configuration",
	GroupID: "system",
	Long: `Read and write ~/.config/markbase/config.json.

Environment variables (MB_API_URL, MB_WORKSPACE, MB_AUTO_SYNC,
MB_AUTO_SYNC_INTERVAL, ...) take priority over stored values.`,
}

// effective returns the value mb will actually use for key, after
// environment overrides and defaults.
func effective(key string) string {
	switch key {
	case "api_url":
		return config.APIURL()
	case "workspace":
		return config.Workspace()
	case "verify_debounce":
		return config.VerifyDebounce().String()
	case "auto_sync.enabled":
		return strconv.FormatBool(config.AutoSyncEnabled())
	case "auto_sync.on_start":
		return strconv.FormatBool(config.AutoSyncOnStart())
	case "auto_sync.interval":
		return config.AutoSyncInterval().String()
	}
	return ""
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		type row struct {
			Key       string `json:"key"`
			Stored    string `json:"stored"`
			Effective string `json:"effective"`
		}
		rows := make([]row, 0, len(config.Keys()))
		for _, k := range config.Keys() {
			stored, _ := cfg.Get(k)
			rows = append(rows, row{Key: k, Stored: stored, Effective: effective(k)})
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(rows)
		}
		for _, r := range rows {
			line := fmt.Sprintf("%-20s %s", r.Key, r.Effective)
			if r.Stored == "" {
				line += "  (default)"
			} else if r.Stored != r.Effective {
				line += fmt.Sprintf("  (stored: %s)", r.Stored)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if _, err := cfg.Get(args[0]); err != nil {
			return fmt.Errorf("%w (valid keys: %v)", err, config.Keys())
		}
		fmt.Println(effective(args[0]))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Example: `  mb config set auto_sync.enabled true
  mb config set auto_sync.interval 15m
  mb config set workspace ~/notes`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == "workspace" && value != "" {
			abs, err := filepath.Abs(value)
			if err != nil {
				return err
			}
			value = abs
		}
		if err := config.Update(func(c *config.Config) error { return c.Set(key, value) }); err != nil {
			return err
		}
		output.Success("%s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Update(func(c *config.Config) error { return c.Set(args[0], "") }); err != nil {
			return err
		}
		output.Success("%s unset", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configUnsetCmd, configPathCmd)
	configListCmd.Flags().Bool("json", false, "Output as JSON")
}
