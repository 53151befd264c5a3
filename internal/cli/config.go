package cli

import (
	"github.com/spf13/cobra"

	"neo-dashboard/internal/config"
)

// addConfigCommands adds configuration management commands.
func addConfigCommands(rootCmd *cobra.Command, app *App) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd(app))
	rootCmd.AddCommand(configCmd)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create config and credentials templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if err := config.EnsureTemplates(dir); err != nil {
				return err
			}
			output.Success("✓ Templates ready in %s", dir)
			output.Info("Fill in credentials.toml before logging in")
			return nil
		},
	}
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			// Credentials stay out of the output.
			view := map[string]any{
				"trading":   cfg.Trading,
				"watchlist": cfg.Watchlist,
				"stream":    cfg.Stream,
				"ui":        cfg.UI,
			}
			if output.IsJSON() {
				return output.JSON(view)
			}

			output.Bold("Trading")
			output.Printf("  default_product: %s\n", cfg.Trading.DefaultProduct)
			output.Printf("  default_segment: %s\n", cfg.DefaultSegment())
			output.Bold("Watchlist")
			output.Printf("  search_debounce_ms: %d\n", cfg.Watchlist.SearchDebounceMS)
			output.Printf("  search_limit: %d\n", cfg.Watchlist.SearchLimit)
			output.Printf("  auto_save: %t\n", cfg.Watchlist.AutoSave)
			output.Bold("Stream")
			output.Printf("  url: %s\n", cfg.Stream.URL)
			output.Printf("  reconnect_attempts: %d\n", cfg.Stream.ReconnectAttempts)
			output.Bold("Credentials")
			output.Printf("  configured: %t\n", cfg.Credentials.Neo.ConsumerKey != "")
			return nil
		},
	}
}
