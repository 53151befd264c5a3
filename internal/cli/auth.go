package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"neo-dashboard/pkg/utils"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newLoginCmd(app))
	rootCmd.AddCommand(newLogoutCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newLoginCmd(app *App) *cobra.Command {
	var totpCode string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Kotak Neo",
		Long: `Log in to the Kotak Neo API using TOTP two-factor authentication.

With a totp_secret configured in credentials.toml the one-time code is
generated automatically; otherwise pass the code from your authenticator
app with --totp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			var err error
			if totpCode != "" {
				err = app.Neo.LoginWithCode(ctx, totpCode)
			} else {
				err = app.Neo.Login(ctx)
			}
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{"authenticated": true})
			}
			output.Success("✓ Logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&totpCode, "totp", "", "one-time code from the authenticator app")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Neo.Logout(cmd.Context()); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"authenticated": false})
			}
			output.Success("✓ Logged out")
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			authenticated := app.Neo.IsAuthenticated()
			market := utils.GetMarketStatus()

			if output.IsJSON() {
				output.JSON(map[string]any{
					"authenticated": authenticated,
					"market":        string(market),
				})
				return
			}
			if authenticated {
				output.Success("Session active")
			} else {
				output.Warning("Not logged in, run 'neodash login'")
			}
			switch market {
			case utils.MarketOpen:
				output.Success("Market open")
			case utils.MarketPreOpen:
				output.Info("Market pre-open")
			default:
				output.Printf("Market closed\n")
			}
		},
	}
}
