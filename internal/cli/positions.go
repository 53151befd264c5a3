package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// addPositionCommands adds position commands.
func addPositionCommands(rootCmd *cobra.Command, app *App) {
	posCmd := &cobra.Command{
		Use:     "positions",
		Aliases: []string{"pos"},
		Short:   "Track and exit positions",
	}
	posCmd.AddCommand(newPositionsListCmd(app))
	posCmd.AddCommand(newPositionsExitCmd(app))
	posCmd.AddCommand(newPositionsCloseAllCmd(app))
	rootCmd.AddCommand(posCmd)
}

func newPositionsListCmd(app *App) *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show positions with live P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			views, err := app.Positions.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if openOnly {
				open := views[:0]
				for _, v := range views {
					if v.NetQuantity != 0 {
						open = append(open, v)
					}
				}
				views = open
			}

			if output.IsJSON() {
				return output.JSON(views)
			}
			if len(views) == 0 {
				output.Warning("No positions today")
				return nil
			}

			output.Bold("%-4s %-20s %-6s %-7s %8s %10s %10s %14s",
				"ROW", "SYMBOL", "PROD", "SIDE", "NET QTY", "AVG", "LTP", "P&L")
			var total float64
			for i, v := range views {
				total += v.PnL
				output.Printf("%-4d %-20s %-6s %-7s %8d %10s %10s %14s\n",
					i, v.Symbol, v.Product, v.Side(), v.NetQuantity,
					FormatPrice(v.AveragePrice), FormatPrice(v.LastTradedPrice),
					output.PnLString(v.PnL))
			}
			output.Bold("%s", strings.Repeat("-", 86))
			output.Printf("%66s %14s\n", "TOTAL", output.PnLString(total))
			return nil
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "show only open positions")
	return cmd
}

func newPositionsExitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "exit <row>",
		Short: "Exit one position with a market order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			row, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("row must be a number: %w", err)
			}

			views, err := app.Positions.Refresh(ctx)
			if err != nil {
				return err
			}
			if row < 0 || row >= len(views) {
				return fmt.Errorf("no position row %d (have %d rows)", row, len(views))
			}

			view := views[row]
			result, err := app.Positions.Exit(ctx, view)
			if err != nil {
				return err
			}
			if result == nil {
				output.Warning("%s is already flat", view.Symbol)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ Exit order placed for %s: %s", view.Symbol, result.OrderID)
			return nil
		},
	}
}

func newPositionsCloseAllCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "close-all",
		Short: "Exit every open position",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if !yes {
				return fmt.Errorf("close-all exits every open position, re-run with --yes to confirm")
			}

			views, err := app.Positions.Refresh(ctx)
			if err != nil {
				return err
			}

			summary := app.Positions.CloseAll(ctx, views)

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"succeeded": summary.Succeeded,
					"failed":    summary.Failed(),
				})
			}
			if summary.Failed() > 0 {
				output.Warning("Close-all finished: %s", summary)
				return nil
			}
			output.Success("✓ Close-all finished: %s", summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm exiting all positions")
	return cmd
}
