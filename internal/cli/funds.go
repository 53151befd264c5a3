package cli

import (
	"github.com/spf13/cobra"

	"neo-dashboard/internal/fields"
)

var (
	aliasFundsNet        = fields.Alias{"Net", "net"}
	aliasFundsMarginUsed = fields.Alias{"MarginUsed", "marginUsed", "utilized_margin"}
	aliasFundsCollateral = fields.Alias{"Collateral", "CollateralValue", "collateral"}
	aliasFundsCash       = fields.Alias{"CashMarginAvailable", "AvailableCash", "cash"}
)

// addFundsCommand adds the funds command.
func addFundsCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "funds",
		Short: "Show funds and margin limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			raw, err := app.Broker.FetchLimits(cmd.Context())
			if err != nil {
				return err
			}

			row := limitsRow(raw)
			summary := map[string]float64{
				"net":         aliasFundsNet.FloatOr(row, 0),
				"margin_used": aliasFundsMarginUsed.FloatOr(row, 0),
				"collateral":  aliasFundsCollateral.FloatOr(row, 0),
				"cash":        aliasFundsCash.FloatOr(row, 0),
			}

			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Bold("Funds")
			output.Printf("  Available cash:  %s\n", FormatIndianCurrency(summary["cash"]))
			output.Printf("  Collateral:      %s\n", FormatIndianCurrency(summary["collateral"]))
			output.Printf("  Margin used:     %s\n", FormatIndianCurrency(summary["margin_used"]))
			output.Printf("  Net available:   %s\n", FormatIndianCurrency(summary["net"]))
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}

// limitsRow digs the limit fields out of the response, which may be
// wrapped under "data" or arrive flat.
func limitsRow(raw any) map[string]any {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if data, ok := m["data"].(map[string]any); ok {
		return data
	}
	return m
}
