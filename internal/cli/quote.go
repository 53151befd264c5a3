package cli

import (
	"github.com/spf13/cobra"

	"neo-dashboard/internal/models"
	"neo-dashboard/internal/quotes"
)

// addQuoteCommand adds the ad-hoc quote command.
func addQuoteCommand(rootCmd *cobra.Command, app *App) {
	var segment string

	cmd := &cobra.Command{
		Use:   "quote <token> [token...]",
		Short: "Fetch quotes for instrument tokens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			seg := app.Config.DefaultSegment()
			if segment != "" {
				seg = models.ExchangeSegment(segment)
			}

			refs := make([]models.InstrumentRef, 0, len(args))
			for _, token := range args {
				refs = append(refs, models.InstrumentRef{Token: token, Segment: seg})
			}

			raw, err := app.Broker.FetchQuotes(cmd.Context(), refs)
			if err != nil {
				return err
			}
			rows := quotes.Normalize(raw)

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Warning("No quotes returned")
				return nil
			}
			output.Bold("%-10s %-20s %10s %18s", "TOKEN", "SYMBOL", "LTP", "CHANGE")
			for _, q := range rows {
				ltp, change := "-", "-"
				if q.LastPrice != nil {
					ltp = FormatPrice(*q.LastPrice)
				}
				if q.Change != nil && q.PercentChange != nil {
					change = FormatChange(*q.Change, *q.PercentChange)
				}
				output.Printf("%-10s %-20s %10s %18s\n", q.Token, q.Symbol, ltp, change)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&segment, "segment", "", "exchange segment (default from config)")
	rootCmd.AddCommand(cmd)
}
