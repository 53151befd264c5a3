package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"neo-dashboard/internal/fields"
	"neo-dashboard/internal/models"
	"neo-dashboard/internal/resolver"
)

var (
	aliasScripSymbol = fields.Alias{"pTrdSymbol", "trading_symbol", "pSymbol"}
	aliasScripToken  = fields.Alias{"pSymbol", "instrument_token", "token"}
)

// addSearchCommand adds the symbol search command.
func addSearchCommand(rootCmd *cobra.Command, app *App) {
	var segment string
	var limit int
	var remote bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tradable symbols",
		Long: `Search the instrument master for symbols matching the query.

Symbols starting with the query rank above symbols merely containing it.
The segment's master is loaded on first use. With --remote the broker's
server-side scrip search is queried instead of the local master.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			query := strings.Join(args, " ")

			if len(strings.TrimSpace(query)) < resolver.MinQueryLength {
				output.Warning("Query too short, need at least %d characters", resolver.MinQueryLength)
				return nil
			}

			seg := app.Config.DefaultSegment()
			if segment != "" {
				seg = models.ExchangeSegment(segment)
			}

			if remote {
				return runRemoteSearch(cmd, app, output, seg, query)
			}

			results, err := app.Resolver.ResolveSync(cmd.Context(), seg, query)
			if err != nil {
				return err
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"segment": string(seg),
					"query":   query,
					"results": results,
				})
			}
			if len(results) == 0 {
				output.Warning("No matches for %q in %s", query, seg)
				return nil
			}
			output.Bold("%d matches in %s:", len(results), seg)
			for _, sym := range results {
				output.Printf("  %s\n", sym)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&segment, "segment", "", "exchange segment (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of results")
	cmd.Flags().BoolVar(&remote, "remote", false, "query the broker's scrip search instead of the local master")
	rootCmd.AddCommand(cmd)
}

func runRemoteSearch(cmd *cobra.Command, app *App, output *Output, seg models.ExchangeSegment, query string) error {
	rows, err := app.Broker.SearchInstruments(cmd.Context(), seg, query)
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.JSON(rows)
	}
	if len(rows) == 0 {
		output.Warning("No matches for %q in %s", query, seg)
		return nil
	}
	output.Bold("%-24s %s", "SYMBOL", "TOKEN")
	for _, row := range rows {
		output.Printf("%-24s %s\n", aliasScripSymbol.StringOr(row, "?"), aliasScripToken.StringOr(row, ""))
	}
	return nil
}
