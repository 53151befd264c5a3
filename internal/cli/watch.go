package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/models"
	"neo-dashboard/internal/watchlist"
)

// addWatchCommands adds watchlist commands.
func addWatchCommands(rootCmd *cobra.Command, app *App) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}
	watchCmd.AddCommand(newWatchAddCmd(app))
	watchCmd.AddCommand(newWatchRemoveCmd(app))
	watchCmd.AddCommand(newWatchListCmd(app))
	watchCmd.AddCommand(newWatchLiveCmd(app))
	rootCmd.AddCommand(watchCmd)
}

// restoreWatchlist fills the reconciler from the persisted rows.
// Subscription failures are tolerated here; a later live session
// resubscribes the full set anyway.
func restoreWatchlist(ctx context.Context, app *App) error {
	if app.Store == nil {
		return nil
	}
	entries, err := app.Store.LoadWatchlist(ctx)
	if err != nil {
		return fmt.Errorf("loading saved watchlist: %w", err)
	}
	if err := app.Watchlist.Load(ctx, entries); err != nil && !apperrors.IsTransport(err) {
		return err
	}
	return nil
}

func persistWatchlist(ctx context.Context, app *App) {
	if app.Store == nil || !app.Config.Watchlist.AutoSave {
		return
	}
	if err := app.Store.SaveWatchlist(ctx, app.Watchlist.Snapshot()); err != nil {
		app.Logger.Warn().Err(err).Msg("failed to persist watchlist")
	}
}

func newWatchAddCmd(app *App) *cobra.Command {
	var token, segment string

	cmd := &cobra.Command{
		Use:   "add <symbol>",
		Short: "Add an instrument to the watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if token == "" {
				return fmt.Errorf("--token is required")
			}
			seg := app.Config.DefaultSegment()
			if segment != "" {
				seg = models.ExchangeSegment(segment)
			}

			if err := restoreWatchlist(ctx, app); err != nil {
				return err
			}

			entry := models.WatchlistEntry{Symbol: args[0], Token: token, Segment: seg}
			err := app.Watchlist.Add(ctx, entry)
			if errors.Is(err, apperrors.ErrDuplicateEntry) {
				output.Warning("%s is already on the watchlist", args[0])
				return nil
			}
			if err != nil && !apperrors.IsTransport(err) {
				return err
			}
			if apperrors.IsTransport(err) {
				output.Warning("Saved, but live subscription unavailable: %v", err)
			}

			persistWatchlist(ctx, app)

			if output.IsJSON() {
				return output.JSON(app.Watchlist.Snapshot())
			}
			output.Success("✓ Added %s (%s %s)", entry.Symbol, seg, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "instrument token (required)")
	cmd.Flags().StringVar(&segment, "segment", "", "exchange segment (default from config)")
	return cmd
}

func newWatchRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <row>",
		Short: "Remove the instrument at the given row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			row, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("row must be a number: %w", err)
			}

			if err := restoreWatchlist(ctx, app); err != nil {
				return err
			}

			err = app.Watchlist.Remove(ctx, row)
			if errors.Is(err, apperrors.ErrRowOutOfRange) {
				return fmt.Errorf("no watchlist row %d (have %d rows)", row, app.Watchlist.Len())
			}
			if err != nil && !apperrors.IsTransport(err) {
				return err
			}

			persistWatchlist(ctx, app)

			if output.IsJSON() {
				return output.JSON(app.Watchlist.Snapshot())
			}
			output.Success("✓ Removed row %d", row)
			return nil
		},
	}
}

func newWatchListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := restoreWatchlist(ctx, app); err != nil {
				return err
			}
			rows := app.Watchlist.Snapshot()

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Warning("Watchlist is empty, add instruments with 'neodash watch add'")
				return nil
			}
			output.Bold("%-4s %-20s %-8s %s", "ROW", "SYMBOL", "SEGMENT", "TOKEN")
			for i, row := range rows {
				output.Printf("%-4d %-20s %-8s %s\n", i, row.Symbol, row.Segment, row.Token)
			}
			return nil
		},
	}
}

func newWatchLiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Stream live quotes for the watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !app.Neo.IsAuthenticated() {
				return apperrors.ErrNotAuthenticated
			}
			if err := restoreWatchlist(ctx, app); err != nil {
				return err
			}
			if app.Watchlist.Len() == 0 {
				output.Warning("Watchlist is empty, nothing to stream")
				return nil
			}

			push := app.Neo.Push()
			push.OnQuote(func(q models.Quote) {
				dir, ok := app.Watchlist.ApplyUpdate(q)
				if !ok || q.LastPrice == nil {
					return
				}
				arrow := " "
				color := ColorReset
				switch dir {
				case watchlist.Up:
					arrow, color = "▲", ColorGreen
				case watchlist.Down:
					arrow, color = "▼", ColorRed
				}
				line := fmt.Sprintf("%-10s %s %10s", q.Token, arrow, FormatPrice(*q.LastPrice))
				if q.Change != nil && q.PercentChange != nil {
					line += "  " + FormatChange(*q.Change, *q.PercentChange)
				}
				output.Println(output.ColoredString(color, line))
			})
			push.OnError(func(err error) {
				output.Warning("stream: %v", err)
			})

			if err := app.Neo.Subscribe(ctx, app.Watchlist.Refs()); err != nil {
				return err
			}
			output.Info("Streaming %d instruments, Ctrl-C to stop", app.Watchlist.Len())

			<-ctx.Done()
			return push.Close()
		},
	}
}
