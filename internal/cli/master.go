package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "neo-dashboard/internal/errors"
	"neo-dashboard/internal/master"
	"neo-dashboard/internal/models"
)

// addMasterCommands adds instrument master commands.
func addMasterCommands(rootCmd *cobra.Command, app *App) {
	masterCmd := &cobra.Command{
		Use:   "master",
		Short: "Manage the instrument master cache",
	}
	masterCmd.AddCommand(newMasterLoadCmd(app))
	masterCmd.AddCommand(newMasterStatusCmd(app))
	rootCmd.AddCommand(masterCmd)
}

func parseSegments(args []string) ([]models.ExchangeSegment, error) {
	if len(args) == 0 {
		return models.Segments(), nil
	}
	known := make(map[string]models.ExchangeSegment)
	for _, seg := range models.Segments() {
		known[string(seg)] = seg
	}
	segments := make([]models.ExchangeSegment, 0, len(args))
	for _, arg := range args {
		seg, ok := known[arg]
		if !ok {
			return nil, fmt.Errorf("unknown segment %q", arg)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func newMasterLoadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "load [segment...]",
		Short: "Load instrument masters (all segments by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			segments, err := parseSegments(args)
			if err != nil {
				return err
			}

			app.Master.OnStatus(func(seg models.ExchangeSegment, msg string) {
				if !output.IsJSON() {
					output.Info("%s", msg)
				}
			})

			// Kick off every segment, then wait; loads run concurrently.
			dones := make(map[models.ExchangeSegment]<-chan struct{}, len(segments))
			for _, seg := range segments {
				_, done := app.Master.EnsureLoaded(ctx, seg)
				dones[seg] = done
			}

			summary := &apperrors.BatchSummary{}
			for _, seg := range segments {
				select {
				case <-dones[seg]:
				case <-ctx.Done():
					return ctx.Err()
				}
				if app.Master.State(seg) == master.StateLoaded {
					summary.Add(nil)
				} else {
					summary.Add(fmt.Errorf("segment %s failed to load", seg))
				}
			}

			if app.Store != nil && summary.Failed() == 0 {
				if err := app.Store.SetLastSync("master", time.Now()); err != nil {
					app.Logger.Warn().Err(err).Msg("failed to record master sync time")
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"succeeded": summary.Succeeded,
					"failed":    summary.Failed(),
				})
			}
			if summary.Failed() > 0 {
				output.Warning("Master load finished: %s", summary)
				return nil
			}
			output.Success("✓ Master load finished: %s", summary)
			return nil
		},
	}
}

func newMasterStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-segment cache state",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)

			if output.IsJSON() {
				states := make(map[string]string)
				for _, seg := range models.Segments() {
					states[string(seg)] = app.Master.State(seg).String()
				}
				output.JSON(states)
				return
			}

			var lastSync time.Time
			if app.Store != nil {
				lastSync = app.Store.GetLastSync("master")
			}
			if !lastSync.IsZero() {
				output.Info("Last full load: %s", FormatTime(lastSync))
			}
			for _, seg := range models.Segments() {
				state := app.Master.State(seg)
				line := fmt.Sprintf("%-8s %s", seg, state)
				switch state {
				case master.StateLoaded:
					output.Success("%s (%d symbols)", line, len(app.Master.Symbols(seg)))
				case master.StateLoading:
					output.Warning("%s", line)
				default:
					output.Printf("%s\n", line)
				}
			}
		},
	}
}
