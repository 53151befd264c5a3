// Package cli provides the command-line interface for the dashboard.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"neo-dashboard/internal/broker"
	"neo-dashboard/internal/config"
	"neo-dashboard/internal/logging"
	"neo-dashboard/internal/master"
	"neo-dashboard/internal/positions"
	"neo-dashboard/internal/resolver"
	"neo-dashboard/internal/store"
	"neo-dashboard/internal/trading"
	"neo-dashboard/internal/watchlist"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-29"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Broker    broker.Broker
	Neo       *broker.NeoBroker
	Master    *master.Cache
	Resolver  *resolver.Resolver
	Watchlist *watchlist.Reconciler
	Positions *positions.Service
	Orders    *trading.OrderService
	Store     store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	neo := broker.NewNeoBroker(broker.NeoConfig{
		ConsumerKey:  cfg.Credentials.Neo.ConsumerKey,
		MobileNumber: cfg.Credentials.Neo.MobileNumber,
		UCC:          cfg.Credentials.Neo.UCC,
		MPIN:         cfg.Credentials.Neo.MPIN,
		TOTPSecret:   cfg.Credentials.Neo.TOTPSecret,
		StreamURL:    cfg.Stream.URL,
	})
	app.Neo = neo
	app.Broker = neo
	logger.Debug().Msg("Neo broker initialized")

	app.Master = master.NewCache(neo, logger)
	app.Resolver = resolver.New(app.Master, logger,
		resolver.WithDebounce(cfg.SearchDebounce()),
		resolver.WithLimit(cfg.Watchlist.SearchLimit))
	app.Watchlist = watchlist.New(neo, logger)
	app.Positions = positions.NewService(neo, logger)
	app.Orders = trading.NewOrderService(neo, app.Master, logger)

	dataStore, err := store.NewSQLiteStore(config.DefaultDBPath())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, watchlist will not persist")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "neodash",
		Short: "Neo Dashboard - Kotak Neo market watch and positions CLI",
		Long: `Neo Dashboard is a market watch and position tracker for the Kotak Neo API.

It maintains a persistent watchlist with live streaming quotes, resolves
symbols against the exchange scrip masters, and tracks intraday positions
with running P&L.

Use 'neodash help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/neo-dashboard)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	addAuthCommands(rootCmd, app)
	addMasterCommands(rootCmd, app)
	addSearchCommand(rootCmd, app)
	addQuoteCommand(rootCmd, app)
	addWatchCommands(rootCmd, app)
	addConfigCommands(rootCmd, app)
	addOrderCommands(rootCmd, app)
	addPositionCommands(rootCmd, app)
	addFundsCommand(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
				return
			}
			output.Printf("neodash %s (built %s)\n", Version, BuildDate)
		},
	}
}
