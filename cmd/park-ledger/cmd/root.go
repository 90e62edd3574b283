// Package cmd provides CLI commands for park-ledger.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/config"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/engine"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/pathutil"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/rules"
)

var (
	cfgFile  string
	debug    bool
	logLevel = new(slog.LevelVar)
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "park-ledger",
	Short: "Post park operations into the income and expense ledger",
	Long: `park-ledger turns operational facts from the park modules (payroll
periods closing, event registrations, sponsorship agreements) into income
and expense ledger entries without double-posting.

It supports:
- Serving the posting callbacks over HTTP
- Reconciling source records that never reached the ledger
- Displaying ledger statistics

Configuration is read from PARK_LEDGER_* environment variables and an
optional .env file. A relative PARK_LEDGER_RULES_PATH is resolved against
PARK_LEDGER_DATA_ROOT, not the working directory.

Example:
  park-ledger serve
  park-ledger reconcile --domain=events
  park-ledger stats`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logLevel.Set(slog.LevelDebug)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// app holds what every command opens.
type app struct {
	cfg   *config.Config
	conn  *db.Connection
	rules *rules.Rules
}

// openApp loads configuration, rules and the database.
// Callers must Close the connection.
func openApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	if err := cfg.Validate("storage.dataRoot"); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths := pathutil.New(pathutil.Config{
		DataRoot:     cfg.Storage.DataRoot,
		DatabasePath: cfg.Storage.DBPath,
		RulesPath:    cfg.RulesPath,
	})

	r, err := rules.Load(paths.GetRulesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if err := paths.EnsureDataRoot(); err != nil {
		return nil, err
	}

	dbPath := paths.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{cfg: cfg, conn: conn, rules: r}, nil
}

func (rt *app) newEngine() *engine.Engine {
	return engine.NewFromConnection(rt.conn, rt.rules, engine.Options{
		MaxAttempts:   rt.cfg.Posting.ConflictRetries,
		EstimateRatio: rt.cfg.Posting.EstimateRatio,
		Logger:        slog.Default(),
	})
}
