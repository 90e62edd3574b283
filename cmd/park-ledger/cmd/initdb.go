package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/source"
)

var withSources bool

// initDBCmd represents the init-db command.
var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the ledger tables",
	Long: `Create the ledger tables in the configured database.

The operational tables (events, registrations, payroll, sponsorships)
belong to their own modules. Pass --with-sources to create them too,
for development databases.

Example:
  park-ledger init-db
  park-ledger init-db --with-sources`,
	RunE: runInitDB,
}

func init() {
	initDBCmd.Flags().BoolVar(&withSources, "with-sources", false, "also create the operational source tables")
}

func runInitDB(cmd *cobra.Command, args []string) error {
	rt, err := openApp()
	if err != nil {
		return err
	}
	defer rt.conn.Close()

	if withSources {
		if err := source.EnsureSchema(cmd.Context(), rt.conn); err != nil {
			return err
		}
	}

	slog.Info("Database initialized", "path", rt.conn.GetPath(), "with_sources", withSources)
	fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s\n", rt.conn.GetPath())
	return nil
}
