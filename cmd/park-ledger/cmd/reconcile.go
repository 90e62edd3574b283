package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/engine"
)

var domain string

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Post source records missing from the ledger",
	Long: `Replay the postable records of one source domain that have no ledger
entry yet.

Running it again is safe: entities already in the ledger are skipped.
Entities that fail are logged and listed in the report without aborting
the run. The command only fails when the ledger store is unreachable.

Domains: ` + strings.Join(engine.Domains, ", ") + `

Example:
  park-ledger reconcile --domain=events
  park-ledger reconcile --domain=payroll`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&domain, "domain", "", "source domain to reconcile (required)")
	reconcileCmd.MarkFlagRequired("domain")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	slog.Info("Starting reconciliation", "domain", domain)

	rt, err := openApp()
	if err != nil {
		return err
	}
	defer rt.conn.Close()

	report, err := rt.newEngine().Reconcile(cmd.Context(), domain)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	return report.Render(cmd.OutOrStdout())
}
