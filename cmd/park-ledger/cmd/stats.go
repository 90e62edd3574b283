package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/db"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/engine"
	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger statistics",
	Long: `Display statistics about the income and expense ledger.

Shows:
- Number of categories and entries per kind
- Entries posted automatically
- Total amount per kind
- Last reconciliation per domain

Example:
  park-ledger stats`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	rt, err := openApp()
	if err != nil {
		return err
	}
	defer rt.conn.Close()

	ctx := cmd.Context()
	stats, err := ledger.NewStore(rt.conn).Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Ledger Statistics ===")
	for _, ks := range stats {
		fmt.Fprintf(out, "%-8s categories: %-4d entries: %-6d automatic: %-6d total: %s\n",
			ks.Kind, ks.Categories, ks.Entries, ks.AutomaticCount, ks.Total.StringFixed(2))
	}

	metadata := db.NewMetadata(rt.conn)
	fmt.Fprintln(out)
	for _, name := range engine.Domains {
		lastRun, err := metadata.Get(ctx, engine.LastRunKey(name))
		if err != nil {
			return err
		}
		if lastRun == "" {
			lastRun = "(never)"
		}
		fmt.Fprintf(out, "Last reconcile %-13s %s\n", name+":", lastRun)
	}
	fmt.Fprintln(out)

	return nil
}
