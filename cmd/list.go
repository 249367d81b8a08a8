package cmd

import (
	"context"
	"fmt"

	"drivesync/storage"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sync records from the ledger",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 50, "Maximum number of records, 0 for all")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db := storage.NewSQLiteDB(cfg.DBPath)
	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	records, err := db.ListRecords(ctx, listLimit)
	if err != nil {
		return fmt.Errorf("failed to list sync records: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No sync records yet.")
		return nil
	}

	fmt.Fprintf(out, "Showing %d sync record(s):\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(out, "%d. %s  %-7s  %s (%d bytes)\n",
			i+1, r.SyncedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.Path, r.SizeBytes)
	}
	return nil
}
