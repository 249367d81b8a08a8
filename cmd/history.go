package cmd

import (
	"context"
	"fmt"
	"strings"

	"drivesync/storage"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show the sync history of files matching a name or path",
	Long: `Searches the sync ledger for files whose name or path contains the query.

Examples:
  drivesync history invoice
  drivesync history reports/2026
  drivesync history --limit 5 "q1.csv"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of results")
}

func runHistory(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
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

	records, err := db.SearchRecords(ctx, query, historyLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No sync records found for \"%s\"\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d record(s):\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(out, "[%d] %s\n", i+1, r.Name)
		fmt.Fprintf(out, "Path: %s\n", r.Path)
		fmt.Fprintf(out, "Status: %s\n", r.Status)
		fmt.Fprintf(out, "Synced: %s\n", r.SyncedAt.Local().Format("2006-01-02 15:04:05"))
		if r.DriveFileID != "" {
			fmt.Fprintf(out, "Drive ID: %s\n", r.DriveFileID)
		}
		if r.OutputPath != "" {
			fmt.Fprintf(out, "Output: %s\n", r.OutputPath)
		}
		if r.Error != "" {
			fmt.Fprintf(out, "Error: %s\n", r.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}
