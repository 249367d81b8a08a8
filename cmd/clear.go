package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"drivesync/storage"

	"github.com/spf13/cobra"
)

var (
	clearForce bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all records from the sync ledger",
	Long:  "Permanently delete the sync history. Files in the output folder are not touched.",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if !clearForce {
		fmt.Fprint(out, "WARNING: Are you sure you want to clear the sync history? (yes/no): ")
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')

		if strings.ToLower(strings.TrimSpace(response)) != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db := storage.NewSQLiteDB(cfg.DBPath)
	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}

	fmt.Fprintln(out, "All sync records cleared.")
	return nil
}
