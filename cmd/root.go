package cmd

import (
	"fmt"
	"os"

	"drivesync/config"

	"github.com/spf13/cobra"
)

var (
	envFile         string
	dbPath          string
	credentialsPath string
	logFile         string
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "drivesync",
	Short: "Google Drive folder sync pipeline",
	Long: `A CLI tool that periodically downloads files from a Google Drive folder,
moves them from a local staging folder into an output folder, and uploads
its log file back to Drive.

Configuration is read from the environment (CREDENTIALS_PATH, DRIVE_FOLDER_ID,
LOCAL_FOLDER, OUTPUT_FOLDER, ...), optionally seeded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(envFile, cmd.Flag("env-file").Changed)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath, "Path to the SQLite sync ledger (env SYNC_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Path to the service account key (env CREDENTIALS_PATH)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", config.DefaultLogFile, "Path to the rotating log file (env LOG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error (env LOG_LEVEL)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)
}

// loadConfig reads the environment and applies any root flags given on the
// command line on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	if cmd.Flag("db").Changed {
		cfg.DBPath = dbPath
	}
	if cmd.Flag("credentials").Changed {
		cfg.CredentialsPath = credentialsPath
	}
	if cmd.Flag("log-file").Changed {
		cfg.LogFile = logFile
	}
	if cmd.Flag("log-level").Changed {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
