package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drivesync/auth"
	"drivesync/config"
	"drivesync/ingestion"
	"drivesync/logging"
	"drivesync/metrics"
	"drivesync/storage"
	"drivesync/syncer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const metricsShutdownTimeout = 5 * time.Second

var (
	syncOnce      bool
	syncInterval  time.Duration
	syncSchedule  string
	archiveFolder string
	metricsAddr   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the Drive folder into the output folder, repeatedly",
	Long: `Run sync cycles forever: list the Drive folder, download new or changed
files into LOCAL_FOLDER, move them into OUTPUT_FOLDER, and upload the log
file to LOG_DRIVE_FOLDER_ID (or DRIVE_FOLDER_ID).

Examples:
  drivesync sync
  drivesync sync --once
  drivesync sync --interval 5m
  drivesync sync --schedule "*/15 * * * *"`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "Run a single sync cycle and exit")
	syncCmd.Flags().DurationVar(&syncInterval, "interval", config.DefaultInterval, "Delay between cycles (env SYNC_INTERVAL)")
	syncCmd.Flags().StringVar(&syncSchedule, "schedule", "", "Cron expression, overrides --interval (env SYNC_SCHEDULE)")
	syncCmd.Flags().StringVar(&archiveFolder, "archive-folder", "", "Drive folder that synced files are moved to (env ARCHIVE_FOLDER_ID)")
	syncCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (env METRICS_ADDR)")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func stopMetricsServer(server shutdowner, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down metrics server", logging.Err(err))
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = syncInterval
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Schedule = syncSchedule
	}
	if cmd.Flags().Changed("archive-folder") {
		cfg.ArchiveFolderID = archiveFolder
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	schedule, err := syncer.NewSchedule(cfg.Interval, cfg.Schedule)
	if err != nil {
		return err
	}

	logger, closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticator, err := auth.NewServiceAccountAuthenticator(auth.Config{
		CredentialsPath: cfg.CredentialsPath,
		Scopes:          []string{drive.DriveScope},
	})
	if err != nil {
		return fmt.Errorf("failed to instantiate authenticator: %w", err)
	}

	client, err := authenticator.GetHTTPClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	db := storage.NewSQLiteDB(cfg.DBPath)
	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, registry)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
		defer stopMetricsServer(server, logger)
	}

	s := syncer.New(
		ingestion.NewDriveStore(service, logger),
		syncer.Options{
			FolderID:        cfg.DriveFolderID,
			LogFolderID:     cfg.LogDriveFolderID,
			ArchiveFolderID: cfg.ArchiveFolderID,
			LocalFolder:     cfg.LocalFolder,
			OutputFolder:    cfg.OutputFolder,
			LogFile:         cfg.LogFile,
		},
		logger,
		syncer.WithRecorder(db),
		syncer.WithMetrics(m),
	)

	logger.Info("drivesync starting",
		slog.String("service_account", authenticator.Email()),
		slog.String("folder_id", cfg.DriveFolderID),
		slog.String("local_folder", cfg.LocalFolder),
		slog.String("output_folder", cfg.OutputFolder))

	if syncOnce {
		_, err := s.RunCycle(ctx)
		return err
	}

	return syncer.NewScheduler(schedule, func(ctx context.Context) error {
		_, err := s.RunCycle(ctx)
		return err
	}, logger).Run(ctx)
}
