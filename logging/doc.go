// Package logging configures the structured logger used by drivesync.
//
// Records are written with log/slog's text handler to stderr and to a
// rotating log file. The active log file is what each sync cycle uploads
// back to Drive, so every record must be a single line.
//
// Attribute helpers keep key names consistent across packages:
//
//	logger.Info("file processed",
//	    logging.Path("reports/q1.csv"),
//	    logging.Status(models.StatusMoved))
package logging
