package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drivesync/ingestion"
	"drivesync/logging"
	"drivesync/metrics"
	"drivesync/models"
	"drivesync/mover"
)

const logUploadTimeout = time.Minute

// RemoteStore is the Drive surface a sync cycle needs.
type RemoteStore interface {
	ListFiles(ctx context.Context, folderID string) ([]models.RemoteFile, error)
	Download(ctx context.Context, fileID string, w io.Writer) error
	UploadLog(ctx context.Context, folderID, name string, content io.Reader) (string, error)
	Archive(ctx context.Context, fileID, fromFolderID, toFolderID string) error
}

// Recorder persists per-file outcomes.
type Recorder interface {
	SaveRecord(ctx context.Context, record *models.SyncRecord) error
}

type Options struct {
	FolderID        string
	LogFolderID     string
	ArchiveFolderID string
	LocalFolder     string
	OutputFolder    string
	// LogFile is uploaded at the end of every cycle. Remote files whose name
	// starts with its base name are never downloaded.
	LogFile string
}

type Option func(*Syncer)

func WithRecorder(r Recorder) Option {
	return func(s *Syncer) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// CycleReport summarises one sync cycle.
type CycleReport struct {
	Started     time.Time
	Finished    time.Time
	Listed      int
	Downloaded  int
	Skipped     int
	Moved       int
	Failed      int
	LogUploaded bool
}

type Syncer struct {
	store    RemoteStore
	mover    *mover.Mover
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
}

func New(store RemoteStore, opts Options, logger *slog.Logger, options ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LogFolderID == "" {
		opts.LogFolderID = opts.FolderID
	}

	s := &Syncer{
		store:  store,
		mover:  mover.New(opts.LocalFolder, opts.OutputFolder, logger),
		logger: logging.WithOperation(logger, "sync"),
		opts:   opts,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// outcome tracks a single file through download, move and archive.
type outcome struct {
	file       models.RemoteFile
	status     string
	outputPath string
	reason     string
	err        error
}

// RunCycle lists the watched folder, downloads new or changed files into
// staging, moves staging into the output folder, and uploads the log.
// Per-file failures are logged and do not stop the cycle; the returned
// error is set only when the folder listing or the staging walk failed.
func (s *Syncer) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{Started: time.Now()}
	s.logger.Info("starting sync cycle", slog.String("folder_id", s.opts.FolderID))

	var cycleErr error
	var processed []*outcome
	staged := map[string]*outcome{}

	files, err := s.store.ListFiles(ctx, s.opts.FolderID)
	if err != nil {
		s.logger.Error("failed to list drive files", logging.Err(err))
		cycleErr = fmt.Errorf("list drive folder %s: %w", s.opts.FolderID, err)
	}

	logName := ""
	if s.opts.LogFile != "" {
		logName = filepath.Base(s.opts.LogFile)
	}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		if logName != "" && strings.HasPrefix(file.Name, logName) {
			s.logger.Debug("skipping log file in drive", logging.Path(file.Path))
			continue
		}
		report.Listed++

		var o *outcome
		if _, dup := staged[file.Path]; dup {
			o = &outcome{file: file, status: models.StatusFailed, err: errors.New("another remote file maps to the same path")}
		} else {
			o = s.fetch(ctx, file)
			staged[file.Path] = o
		}
		if o.status == "" {
			report.Downloaded++
		}
		processed = append(processed, o)
	}

	results, err := s.mover.MoveAll()
	if err != nil {
		s.logger.Error("failed to move staged files", logging.Err(err))
		cycleErr = errors.Join(cycleErr, err)
	}
	for _, r := range results {
		o, ok := staged[r.RelPath]
		if !ok {
			// left in staging by an earlier cycle or placed there by hand
			o = &outcome{file: models.RemoteFile{Name: filepath.Base(r.Source), Path: r.RelPath}}
			staged[r.RelPath] = o
			processed = append(processed, o)
		}
		if o.status != "" {
			continue
		}
		if r.Err != nil {
			o.status, o.err = models.StatusFailed, fmt.Errorf("move: %w", r.Err)
			continue
		}
		o.status, o.outputPath = models.StatusMoved, r.Destination
	}

	for _, o := range processed {
		if o.status == "" {
			o.status, o.err = models.StatusFailed, errors.New("downloaded file missing from staging")
		}
		if o.status == models.StatusMoved {
			s.archive(ctx, o)
		}
		s.finish(ctx, o, report)
	}

	s.uploadLog(ctx, report)

	report.Finished = time.Now()
	duration := report.Finished.Sub(report.Started)
	s.metrics.RecordCycle(duration, cycleErr != nil || report.Failed > 0)
	s.logger.Info("sync cycle complete",
		slog.Int("listed", report.Listed),
		slog.Int("moved", report.Moved),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Duration(logging.KeyDuration, duration))

	return report, cycleErr
}

// fetch downloads file into staging unless the output folder already holds
// identical content. A returned outcome with an empty status is waiting
// for the move step.
func (s *Syncer) fetch(ctx context.Context, file models.RemoteFile) *outcome {
	o := &outcome{file: file}

	rel := filepath.FromSlash(file.Path)
	if !filepath.IsLocal(rel) {
		o.status, o.err = models.StatusFailed, fmt.Errorf("unsafe path %q", file.Path)
		return o
	}

	if ingestion.IsWorkspaceDocument(file.MimeType) {
		o.status, o.reason = models.StatusSkipped, "google workspace documents cannot be downloaded"
		return o
	}

	existing := filepath.Join(s.opts.OutputFolder, rel)
	if file.MD5Checksum != "" {
		if sum, err := mover.FileMD5(existing); err == nil && sum == file.MD5Checksum {
			o.status, o.reason, o.outputPath = models.StatusSkipped, "already up-to-date", existing
			return o
		}
	}

	s.logger.Debug("downloading file", logging.Path(file.Path), logging.FileID(file.ID))
	if err := s.download(ctx, file, filepath.Join(s.opts.LocalFolder, rel)); err != nil {
		o.status, o.err = models.StatusFailed, err
	}
	return o
}

// download writes to a partial file next to dst and renames it into place,
// so an interrupted transfer is never moved to the output folder.
func (s *Syncer) download(ctx context.Context, file models.RemoteFile, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), mover.PartialPrefix+"*")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.store.Download(ctx, file.ID, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("finalise staging file: %w", err)
	}
	return nil
}

func (s *Syncer) archive(ctx context.Context, o *outcome) {
	if s.opts.ArchiveFolderID == "" || o.file.ID == "" {
		return
	}
	from := o.file.ParentID
	if from == "" {
		from = s.opts.FolderID
	}
	if err := s.store.Archive(ctx, o.file.ID, from, s.opts.ArchiveFolderID); err != nil {
		s.logger.Warn("failed to archive remote file", logging.Path(o.file.Path), logging.Err(err))
		o.reason = "archive failed: " + err.Error()
	}
}

// finish writes the single log entry for a file and records it.
func (s *Syncer) finish(ctx context.Context, o *outcome, report *CycleReport) {
	attrs := []any{
		logging.Path(o.file.Path),
		logging.Status(o.status),
	}
	if o.file.ID != "" {
		attrs = append(attrs, logging.FileID(o.file.ID))
	}
	if o.reason != "" {
		attrs = append(attrs, slog.String("reason", o.reason))
	}

	switch o.status {
	case models.StatusMoved:
		report.Moved++
		s.logger.Info("file processed", attrs...)
	case models.StatusSkipped:
		report.Skipped++
		s.logger.Info("file processed", attrs...)
	default:
		report.Failed++
		s.logger.Error("file processed", append(attrs, logging.Err(o.err))...)
	}
	s.metrics.RecordFile(o.status)

	if s.recorder == nil {
		return
	}
	record := &models.SyncRecord{
		DriveFileID: o.file.ID,
		Name:        o.file.Name,
		Path:        o.file.Path,
		MD5Checksum: o.file.MD5Checksum,
		SizeBytes:   o.file.SizeBytes,
		OutputPath:  o.outputPath,
		Status:      o.status,
	}
	if o.err != nil {
		record.Error = o.err.Error()
	}
	// the context may already be cancelled; the outcome is still worth keeping
	if err := s.recorder.SaveRecord(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Warn("failed to record sync result", logging.Path(o.file.Path), logging.Err(err))
	}
}

func (s *Syncer) uploadLog(ctx context.Context, report *CycleReport) {
	if s.opts.LogFile == "" {
		return
	}

	// a shutdown signal must not cost the cycle its log upload
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logUploadTimeout)
	defer cancel()

	f, err := os.Open(s.opts.LogFile)
	if err != nil {
		s.logger.Warn("log file not available for upload", logging.Path(s.opts.LogFile), logging.Err(err))
		return
	}
	defer f.Close()

	id, err := s.store.UploadLog(ctx, s.opts.LogFolderID, filepath.Base(s.opts.LogFile), f)
	s.metrics.RecordLogUpload(err)
	if err != nil {
		s.logger.Error("failed to upload log file", logging.Err(err))
		return
	}
	report.LogUploaded = true
	s.logger.Info("uploaded log file",
		slog.String("folder_id", s.opts.LogFolderID),
		logging.FileID(id))
}
