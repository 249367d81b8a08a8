package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drivesync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store   *fakeStore
	opts    Options
	logger  *slog.Logger
	logFile string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	logFile := filepath.Join(root, "drive_sync.log")

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	opts := Options{
		FolderID:     "inbox",
		LocalFolder:  filepath.Join(root, "staging"),
		OutputFolder: filepath.Join(root, "output"),
		LogFile:      logFile,
	}
	require.NoError(t, os.MkdirAll(opts.LocalFolder, 0o755))
	require.NoError(t, os.MkdirAll(opts.OutputFolder, 0o755))

	return &testEnv{
		store:   newFakeStore(),
		opts:    opts,
		logger:  slog.New(slog.NewTextHandler(f, nil)),
		logFile: logFile,
	}
}

func (e *testEnv) syncer(options ...Option) *Syncer {
	return New(e.store, e.opts, e.logger, options...)
}

func readOutput(t *testing.T, e *testEnv, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(e.opts.OutputFolder, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestRunCycle_MovesEveryRemoteFile(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "reports/q1.csv", "1,2,3")
	env.store.add("f3", "reports/deep/q2.csv", "4,5,6")

	report, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Listed)
	assert.Equal(t, 3, report.Downloaded)
	assert.Equal(t, 3, report.Moved)
	assert.Zero(t, report.Failed)
	assert.True(t, report.LogUploaded)

	assert.Equal(t, "alpha", readOutput(t, env, "a.txt"))
	assert.Equal(t, "1,2,3", readOutput(t, env, "reports/q1.csv"))
	assert.Equal(t, "4,5,6", readOutput(t, env, "reports/deep/q2.csv"))

	entries, err := os.ReadDir(env.opts.LocalFolder)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging is emptied")
}

func TestRunCycle_UploadsLogOncePerCycle(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "b.txt", "bravo")

	_, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, env.store.uploads, 1)
	uploaded := env.store.uploads[0]
	assert.Equal(t, 2, strings.Count(uploaded, `msg="file processed"`))
	assert.Contains(t, uploaded, "path=a.txt")
	assert.Contains(t, uploaded, "path=b.txt")
}

func TestRunCycle_SecondCycleDoesNotRedownload(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "b.txt", "bravo")
	s := env.syncer()

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, env.store.downloads, 2)

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, env.store.downloads, 2, "unchanged files are not downloaded again")
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Downloaded)
	assert.Len(t, env.store.uploads, 2)
}

func TestRunCycle_ChangedRemoteFileIsDownloadedAgain(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("f1", "a.txt", "first version")
	s := env.syncer()

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	env.store.add("f1", "a.txt", "second version")
	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, "second version", readOutput(t, env, "a.txt"))
}

func TestRunCycle_FailedDownloadDoesNotStopCycle(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "b.txt", "bravo")
	env.store.add("f3", "c.txt", "charlie")
	env.store.downloadErrs["f2"] = errors.New("googleapi: Error 403: permission denied")

	rec := &fakeRecorder{}
	report, err := env.syncer(WithRecorder(rec)).RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Moved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "alpha", readOutput(t, env, "a.txt"))
	assert.Equal(t, "charlie", readOutput(t, env, "c.txt"))
	assert.NoFileExists(t, filepath.Join(env.opts.OutputFolder, "b.txt"))

	entries, err := os.ReadDir(env.opts.LocalFolder)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed download leaves no partial file behind")

	require.Len(t, rec.records, 3)
	statuses := map[string]string{}
	for _, r := range rec.records {
		statuses[r.DriveFileID] = r.Status
		if r.DriveFileID == "f2" {
			assert.Contains(t, r.Error, "permission denied")
		}
	}
	assert.Equal(t, map[string]string{
		"f1": models.StatusMoved,
		"f2": models.StatusFailed,
		"f3": models.StatusMoved,
	}, statuses)

	require.Len(t, env.store.uploads, 1)
	assert.Equal(t, 3, strings.Count(env.store.uploads[0], `msg="file processed"`))
	assert.Contains(t, env.store.uploads[0], "status=failed")
}

func TestRunCycle_ListingFailureStillUploadsLog(t *testing.T) {
	env := newTestEnv(t)
	env.store.listErr = errors.New("network unreachable")

	report, err := env.syncer().RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")

	assert.True(t, report.LogUploaded)
	require.Len(t, env.store.uploads, 1)
	assert.Contains(t, env.store.uploads[0], "failed to list drive files")
}

func TestRunCycle_SkipsOwnLogFile(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("log", "drive_sync.log", "older log")
	env.store.add("f1", "a.txt", "alpha")

	report, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Listed)
	assert.NotContains(t, env.store.downloads, "log")
	assert.NoFileExists(t, filepath.Join(env.opts.OutputFolder, "drive_sync.log"))
}

func TestRunCycle_SkipsWorkspaceDocuments(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("doc", "notes", "")
	doc := env.store.files["doc"]
	doc.MimeType = "application/vnd.google-apps.document"
	doc.MD5Checksum = ""
	env.store.files["doc"] = doc

	report, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, env.store.downloads)
}

func TestRunCycle_RejectsUnsafePaths(t *testing.T) {
	env := newTestEnv(t)
	env.store.add("evil", "../escape.txt", "nope")

	report, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, env.store.downloads)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(env.opts.OutputFolder), "escape.txt"))
}

func TestRunCycle_MovesLeftoverStagedFiles(t *testing.T) {
	env := newTestEnv(t)
	leftover := filepath.Join(env.opts.LocalFolder, "manual", "drop.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(leftover), 0o755))
	require.NoError(t, os.WriteFile(leftover, []byte("dropped in"), 0o644))

	report, err := env.syncer().RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Moved)
	assert.Equal(t, "dropped in", readOutput(t, env, "manual/drop.txt"))
}

func TestRunCycle_ArchivesMovedFiles(t *testing.T) {
	env := newTestEnv(t)
	env.opts.ArchiveFolderID = "done"
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "b.txt", "bravo")
	env.store.downloadErrs["f2"] = errors.New("timeout")
	s := env.syncer()

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, env.store.archived)

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Listed, "archived files drop out of the listing")
}

func TestRunCycle_ArchivesNestedFilesFromTheirOwnFolder(t *testing.T) {
	env := newTestEnv(t)
	env.opts.ArchiveFolderID = "done"
	env.store.add("f1", "a.txt", "alpha")
	env.store.add("f2", "reports/q1.csv", "1,2,3")
	s := env.syncer()

	_, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1", "f2"}, env.store.archived)
	assert.Equal(t, "inbox", env.store.archivedFrom["f1"])
	assert.Equal(t, "sub-reports", env.store.archivedFrom["f2"])

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Listed)
}

func TestNew_LogFolderDefaultsToWatchedFolder(t *testing.T) {
	s := New(newFakeStore(), Options{FolderID: "inbox"}, nil)
	assert.Equal(t, "inbox", s.opts.LogFolderID)

	s = New(newFakeStore(), Options{FolderID: "inbox", LogFolderID: "logs"}, nil)
	assert.Equal(t, "logs", s.opts.LogFolderID)
}
