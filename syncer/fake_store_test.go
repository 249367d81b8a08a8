package syncer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"sync"

	"drivesync/models"
)

// fakeStore is an in-memory RemoteStore.
type fakeStore struct {
	mu sync.Mutex

	files    map[string]models.RemoteFile
	contents map[string]string

	listErr      error
	downloadErrs map[string]error

	downloads []string
	uploads   []string
	archived  []string
	// archivedFrom maps a file id to the parent removed when archiving it.
	archivedFrom map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:        map[string]models.RemoteFile{},
		contents:     map[string]string{},
		downloadErrs: map[string]error{},
		archivedFrom: map[string]string{},
	}
}

func (f *fakeStore) add(id, path, content string) {
	sum := md5.Sum([]byte(content))
	name, parent := path, "inbox"
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			name, parent = path[i+1:], "sub-"+path[:i]
			break
		}
	}
	f.files[id] = models.RemoteFile{
		ID:          id,
		ParentID:    parent,
		Name:        name,
		Path:        path,
		MimeType:    "text/plain",
		MD5Checksum: hex.EncodeToString(sum[:]),
		SizeBytes:   int64(len(content)),
	}
	f.contents[id] = content
}

func (f *fakeStore) ListFiles(_ context.Context, _ string) ([]models.RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.RemoteFile, 0, len(f.files))
	for _, file := range f.files {
		out = append(out, file)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Download(_ context.Context, fileID string, w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloads = append(f.downloads, fileID)
	if err := f.downloadErrs[fileID]; err != nil {
		return err
	}
	content, ok := f.contents[fileID]
	if !ok {
		return errors.New("file not found")
	}
	_, err := io.WriteString(w, content)
	return err
}

func (f *fakeStore) UploadLog(_ context.Context, _ string, _ string, content io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, string(b))
	return "log-file", nil
}

func (f *fakeStore) Archive(_ context.Context, fileID, fromFolderID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if file, ok := f.files[fileID]; !ok || file.ParentID != fromFolderID {
		return errors.New("cannotAddParent: file is not in folder " + fromFolderID)
	}
	f.archived = append(f.archived, fileID)
	f.archivedFrom[fileID] = fromFolderID
	delete(f.files, fileID)
	return nil
}

type fakeRecorder struct {
	records []models.SyncRecord
}

func (r *fakeRecorder) SaveRecord(_ context.Context, record *models.SyncRecord) error {
	r.records = append(r.records, *record)
	return nil
}
