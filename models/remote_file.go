package models

import "time"

const (
	StatusMoved   = "moved"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// RemoteFile is a file listed from the watched Drive folder. Path is
// slash-separated and relative to that folder. ParentID is the folder the
// file was listed in, which differs from the watched folder for files in
// sub-folders.
type RemoteFile struct {
	ID           string
	ParentID     string
	Name         string
	Path         string
	MimeType     string
	MD5Checksum  string
	SizeBytes    int64
	ModifiedTime string
}

// SyncRecord is one ledger row describing what happened to a file in a cycle.
type SyncRecord struct {
	ID          int64
	DriveFileID string
	Name        string
	Path        string
	MD5Checksum string
	SizeBytes   int64
	OutputPath  string
	Status      string
	Error       string
	SyncedAt    time.Time
}
