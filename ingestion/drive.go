package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"drivesync/logging"
	"drivesync/models"

	"google.golang.org/api/drive/v3"
)

const (
	FolderMimeType = "application/vnd.google-apps.folder"
	// Native Docs/Sheets/Slides share this prefix and have no binary content.
	WorkspaceMimePrefix = "application/vnd.google-apps."

	listFields = "nextPageToken, files(id, name, mimeType, md5Checksum, modifiedTime, size)"
)

// DriveStore lists, downloads and uploads files in Drive folders on behalf
// of the sync cycle.
type DriveStore struct {
	service  *drive.Service
	logger   *slog.Logger
	pageSize int64
}

func NewDriveStore(service *drive.Service, logger *slog.Logger) *DriveStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveStore{
		service:  service,
		logger:   logging.WithOperation(logger, "drive"),
		pageSize: 100,
	}
}

// ListFiles walks folderID recursively and returns every non-folder file.
// A sub-folder that cannot be listed is logged and skipped.
func (d *DriveStore) ListFiles(ctx context.Context, folderID string) ([]models.RemoteFile, error) {
	return d.listFolder(ctx, folderID, "")
}

func (d *DriveStore) listFolder(ctx context.Context, folderID, currentPath string) ([]models.RemoteFile, error) {
	d.logger.Debug("listing folder", slog.String("folder_id", folderID), logging.Path(currentPath))

	var files []models.RemoteFile
	query := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))
	pageToken := ""

	for {
		call := d.service.Files.List().
			Context(ctx).
			Q(query).
			Fields(listFields).
			PageSize(d.pageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list files in folder %s: %w", folderID, err)
		}

		for _, file := range response.Files {
			filePath := path.Join(currentPath, sanitizeName(file.Name))

			if file.MimeType == FolderMimeType {
				subFiles, err := d.listFolder(ctx, file.Id, filePath)
				if err != nil {
					d.logger.Warn("failed to list sub-folder", logging.Path(filePath), logging.Err(err))
					continue
				}
				files = append(files, subFiles...)
				continue
			}

			files = append(files, models.RemoteFile{
				ID:           file.Id,
				ParentID:     folderID,
				Name:         file.Name,
				Path:         filePath,
				MimeType:     file.MimeType,
				MD5Checksum:  file.Md5Checksum,
				SizeBytes:    file.Size,
				ModifiedTime: file.ModifiedTime,
			})
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return files, nil
}

// Archive re-parents a file from one folder to another so it drops out of
// the watched folder's listing.
func (d *DriveStore) Archive(ctx context.Context, fileID, fromFolderID, toFolderID string) error {
	_, err := d.service.Files.Update(fileID, &drive.File{}).
		Context(ctx).
		AddParents(toFolderID).
		RemoveParents(fromFolderID).
		SupportsAllDrives(true).
		Fields("id, parents").
		Do()
	if err != nil {
		return fmt.Errorf("failed to archive file %s: %w", fileID, err)
	}
	return nil
}

// IsWorkspaceDocument reports whether a file is a native Google document
// that can only be exported, not downloaded.
func IsWorkspaceDocument(mimeType string) bool {
	return strings.HasPrefix(mimeType, WorkspaceMimePrefix) && mimeType != FolderMimeType
}

// sanitizeName keeps a Drive name usable as a single path element.
func sanitizeName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	switch name {
	case "", ".", "..":
		return "_"
	}
	return name
}

func escapeQuery(value string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
}
