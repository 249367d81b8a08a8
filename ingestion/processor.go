package ingestion

import (
	"context"
	"fmt"
	"io"

	"drivesync/logging"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const LogMimeType = "text/plain"

// Download streams the content of fileID into w.
func (d *DriveStore) Download(ctx context.Context, fileID string, w io.Writer) error {
	response, err := d.service.Files.Get(fileID).
		Context(ctx).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer response.Body.Close()

	if _, err := io.Copy(w, response.Body); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// UploadLog stores content as name inside folderID. An existing file with
// the same name is overwritten so the folder holds one copy of the log.
// It returns the Drive file id.
func (d *DriveStore) UploadLog(ctx context.Context, folderID, name string, content io.Reader) (string, error) {
	existing, err := d.findByName(ctx, folderID, name)
	if err != nil {
		return "", err
	}

	if existing != "" {
		file, err := d.service.Files.Update(existing, &drive.File{}).
			Context(ctx).
			SupportsAllDrives(true).
			Media(content, googleapi.ContentType(LogMimeType)).
			Fields("id").
			Do()
		if err != nil {
			return "", fmt.Errorf("failed to update log file %s: %w", existing, err)
		}
		d.logger.Debug("updated log file", logging.FileID(file.Id))
		return file.Id, nil
	}

	file, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: LogMimeType,
		Parents:  []string{folderID},
	}).
		Context(ctx).
		SupportsAllDrives(true).
		Media(content, googleapi.ContentType(LogMimeType)).
		Fields("id").
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload log file: %w", err)
	}
	d.logger.Debug("created log file", logging.FileID(file.Id))
	return file.Id, nil
}

func (d *DriveStore) findByName(ctx context.Context, folderID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed=false",
		escapeQuery(name), escapeQuery(folderID))

	response, err := d.service.Files.List().
		Context(ctx).
		Q(query).
		Fields("files(id)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", name, err)
	}
	if len(response.Files) == 0 {
		return "", nil
	}
	return response.Files[0].Id, nil
}
