package storage

import (
	"context"

	"drivesync/models"
)

type Database interface {
	Initialize() error
	SaveRecord(ctx context.Context, record *models.SyncRecord) error
	ListRecords(ctx context.Context, limit int) ([]models.SyncRecord, error)
	SearchRecords(ctx context.Context, query string, limit int) ([]models.SyncRecord, error)
	ClearAll(ctx context.Context) error
	Close() error
}
