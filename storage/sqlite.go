package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"drivesync/models"

	_ "github.com/mattn/go-sqlite3"
)

var _ Database = (*SQLiteDB)(nil)

//go:embed schema.sql
var schema string

const selectRecord = `SELECT id, drive_file_id, name, path, md5_checksum, size_bytes,
	output_path, status, error, synced_at FROM sync_records`

type SQLiteDB struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteDB(dbPath string) *SQLiteDB {
	return &SQLiteDB{
		dbPath: dbPath,
	}
}

func (s *SQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteDB) SaveRecord(ctx context.Context, record *models.SyncRecord) error {
	if record.SyncedAt.IsZero() {
		record.SyncedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO sync_records
		(drive_file_id, name, path, md5_checksum, size_bytes, output_path, status, error, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.DriveFileID,
		record.Name,
		record.Path,
		record.MD5Checksum,
		record.SizeBytes,
		record.OutputPath,
		record.Status,
		record.Error,
		record.SyncedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save sync record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// ListRecords returns the most recent records first.
func (s *SQLiteDB) ListRecords(ctx context.Context, limit int) ([]models.SyncRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY id DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	return scanRecords(rows)
}

// SearchRecords matches query against file names and paths.
func (s *SQLiteDB) SearchRecords(ctx context.Context, query string, limit int) ([]models.SyncRecord, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		selectRecord+` WHERE name LIKE ? OR path LIKE ? ORDER BY id DESC LIMIT ?`,
		pattern, pattern, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search sync records: %w", err)
	}
	return scanRecords(rows)
}

func (s *SQLiteDB) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_records`)
	if err != nil {
		return fmt.Errorf("failed to clear sync records: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]models.SyncRecord, error) {
	defer rows.Close()

	var records []models.SyncRecord
	for rows.Next() {
		var r models.SyncRecord
		var syncedAt string
		if err := rows.Scan(&r.ID, &r.DriveFileID, &r.Name, &r.Path, &r.MD5Checksum,
			&r.SizeBytes, &r.OutputPath, &r.Status, &r.Error, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, syncedAt); err == nil {
			r.SyncedAt = t
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync records: %w", err)
	}
	return records, nil
}

// limitOrAll turns a non-positive limit into SQLite's "no limit".
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
