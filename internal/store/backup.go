package store

import (
	"database/sql"
	"fmt"

	"github.com/hbkim/iljeong/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) Record(objectKey string, sizeBytes int64, status, errMsg string) (*model.BackupRecord, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (object_key, size_bytes, status, error) VALUES (?, ?, ?, ?)`,
		objectKey, sizeBytes, status, errMsg,
	)
	if err != nil {
		return nil, fmt.Errorf("insert backup record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var r model.BackupRecord
	err = s.db.QueryRow(
		`SELECT id, object_key, size_bytes, status, error, created_at FROM backups WHERE id = ?`, id,
	).Scan(&r.ID, &r.ObjectKey, &r.SizeBytes, &r.Status, &r.Error, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup record: %w", err)
	}
	return &r, nil
}

// History returns the most recent backup records, newest first.
func (s *BackupStore) History(limit int) ([]model.BackupRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, object_key, size_bytes, status, error, created_at
		 FROM backups ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query backup history: %w", err)
	}
	defer rows.Close()

	var records []model.BackupRecord
	for rows.Next() {
		var r model.BackupRecord
		if err := rows.Scan(&r.ID, &r.ObjectKey, &r.SizeBytes, &r.Status, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
