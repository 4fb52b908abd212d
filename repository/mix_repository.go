package repository

import (
	"context"
	"database/sql"
	"fmt"

	"AutoMixFM/db"
	"AutoMixFM/model"
)

// MixRepository defines the interface for mix history persistence.
type MixRepository interface {
	InsertMixRecord(ctx context.Context, record *model.MixRecord) error
	ListRecent(ctx context.Context, limit int) ([]*model.MixRecord, error)
}

// mysqlMixRepository implements MixRepository for MySQL.
type mysqlMixRepository struct {
	DB *sql.DB
}

// NewMySQLMixRepository creates a MixRepository on the shared raw SQL
// connection. Call after db.ConnectDB.
func NewMySQLMixRepository() MixRepository {
	return &mysqlMixRepository{DB: db.DB}
}

// InsertMixRecord appends one history row and fills in the generated id.
func (r *mysqlMixRepository) InsertMixRecord(ctx context.Context, record *model.MixRecord) error {
	query := `INSERT INTO mixes (output_file, track_count, duration_ms, degraded, status, error_detail, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.DB.ExecContext(ctx, query,
		record.OutputFile, record.TrackCount, record.DurationMs,
		record.Degraded, record.Status, record.ErrorDetail, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mix record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get mix record id: %w", err)
	}
	record.ID = id
	return nil
}

// ListRecent returns up to limit history rows, newest first.
func (r *mysqlMixRepository) ListRecent(ctx context.Context, limit int) ([]*model.MixRecord, error) {
	query := `SELECT id, output_file, track_count, duration_ms, degraded, status, COALESCE(error_detail, ''), created_at
	           FROM mixes ORDER BY created_at DESC LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mix records: %w", err)
	}
	defer rows.Close()

	var records []*model.MixRecord
	for rows.Next() {
		rec := &model.MixRecord{}
		if err := rows.Scan(&rec.ID, &rec.OutputFile, &rec.TrackCount, &rec.DurationMs,
			&rec.Degraded, &rec.Status, &rec.ErrorDetail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mix record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
