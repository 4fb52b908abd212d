package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"AutoMixFM/db"
	"AutoMixFM/model"
)

// TrackRepository defines the interface for track catalog persistence.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	FindAll(ctx context.Context) ([]*model.Track, error)
	DeleteAll(ctx context.Context) error
}

// gormTrackRepository implements TrackRepository on GORM.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a TrackRepository on the shared GORM
// connection. Call after db.ConnectGormDB.
func NewGormTrackRepository() TrackRepository {
	return &gormTrackRepository{db: db.GormDB}
}

// Create upserts the track; re-analyzing a file replaces its row.
func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(track).Error
	if err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

// FindAll returns the whole catalog ordered by ingestion time.
func (r *gormTrackRepository) FindAll(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Order("created_at asc").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return tracks, nil
}

// DeleteAll removes every track row.
func (r *gormTrackRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&model.Track{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete tracks: %w", err)
	}
	return nil
}
