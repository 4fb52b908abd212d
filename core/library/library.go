package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"AutoMixFM/core/audio"
	"AutoMixFM/logger"
	"AutoMixFM/model"
)

// ErrTrackNotFound is returned when a requested track id is not in the pool.
var ErrTrackNotFound = errors.New("track not found")

// TrackStore persists tracks across restarts. May be nil, in which case
// the library is memory-only.
type TrackStore interface {
	Create(ctx context.Context, track *model.Track) error
	FindAll(ctx context.Context) ([]*model.Track, error)
	DeleteAll(ctx context.Context) error
}

// Library is the session's track pool: every analyzed file, keyed by id.
// Ingestion runs analysis; reads are cheap snapshots.
type Library struct {
	analyzer audio.Analyzer
	store    TrackStore

	mu     sync.RWMutex
	tracks map[string]*model.Track
}

// New creates an empty Library.
func New(analyzer audio.Analyzer, store TrackStore) *Library {
	return &Library{
		analyzer: analyzer,
		store:    store,
		tracks:   make(map[string]*model.Track),
	}
}

// Ingest analyzes the file at path and adds it to the pool. Analysis
// failures come back as an error; partially analyzed tracks (missing
// BPM or key) are still ingested and left to eligibility filtering.
func (l *Library) Ingest(ctx context.Context, path string) (*model.Track, error) {
	analysis := l.analyzer.Analyze(ctx, path)
	if analysis.ErrorMessage != "" {
		return nil, fmt.Errorf("analysis of %s failed: %s", path, analysis.ErrorMessage)
	}

	now := time.Now()
	track := &model.Track{
		ID:         uuid.NewString(),
		Filename:   analysis.Filename,
		FilePath:   analysis.FilePath,
		BPM:        analysis.BPM,
		Key:        analysis.Key,
		CamelotKey: analysis.CamelotKey,
		Energy:     analysis.Energy,
		Duration:   analysis.Duration,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	l.mu.Lock()
	l.tracks[track.ID] = track
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Create(ctx, track); err != nil {
			logger.Warn("failed to persist track",
				logger.String("filename", track.Filename),
				logger.ErrorField(err))
		}
	}

	logger.Info("track ingested",
		logger.String("id", track.ID),
		logger.String("filename", track.Filename),
		logger.Float64("bpm", track.BPM),
		logger.String("camelotKey", track.CamelotKey))

	return track, nil
}

// Tracks returns a snapshot of the pool ordered by ingestion time.
func (l *Library) Tracks() []*model.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*model.Track, 0, len(l.tracks))
	for _, t := range l.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns the track with the given id.
func (l *Library) Get(id string) (*model.Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[id]
	if !ok {
		return nil, ErrTrackNotFound
	}
	return t, nil
}

// Select resolves a list of track ids into tracks, preserving order.
// Unknown ids are an error: the caller asked for something that is not
// in the pool.
func (l *Library) Select(ids []string) ([]*model.Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*model.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := l.tracks[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		out = append(out, t)
	}
	return out, nil
}

// Len returns the pool size.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Clear empties the pool and the persistent store.
func (l *Library) Clear(ctx context.Context) error {
	l.mu.Lock()
	l.tracks = make(map[string]*model.Track)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to clear persisted tracks: %w", err)
		}
	}
	logger.Info("track pool cleared")
	return nil
}

// Restore reloads previously persisted tracks into the pool, typically
// at startup. Without a store this is a no-op.
func (l *Library) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	tracks, err := l.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore tracks: %w", err)
	}

	l.mu.Lock()
	for _, t := range tracks {
		l.tracks[t.ID] = t
	}
	l.mu.Unlock()

	logger.Info("track pool restored", logger.Int("tracks", len(tracks)))
	return nil
}
