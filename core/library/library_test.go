package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoMixFM/core/audio"
	"AutoMixFM/model"
)

// fakeAnalyzer returns canned results keyed by path basename.
type fakeAnalyzer struct {
	results map[string]*audio.Analysis
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, path string) *audio.Analysis {
	if result, ok := a.results[filepath.Base(path)]; ok {
		r := *result
		r.Filename = filepath.Base(path)
		r.FilePath = path
		return &r
	}
	return &audio.Analysis{
		Filename:     filepath.Base(path),
		FilePath:     path,
		ErrorMessage: "decode failed",
	}
}

// fakeStore records persistence calls.
type fakeStore struct {
	created   []*model.Track
	deleted   bool
	preloaded []*model.Track
	failAll   bool
}

func (s *fakeStore) Create(ctx context.Context, track *model.Track) error {
	if s.failAll {
		return errors.New("store down")
	}
	s.created = append(s.created, track)
	return nil
}

func (s *fakeStore) FindAll(ctx context.Context) ([]*model.Track, error) {
	if s.failAll {
		return nil, errors.New("store down")
	}
	return s.preloaded, nil
}

func (s *fakeStore) DeleteAll(ctx context.Context) error {
	if s.failAll {
		return errors.New("store down")
	}
	s.deleted = true
	return nil
}

func goodAnalysis(bpm float64, key, camelot string) *audio.Analysis {
	return &audio.Analysis{
		BPM:        bpm,
		Key:        key,
		CamelotKey: camelot,
		Energy:     0.5,
		Duration:   180,
	}
}

func TestIngest(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]*audio.Analysis{
		"a.mp3": goodAnalysis(120, "Am", "8A"),
	}}
	store := &fakeStore{}
	lib := New(analyzer, store)

	track, err := lib.Ingest(context.Background(), "/music/a.mp3")
	require.NoError(t, err)

	assert.NotEmpty(t, track.ID)
	assert.Equal(t, "a.mp3", track.Filename)
	assert.Equal(t, "/music/a.mp3", track.FilePath)
	assert.Equal(t, 120.0, track.BPM)
	assert.Equal(t, "8A", track.CamelotKey)
	assert.Equal(t, 1, lib.Len())

	require.Len(t, store.created, 1)
	assert.Equal(t, track.ID, store.created[0].ID)
}

func TestIngestAnalysisFailure(t *testing.T) {
	lib := New(&fakeAnalyzer{}, nil)

	_, err := lib.Ingest(context.Background(), "/music/broken.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode failed")
	assert.Equal(t, 0, lib.Len())
}

// A failing store degrades to memory-only; ingestion still succeeds.
func TestIngestSurvivesStoreFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]*audio.Analysis{
		"a.mp3": goodAnalysis(120, "Am", "8A"),
	}}
	lib := New(analyzer, &fakeStore{failAll: true})

	_, err := lib.Ingest(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Len())
}

func TestTracksOrderedByIngestion(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]*audio.Analysis{
		"a.mp3": goodAnalysis(120, "Am", "8A"),
		"b.mp3": goodAnalysis(125, "Em", "9A"),
		"c.mp3": goodAnalysis(118, "C", "8B"),
	}}
	lib := New(analyzer, nil)

	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		_, err := lib.Ingest(context.Background(), "/music/"+name)
		require.NoError(t, err)
	}

	tracks := lib.Tracks()
	require.Len(t, tracks, 3)
	assert.Equal(t, "a.mp3", tracks[0].Filename)
	assert.Equal(t, "b.mp3", tracks[1].Filename)
	assert.Equal(t, "c.mp3", tracks[2].Filename)
}

func TestGetAndSelect(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]*audio.Analysis{
		"a.mp3": goodAnalysis(120, "Am", "8A"),
		"b.mp3": goodAnalysis(125, "Em", "9A"),
	}}
	lib := New(analyzer, nil)

	a, err := lib.Ingest(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	b, err := lib.Ingest(context.Background(), "/music/b.mp3")
	require.NoError(t, err)

	got, err := lib.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = lib.Get("nope")
	assert.ErrorIs(t, err, ErrTrackNotFound)

	// Select preserves the requested order.
	selected, err := lib.Select([]string{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, b.ID, selected[0].ID)
	assert.Equal(t, a.ID, selected[1].ID)

	_, err = lib.Select([]string{a.ID, "nope"})
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestClear(t *testing.T) {
	analyzer := &fakeAnalyzer{results: map[string]*audio.Analysis{
		"a.mp3": goodAnalysis(120, "Am", "8A"),
	}}
	store := &fakeStore{}
	lib := New(analyzer, store)

	_, err := lib.Ingest(context.Background(), "/music/a.mp3")
	require.NoError(t, err)

	require.NoError(t, lib.Clear(context.Background()))
	assert.Equal(t, 0, lib.Len())
	assert.True(t, store.deleted)
}

func TestRestore(t *testing.T) {
	store := &fakeStore{preloaded: []*model.Track{
		{ID: "t1", Filename: "a.mp3", CreatedAt: time.Now()},
		{ID: "t2", Filename: "b.mp3", CreatedAt: time.Now()},
	}}
	lib := New(&fakeAnalyzer{}, store)

	require.NoError(t, lib.Restore(context.Background()))
	assert.Equal(t, 2, lib.Len())

	got, err := lib.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", got.Filename)
}

func TestRestoreWithoutStore(t *testing.T) {
	lib := New(&fakeAnalyzer{}, nil)
	assert.NoError(t, lib.Restore(context.Background()))
}
