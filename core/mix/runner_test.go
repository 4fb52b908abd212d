package mix

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoMixFM/model"
)

// memStateStore records every persisted state.
type memStateStore struct {
	mu     sync.Mutex
	states []model.MixState
}

func (s *memStateStore) SaveMixState(ctx context.Context, state model.MixState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *memStateStore) last() (model.MixState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return model.MixState{}, false
	}
	return s.states[len(s.states)-1], true
}

// memRecordStore records inserted history rows.
type memRecordStore struct {
	mu      sync.Mutex
	records []*model.MixRecord
}

func (s *memRecordStore) InsertMixRecord(ctx context.Context, record *model.MixRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func waitForStatus(t *testing.T, r *Runner, status model.MixStatus) model.MixState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if state := r.State(); state.Status == status {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("runner never reached status %q, last state: %+v", status, r.State())
	return model.MixState{}
}

// waitForIdleRunner waits for the job goroutine to fully wind down; the
// terminal state is published slightly before the running flag clears.
func waitForIdleRunner(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !r.Busy() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("runner never became idle")
}

func TestRunnerStartsIdle(t *testing.T) {
	r := NewRunner(newTestAssembler(&fakeProcessor{}), nil, nil)
	assert.Equal(t, model.MixIdle, r.State().Status)
	assert.False(t, r.Busy())
}

func TestRunnerRejectsEmptyPlaylist(t *testing.T) {
	r := NewRunner(newTestAssembler(&fakeProcessor{}), nil, nil)
	err := r.Start(nil, 30*time.Minute)
	assert.ErrorIs(t, err, ErrEmptyPlaylist)
	assert.Equal(t, model.MixIdle, r.State().Status)
}

func TestRunnerCompletesJob(t *testing.T) {
	proc := &fakeProcessor{durations: map[string]int64{
		"/music/a.mp3": 240000,
		"/music/b.mp3": 240000,
	}}
	store := &memStateStore{}
	records := &memRecordStore{}
	r := NewRunner(newTestAssembler(proc), store, records)

	playlist := []*model.Track{testTrack("a", 120, 240), testTrack("b", 120, 240)}
	require.NoError(t, r.Start(playlist, 30*time.Minute))

	state := waitForStatus(t, r, model.MixCompleted)
	assert.Equal(t, 100, state.Progress)
	assert.NotEmpty(t, state.OutputFile)

	persisted, ok := store.last()
	require.True(t, ok)
	assert.Equal(t, model.MixCompleted, persisted.Status)

	records.mu.Lock()
	defer records.mu.Unlock()
	require.Len(t, records.records, 1)
	assert.Equal(t, "completed", records.records[0].Status)
	assert.Equal(t, 2, records.records[0].TrackCount)
}

func TestRunnerRecordsFailure(t *testing.T) {
	// No durations registered: the first load fails, which is fatal.
	proc := &fakeProcessor{durations: map[string]int64{}}
	records := &memRecordStore{}
	r := NewRunner(newTestAssembler(proc), nil, records)

	require.NoError(t, r.Start([]*model.Track{testTrack("a", 120, 240)}, 30*time.Minute))

	state := waitForStatus(t, r, model.MixError)
	assert.NotEmpty(t, state.ErrorDetails)

	records.mu.Lock()
	defer records.mu.Unlock()
	require.Len(t, records.records, 1)
	assert.Equal(t, "error", records.records[0].Status)
}

func TestRunnerRejectsConcurrentJobs(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{
		durations: map[string]int64{"/music/a.mp3": 240000},
		loadGate:  gate,
	}
	r := NewRunner(newTestAssembler(proc), nil, nil)

	playlist := []*model.Track{testTrack("a", 120, 240)}
	require.NoError(t, r.Start(playlist, 30*time.Minute))

	err := r.Start(playlist, 30*time.Minute)
	assert.ErrorIs(t, err, ErrMixInProgress)

	close(gate)
	waitForStatus(t, r, model.MixCompleted)
	waitForIdleRunner(t, r)

	// With the first job finished a new one is accepted again.
	proc.loadGate = nil
	assert.NoError(t, r.Start(playlist, 30*time.Minute))
	waitForStatus(t, r, model.MixCompleted)
}

func TestRunnerSubscribersSeeTerminalState(t *testing.T) {
	proc := &fakeProcessor{durations: map[string]int64{"/music/a.mp3": 240000}}
	r := NewRunner(newTestAssembler(proc), nil, nil)

	updates, cancel := r.Subscribe()
	defer cancel()

	require.NoError(t, r.Start([]*model.Track{testTrack("a", 120, 240)}, 30*time.Minute))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Status == model.MixCompleted {
				return
			}
		case <-deadline:
			t.Fatal("never saw a completed state on the subscription")
		}
	}
}

func TestRunnerRestoreDemotesProcessing(t *testing.T) {
	r := NewRunner(newTestAssembler(&fakeProcessor{}), nil, nil)

	r.Restore(model.MixState{Status: model.MixProcessing, Progress: 50})
	assert.Equal(t, model.MixError, r.State().Status)

	r.Restore(model.MixState{Status: model.MixCompleted, OutputFile: "mix.mp3"})
	assert.Equal(t, model.MixCompleted, r.State().Status)
	assert.Equal(t, "mix.mp3", r.State().OutputFile)
}
