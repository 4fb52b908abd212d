package mix

import (
	"context"
	"errors"
	"sync"
	"time"

	"AutoMixFM/logger"
	"AutoMixFM/model"
)

// ErrMixInProgress is returned when a mix is requested while another one
// is still processing. Single-user tool, single job at a time.
var ErrMixInProgress = errors.New("a mix is already being generated")

// StateStore persists the current mix state so it survives restarts.
type StateStore interface {
	SaveMixState(ctx context.Context, state model.MixState) error
}

// RecordStore keeps mix history rows for completed and failed jobs.
type RecordStore interface {
	InsertMixRecord(ctx context.Context, record *model.MixRecord) error
}

// Runner owns the one mix job allowed at a time: it runs the assembler
// in the background, tracks the externally visible MixState, persists it
// through the StateStore, and fans updates out to subscribers.
//
// store and records may be nil; the runner then only keeps state in memory.
type Runner struct {
	assembler *Assembler
	store     StateStore
	records   RecordStore
	upload    func(ctx context.Context, localPath, objectName string) error

	mu          sync.Mutex
	state       model.MixState
	running     bool
	subscribers map[chan model.MixState]struct{}
}

// NewRunner creates a Runner in the idle state.
func NewRunner(assembler *Assembler, store StateStore, records RecordStore) *Runner {
	return &Runner{
		assembler: assembler,
		store:     store,
		records:   records,
		state: model.MixState{
			Status:    model.MixIdle,
			Message:   "No mix generated yet.",
			UpdatedAt: time.Now(),
		},
		subscribers: make(map[chan model.MixState]struct{}),
	}
}

// SetUploader installs a hook that copies the finished mix to durable
// storage. Upload failures are logged, not fatal: the file stays on
// local disk either way.
func (r *Runner) SetUploader(upload func(ctx context.Context, localPath, objectName string) error) {
	r.upload = upload
}

// State returns a snapshot of the current mix state.
func (r *Runner) State() model.MixState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Busy reports whether a job is currently processing.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Subscribe registers a listener for state updates. The returned cancel
// function must be called when the listener goes away. Updates are
// dropped, not blocked on, when a subscriber falls behind.
func (r *Runner) Subscribe() (<-chan model.MixState, func()) {
	ch := make(chan model.MixState, 8)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Start launches a mix job for the given playlist in the background.
// Returns ErrMixInProgress if a job is already processing and
// ErrEmptyPlaylist for an empty playlist; both are rejected before any
// state changes.
func (r *Runner) Start(playlist []*model.Track, target time.Duration) error {
	if len(playlist) == 0 {
		return ErrEmptyPlaylist
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrMixInProgress
	}
	r.running = true
	r.mu.Unlock()

	r.setState(model.MixState{
		Status:    model.MixProcessing,
		Progress:  0,
		Message:   "Starting mix generation...",
		UpdatedAt: time.Now(),
	})

	go r.run(playlist, target)
	return nil
}

func (r *Runner) run(playlist []*model.Track, target time.Duration) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx := context.Background()

	result, err := r.assembler.Assemble(ctx, playlist, target, func(p Progress) {
		r.setState(model.MixState{
			Status:    model.MixProcessing,
			Progress:  p.Percent,
			Message:   p.Message,
			UpdatedAt: time.Now(),
		})
	})

	if err != nil {
		logger.Error("mix job failed", logger.ErrorField(err))
		r.setState(model.MixState{
			Status:       model.MixError,
			Progress:     100,
			Message:      "Mix generation failed.",
			ErrorDetails: err.Error(),
			UpdatedAt:    time.Now(),
		})
		r.insertRecord(ctx, &model.MixRecord{
			TrackCount:  len(playlist),
			Status:      "error",
			ErrorDetail: err.Error(),
			CreatedAt:   time.Now(),
		})
		return
	}

	if r.upload != nil {
		if err := r.upload(ctx, result.OutputPath, result.OutputFile); err != nil {
			logger.Warn("failed to upload mix to storage", logger.ErrorField(err))
		}
	}

	r.setState(model.MixState{
		Status:     model.MixCompleted,
		Progress:   100,
		Message:    "Mix completed.",
		OutputFile: result.OutputFile,
		UpdatedAt:  time.Now(),
	})
	r.insertRecord(ctx, &model.MixRecord{
		OutputFile: result.OutputFile,
		TrackCount: len(playlist),
		DurationMs: result.DurationMs,
		Degraded:   result.Degraded,
		Status:     "completed",
		CreatedAt:  time.Now(),
	})
}

// setState replaces the current state, persists it and notifies
// subscribers.
func (r *Runner) setState(state model.MixState) {
	r.mu.Lock()
	r.state = state
	for ch := range r.subscribers {
		select {
		case ch <- state:
		default:
		}
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveMixState(context.Background(), state); err != nil {
			logger.Warn("failed to persist mix state", logger.ErrorField(err))
		}
	}
}

// Restore replaces the in-memory state with a persisted one, typically
// at startup. A restored "processing" state is demoted to error since
// the job did not survive the restart.
func (r *Runner) Restore(state model.MixState) {
	if state.Status == model.MixProcessing {
		state.Status = model.MixError
		state.ErrorDetails = "mix job interrupted by restart"
		state.Message = "Mix generation was interrupted."
		state.UpdatedAt = time.Now()
	}
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *Runner) insertRecord(ctx context.Context, record *model.MixRecord) {
	if r.records == nil {
		return
	}
	if err := r.records.InsertMixRecord(ctx, record); err != nil {
		logger.Warn("failed to record mix history", logger.ErrorField(err))
	}
}
