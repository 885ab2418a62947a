package upload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmined/storagebrowser/internal/metrics"
	"github.com/openmined/storagebrowser/internal/scopepath"
)

// ErrAborted is delivered to every session cancelled through the coordinator or
// its context.
var ErrAborted = errors.New("Upload aborted")

// State is the lifecycle position of an upload.
type State string

const (
	StatePending   State = "pending"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Info is a point in time view of an upload.
type Info struct {
	ID        string    `json:"id" yaml:"id"`
	Key       string    `json:"key" yaml:"key"`
	Scope     string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	Path      string    `json:"path" yaml:"path"`
	State     State     `json:"state" yaml:"state"`
	Size      int64     `json:"size" yaml:"size"`
	Uploaded  int64     `json:"uploaded" yaml:"uploaded"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt time.Time `json:"startedAt" yaml:"startedAt"`
}

// Upload is one resumable transfer. It is created by Coordinator.Start and lives
// in the coordinator's registry until it reaches a terminal state.
type Upload struct {
	id          string
	key         string
	target      scopepath.ScopedPath
	size        int64
	overwrite   bool
	chunkSize   int64
	retryDelays []time.Duration
	startedAt   time.Time

	cancel   context.CancelCauseFunc
	uploaded   atomic.Int64
	created    atomic.Bool
	superseded atomic.Bool

	mu       sync.Mutex
	state    State
	err      error
	finished bool
	progress chan int64
	done     chan struct{}
}

func newUpload(id string, target scopepath.ScopedPath, size int64, overwrite bool, settings Settings) *Upload {
	return &Upload{
		id:          id,
		key:         target.Key(),
		target:      target,
		size:        size,
		overwrite:   overwrite,
		chunkSize:   settings.ChunkSize,
		retryDelays: settings.Delays(),
		startedAt:   time.Now(),
		cancel:      func(error) {},
		state:       StatePending,
		progress:    make(chan int64, 1),
		done:        make(chan struct{}),
	}
}

func (u *Upload) ID() string                   { return u.id }
func (u *Upload) Key() string                  { return u.key }
func (u *Upload) Target() scopepath.ScopedPath { return u.target }
func (u *Upload) Size() int64                  { return u.size }

// Uploaded is the number of bytes acknowledged by the backend so far.
func (u *Upload) Uploaded() int64 {
	return u.uploaded.Load()
}

// RetryDelays returns the backoff sequence computed for this session.
func (u *Upload) RetryDelays() []time.Duration {
	return append([]time.Duration(nil), u.retryDelays...)
}

func (u *Upload) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Progress yields the cumulative number of acknowledged bytes. Only the latest
// value is kept, a slow reader skips intermediate values. The channel is closed
// once the upload is finished.
func (u *Upload) Progress() <-chan int64 {
	return u.progress
}

// Done is closed when the upload reaches a terminal state.
func (u *Upload) Done() <-chan struct{} {
	return u.done
}

// Err returns the terminal error. It is nil while running and after success.
func (u *Upload) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Wait blocks until the upload is finished and returns its terminal error.
func (u *Upload) Wait() error {
	<-u.done
	return u.Err()
}

// abort cancels the transfer and finishes the upload with ErrAborted. It does
// not wait for the in-flight request to return.
func (u *Upload) abort() {
	u.cancel(ErrAborted)
	if u.finish(StateAborted, ErrAborted) {
		metrics.RecordUploadFinished(string(StateAborted))
	}
}

func (u *Upload) Info() Info {
	u.mu.Lock()
	state, err := u.state, u.err
	u.mu.Unlock()

	info := Info{
		ID:        u.id,
		Key:       u.key,
		Scope:     u.target.Scope,
		Path:      u.target.Path,
		State:     state,
		Size:      u.size,
		Uploaded:  u.Uploaded(),
		StartedAt: u.startedAt,
	}
	if err != nil {
		info.Error = err.Error()
	}
	return info
}

func (u *Upload) setState(s State) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.finished {
		u.state = s
	}
}

func (u *Upload) publish(n int64) {
	u.uploaded.Store(n)

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return
	}

	select {
	case <-u.progress:
	default:
	}
	u.progress <- n
}

// finish moves the upload into a terminal state. Only the first call wins.
func (u *Upload) finish(s State, err error) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return false
	}

	u.finished = true
	u.state = s
	u.err = err
	close(u.progress)
	close(u.done)
	return true
}
