package runner

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"paperwave/internal/pipeline"
)

// ErrRunInFlight reports that an identical submission is already being
// processed for this user.
var ErrRunInFlight = errors.New("an identical run is already in progress")

const defaultLockTTL = 30 * time.Minute

// Runner is the pipeline surface the manager drives.
type Runner interface {
	Run(ctx context.Context, req *pipeline.Request, tracker *pipeline.Tracker) (*pipeline.Result, error)
}

// Options tunes the worker pool and the dedup lock.
type Options struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
	LockTTL     time.Duration
}

// Manager serializes pipeline runs through the dispatcher and rejects
// duplicate submissions of the same document by the same user while a run is
// in flight.
type Manager struct {
	dispatcher *Dispatcher
	lock       RunLock
	runner     Runner
	lockTTL    time.Duration
}

func NewManager(runner Runner, lock RunLock, opts Options) *Manager {
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Manager{
		dispatcher: NewDispatcher(opts.MinWorkers, opts.MaxWorkers, opts.QueueSize, opts.IdleTimeout),
		lock:       lock,
		runner:     runner,
		lockTTL:    ttl,
	}
}

// Submit runs one generation synchronously: the call blocks until the
// pipeline finishes or ctx is done. Progress arrives through the tracker.
func (m *Manager) Submit(ctx context.Context, req *pipeline.Request, tracker *pipeline.Tracker) (*pipeline.Result, error) {
	key, err := m.fingerprint(req)
	if err != nil {
		return nil, err
	}
	acquired, err := m.lock.Acquire(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInFlight
	}

	type outcome struct {
		res *pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	m.dispatcher.Enqueue(Job{
		userID: req.UserID,
		run: func() {
			defer m.releaseLock(key)
			res, runErr := m.runner.Run(ctx, req, tracker)
			done <- outcome{res: res, err: runErr}
		},
	})

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		// The run sees the same ctx and stops between stages; its worker
		// releases the lock on the way out.
		return nil, ctx.Err()
	}
}

// fingerprint derives the dedup key from the uploaded bytes and the title,
// scoped per user. Re-submitting the same paper under the same title while a
// run is active hits the same key.
func (m *Manager) fingerprint(req *pipeline.Request) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", fmt.Errorf("open submission for fingerprint: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash submission: %w", err)
	}
	io.WriteString(h, "\x00")
	io.WriteString(h, req.Title)
	return fmt.Sprintf("paperwave:run:%d:%x", req.UserID, h.Sum(nil)), nil
}

func (m *Manager) releaseLock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.lock.Release(ctx, key); err != nil {
		log.Printf("release of run lock %s failed: %v", key, err)
	}
}
