package pipeline

import "sync"

// Stage tags the coarse phase of a run as shown to the user.
type Stage string

const (
	StageImage    Stage = "image"
	StageScript   Stage = "script"
	StageAudio    Stage = "audio"
	StageComplete Stage = "complete"
)

// Progress is the presentation contract: the current stage plus a 0-100
// percentage.
type Progress struct {
	Stage   Stage `json:"stage"`
	Percent int   `json:"percent"`
}

// Tracker reflects pipeline checkpoints to an observer. It is purely
// observational: it never retries or cancels work, and one Tracker belongs
// to exactly one run. Percent is monotonically non-decreasing. The observer
// runs under the tracker lock and must not call Snapshot.
type Tracker struct {
	mu       sync.Mutex
	current  Progress
	observer func(Progress)
}

// NewTracker builds a tracker; observer may be nil.
func NewTracker(observer func(Progress)) *Tracker {
	return &Tracker{
		current:  Progress{Stage: StageImage, Percent: 0},
		observer: observer,
	}
}

func (t *Tracker) advance(stage Stage, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent < t.current.Percent {
		percent = t.current.Percent
	}
	if percent > 100 {
		percent = 100
	}
	t.current = Progress{Stage: stage, Percent: percent}
	if t.observer != nil {
		t.observer(t.current)
	}
}

// Detach stops observer notifications. It blocks until any in-flight
// notification has returned, so once Detach returns the observer can no
// longer touch resources its owner is about to release. Snapshot keeps
// working; a run that outlives its consumer advances silently.
func (t *Tracker) Detach() {
	t.mu.Lock()
	t.observer = nil
	t.mu.Unlock()
}

// Snapshot returns the latest reported progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
