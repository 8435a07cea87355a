package progress

import (
	"sync"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/models"

	"github.com/google/uuid"
)

// Phase identifies where an export job currently is in its pipeline.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFetching  Phase = "fetching"
	PhaseRendering Phase = "rendering"
	PhasePackaging Phase = "packaging"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Snapshot is a point-in-time view of a tracked export job.
type Snapshot struct {
	JobKey   string                   `json:"jobKey"`
	Phase    Phase                    `json:"phase"`
	Messages []models.RenderedMessage `json:"messages"`
	Total    int                      `json:"total"`
	Done     bool                     `json:"done"`
	Error    string                   `json:"error,omitempty"`
}

type entry struct {
	jobKey    string
	phase     Phase
	messages  []models.RenderedMessage
	errMsg    string
	done      bool
	updatedAt time.Time
}

// Tracker keeps in-memory progress state for running exports, keyed by
// an opaque token handed to the caller when the job is accepted.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	stop    chan struct{}
	stopped sync.Once
}

func NewTracker(ttl time.Duration, evictPeriod time.Duration) *Tracker {
	t := &Tracker{
		entries: make(map[string]*entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go t.janitor(evictPeriod)
	return t
}

// Start registers a new job and returns its progress token.
func (t *Tracker) Start(jobKey string) string {
	token := uuid.New().String()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[token] = &entry{
		jobKey:    jobKey,
		phase:     PhasePending,
		updatedAt: time.Now(),
	}
	return token
}

// SetPhase moves the job to a new pipeline phase.
func (t *Tracker) SetPhase(token string, phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[token]; ok && !e.done {
		e.phase = phase
		e.updatedAt = time.Now()
	}
}

// Publish appends a rendered message to the job's progress stream.
func (t *Tracker) Publish(token string, msg models.RenderedMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[token]; ok && !e.done {
		e.messages = append(e.messages, msg)
		e.updatedAt = time.Now()
	}
}

// Complete marks the job finished successfully.
func (t *Tracker) Complete(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[token]; ok {
		e.phase = PhaseCompleted
		e.done = true
		e.updatedAt = time.Now()
	}
}

// Fail marks the job finished with an error.
func (t *Tracker) Fail(token string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[token]; ok {
		e.phase = PhaseFailed
		e.done = true
		if err != nil {
			e.errMsg = err.Error()
		}
		e.updatedAt = time.Now()
	}
}

// Snapshot returns the job state with messages from offset onward.
// Offsets out of range yield an empty slice rather than an error, so
// pollers that raced a completed job still get the terminal state.
func (t *Tracker) Snapshot(token string, offset int) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[token]
	if !ok {
		return Snapshot{}, false
	}

	total := len(e.messages)
	if offset < 0 {
		offset = 0
	}

	var delta []models.RenderedMessage
	if offset < total {
		delta = make([]models.RenderedMessage, total-offset)
		copy(delta, e.messages[offset:])
	}

	return Snapshot{
		JobKey:   e.jobKey,
		Phase:    e.phase,
		Messages: delta,
		Total:    total,
		Done:     e.done,
		Error:    e.errMsg,
	}, true
}

// Close stops the background eviction loop.
func (t *Tracker) Close() {
	t.stopped.Do(func() {
		close(t.stop)
	})
}

func (t *Tracker) janitor(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.evict(time.Now())
		}
	}
}

func (t *Tracker) evict(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for token, e := range t.entries {
		if e.done && now.Sub(e.updatedAt) > t.ttl {
			delete(t.entries, token)
		}
	}
}
