// Package progress tracks the phase and percentage of a generation run and
// fans updates out to subscribers and publishers.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/logger"
)

// Phase is one of the named stages of a generation run.
type Phase string

// Pipeline phases, in their usual order.
const (
	PhaseNone       Phase = ""
	PhaseJobSave    Phase = "job-save"
	PhaseUserFetch  Phase = "user-fetch"
	PhaseGeneration Phase = "generation"
	PhaseLetterSave Phase = "letter-save"
)

// Phases lists every named phase in pipeline order.
var Phases = []Phase{PhaseJobSave, PhaseUserFetch, PhaseGeneration, PhaseLetterSave}

// Valid reports whether p is a known phase (PhaseNone included).
func (p Phase) Valid() bool {
	switch p {
	case PhaseNone, PhaseJobSave, PhaseUserFetch, PhaseGeneration, PhaseLetterSave:
		return true
	}
	return false
}

func (p Phase) String() string {
	if p == PhaseNone {
		return "idle"
	}
	return string(p)
}

// Update is a snapshot of tracker state.
type Update struct {
	Owner    string    `json:"owner_id,omitempty"`
	Attempt  uint64    `json:"attempt"`
	Phase    Phase     `json:"phase,omitempty"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher receives every update a tracker records.
type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

const (
	subscriberBuffer = 16
	publishTimeout   = 2 * time.Second
)

// Tracker holds the current phase, progress and message of one owner's runs.
// Advance is a plain assignment: no ordering between phases is enforced.
type Tracker struct {
	owner      string
	log        *logger.Logger
	publishers []Publisher

	mu      sync.RWMutex
	state   Update
	subs    map[int]chan Update
	nextSub int
}

// NewTracker creates a tracker for owner. Publishers are called synchronously,
// in order, for every update.
func NewTracker(owner string, log *logger.Logger, publishers ...Publisher) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		owner:      owner,
		log:        log.With("component", "progress", "owner_id", owner),
		publishers: publishers,
		state:      Update{Owner: owner},
		subs:       make(map[int]chan Update),
	}
}

// Begin starts tracking a new attempt and resets phase and progress.
func (t *Tracker) Begin(attempt uint64) {
	t.set(Update{Owner: t.owner, Attempt: attempt})
}

// Advance records phase, progress and message for the current attempt.
// Progress is clamped into 0-100.
func (t *Tracker) Advance(phase Phase, progress int, message string) {
	t.mu.RLock()
	attempt := t.state.Attempt
	t.mu.RUnlock()

	t.set(Update{
		Owner:    t.owner,
		Attempt:  attempt,
		Phase:    phase,
		Progress: clamp(progress),
		Message:  message,
	})
}

// Reset returns the tracker to idle, keeping the attempt number.
func (t *Tracker) Reset() {
	t.mu.RLock()
	attempt := t.state.Attempt
	t.mu.RUnlock()
	t.set(Update{Owner: t.owner, Attempt: attempt})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Update {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Subscribe returns a channel of updates and a function that ends the
// subscription. Slow subscribers miss updates rather than block Advance.
func (t *Tracker) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) set(u Update) {
	u.At = time.Now().UTC()

	t.mu.Lock()
	t.state = u
	for _, ch := range t.subs {
		select {
		case ch <- u:
		default:
			t.log.Warn("progress subscriber full, dropping update", "phase", u.Phase.String())
		}
	}
	t.mu.Unlock()

	if len(t.publishers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for _, p := range t.publishers {
		if err := p.Publish(ctx, u); err != nil {
			t.log.Warn("failed to publish progress", "error", err)
		}
	}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
