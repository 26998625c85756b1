// Package status holds the lifecycle phase shared by every front-end.
//
// A single Store is created at startup and passed to the orchestrator, the
// desktop service and the CLI. All transitions happen under one lock so
// readers never observe a phase from one run paired with a result from
// another.
package status

import (
	"sync"
	"time"
)

// Kind is the lifecycle phase without its payload.
type Kind int

const (
	Idle Kind = iota
	Recording
	Transcribing
	Error
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Phase is the current lifecycle phase. Message is only set for Error.
type Phase struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
}

// Busy reports whether a run owns the pipeline.
func (p Phase) Busy() bool {
	return p.Kind == Recording || p.Kind == Transcribing
}

// Failed builds an Error phase.
func Failed(message string) Phase {
	return Phase{Kind: Error, Message: message}
}

// Snapshot is a copy of the store at one instant.
type Snapshot struct {
	Phase      Phase     `json:"phase"`
	LastResult *string   `json:"lastResult,omitempty"`
	RunID      string    `json:"runId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store is the shared status record.
type Store struct {
	mu         sync.Mutex
	phase      Phase
	lastResult *string
	runID      string
	updatedAt  time.Time

	now func() time.Time
}

// New returns an idle store.
func New() *Store {
	return &Store{now: time.Now, updatedAt: time.Now()}
}

// Read returns a consistent copy of the store.
func (s *Store) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:     s.phase,
		RunID:     s.runID,
		UpdatedAt: s.updatedAt,
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.LastResult = &r
	}
	return snap
}

// SetPhase replaces the phase. LastResult is untouched.
func (s *Store) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(p)
}

// Complete records a successful result and returns to Idle atomically.
func (s *Store) Complete(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = &text
	s.set(Phase{Kind: Idle})
}

// Fail moves to Error(message). LastResult is untouched.
func (s *Store) Fail(message string) {
	s.SetPhase(Failed(message))
}

// Admit moves the store to Recording for runID unless a run is already
// Recording or Transcribing. It reports whether the caller now owns the
// pipeline; on false the store is unchanged.
func (s *Store) Admit(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Busy() {
		return false
	}
	s.runID = runID
	s.set(Phase{Kind: Recording})
	return true
}

// Reset clears an Error phase back to Idle. Other phases are left alone.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Kind == Error {
		s.set(Phase{Kind: Idle})
	}
}

// set must be called with mu held.
func (s *Store) set(p Phase) {
	s.phase = p
	s.updatedAt = s.now()
}
