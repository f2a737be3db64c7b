package orchestrator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrIllegalTransition is returned when the sequencer is asked to move to a
// state that cannot follow its current one.
var ErrIllegalTransition = errors.New("illegal execution state transition")

// Phase is the coarse state of an execution.
type Phase int

const (
	PhasePending Phase = iota
	PhaseRunning
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "Pending"
	case PhaseRunning:
		return "Running"
	case PhaseSucceeded:
		return "Succeeded"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the sequencer's position. Stage is only meaningful while running
// or after failing, where it names the stage that failed.
type State struct {
	Phase Phase
	Stage int
}

func (s State) String() string {
	if s.Phase == PhaseRunning || s.Phase == PhaseFailed {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Stage)
	}
	return s.Phase.String()
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// Sequencer tracks one execution through
// Pending -> Running(0) -> ... -> Running(n-1) -> Succeeded, with Failed
// reachable from any running stage.
type Sequencer struct {
	mu     sync.Mutex
	stages int
	state  State
}

// NewSequencer creates a sequencer for an execution of n stages.
func NewSequencer(n int) *Sequencer {
	return &Sequencer{stages: n}
}

// State returns the current state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start enters the first stage.
func (s *Sequencer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhasePending {
		return s.illegal("start")
	}
	if s.stages == 0 {
		return fmt.Errorf("%w: execution has no stages", ErrIllegalTransition)
	}
	s.state = State{Phase: PhaseRunning}
	return nil
}

// Advance records that every action of the current stage succeeded. It
// moves to the next stage, or to Succeeded after the last one.
func (s *Sequencer) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseRunning {
		return s.illegal("advance")
	}
	if s.state.Stage+1 == s.stages {
		s.state = State{Phase: PhaseSucceeded, Stage: s.state.Stage}
		return nil
	}
	s.state.Stage++
	return nil
}

// Fail records that an action of the current stage failed.
func (s *Sequencer) Fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseRunning {
		return s.illegal("fail")
	}
	s.state.Phase = PhaseFailed
	return nil
}

func (s *Sequencer) illegal(op string) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrIllegalTransition, op, s.state)
}
