// Package scan models one scan-to-join interaction. A code scanner
// fires its decode callback repeatedly (several times per second) while
// a code stays in frame; the session accepts only the first decode per
// scanning round and ignores the rest until the result is known.
package scan

import (
	"context"
	"errors"
	"sync"

	"creditbook/internal/model"
	"creditbook/internal/service"
)

type State string

const (
	StateIdle          State = "idle"
	StateScanning      State = "scanning"
	StateProcessing    State = "processing"
	StateJoined        State = "joined"
	StateAlreadyJoined State = "already_joined"
	StateNotFound      State = "not_found"
	StateError         State = "error"
)

// Joiner is the slice of the service a session needs.
type Joiner interface {
	JoinShop(ctx context.Context, link, customerID string) (*model.JoinResult, error)
}

// Session drives Idle, Scanning, Processing, then a terminal state,
// and back to Idle on reset.
// Safe for use from concurrent callbacks.
type Session struct {
	joiner     Joiner
	customerID string

	mu     sync.Mutex
	state  State
	result *model.JoinResult
	err    error
}

func NewSession(joiner Joiner, customerID string) *Session {
	return &Session{joiner: joiner, customerID: customerID, state: StateIdle}
}

// Begin marks the camera ready. No-op unless the session is idle.
func (s *Session) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateScanning
	return true
}

// HandleDecode processes one decoded payload. The first call in a
// scanning round wins and drives the join to a terminal state; calls
// arriving while a join is in flight, or after a terminal state, are
// dropped and return false.
func (s *Session) HandleDecode(ctx context.Context, payload string) bool {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return false
	}
	s.state = StateProcessing
	s.mu.Unlock()

	result, err := s.joiner.JoinShop(ctx, payload, s.customerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.err = result, err

	switch {
	case err == nil && result.Status == model.JoinStatusAlreadyJoined:
		s.state = StateAlreadyJoined
	case err == nil:
		s.state = StateJoined
	case errors.Is(err, service.ErrShopNotFound):
		s.state = StateNotFound
	default:
		s.state = StateError
	}
	return true
}

// Reset returns a settled session to idle. Ignored while a join is
// still in flight.
func (s *Session) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateJoined, StateAlreadyJoined, StateNotFound, StateError:
		s.state = StateIdle
		s.result, s.err = nil, nil
		return true
	}
	return false
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the join outcome once the session has settled.
func (s *Session) Result() (*model.JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}
