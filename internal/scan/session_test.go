package scan

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"creditbook/internal/model"
	"creditbook/internal/service"
)

type mockJoiner struct {
	mu     sync.Mutex
	calls  int
	result *model.JoinResult
	err    error
	block  chan struct{} // when set, JoinShop waits until closed
}

func (m *mockJoiner) JoinShop(ctx context.Context, link, customerID string) (*model.JoinResult, error) {
	m.mu.Lock()
	m.calls++
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return m.result, m.err
}

func (m *mockJoiner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestSession_FirstDecodeWins(t *testing.T) {
	j := &mockJoiner{result: &model.JoinResult{Status: model.JoinStatusJoined, ShopName: "Corner Store"}}
	s := NewSession(j, "cust-1")

	if !s.Begin() {
		t.Fatal("Begin() = false, want true")
	}
	if !s.HandleDecode(context.Background(), "corner-store") {
		t.Fatal("first decode rejected")
	}
	if s.State() != StateJoined {
		t.Fatalf("state = %s, want %s", s.State(), StateJoined)
	}

	// Scanner keeps firing after the terminal state; all ignored.
	for i := 0; i < 3; i++ {
		if s.HandleDecode(context.Background(), "corner-store") {
			t.Fatal("decode accepted after terminal state")
		}
	}
	if j.callCount() != 1 {
		t.Fatalf("JoinShop called %d times, want 1", j.callCount())
	}
}

func TestSession_ReentrantDecodeWhileProcessing(t *testing.T) {
	block := make(chan struct{})
	j := &mockJoiner{result: &model.JoinResult{Status: model.JoinStatusJoined}, block: block}
	s := NewSession(j, "cust-1")
	s.Begin()

	done := make(chan bool)
	go func() { done <- s.HandleDecode(context.Background(), "slug") }()

	// Wait until the join is in flight, then fire the callback again.
	for s.State() != StateProcessing {
		runtime.Gosched()
	}
	if s.HandleDecode(context.Background(), "slug") {
		t.Error("decode accepted while processing")
	}

	close(block)
	if !<-done {
		t.Fatal("first decode should have been accepted")
	}
	if j.callCount() != 1 {
		t.Fatalf("JoinShop called %d times, want 1", j.callCount())
	}
}

func TestSession_TerminalStates(t *testing.T) {
	tests := []struct {
		name   string
		result *model.JoinResult
		err    error
		want   State
	}{
		{"joined", &model.JoinResult{Status: model.JoinStatusJoined}, nil, StateJoined},
		{"already joined", &model.JoinResult{Status: model.JoinStatusAlreadyJoined}, nil, StateAlreadyJoined},
		{"not found", nil, service.ErrShopNotFound, StateNotFound},
		{"invalid input", nil, service.ErrInvalidLink, StateError},
		{"store failure", nil, errors.New("connection refused"), StateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&mockJoiner{result: tt.result, err: tt.err}, "cust-1")
			s.Begin()
			s.HandleDecode(context.Background(), "slug")
			if s.State() != tt.want {
				t.Errorf("state = %s, want %s", s.State(), tt.want)
			}
		})
	}
}

func TestSession_ResetReturnsToIdle(t *testing.T) {
	j := &mockJoiner{err: service.ErrShopNotFound}
	s := NewSession(j, "cust-1")

	s.Begin()
	s.HandleDecode(context.Background(), "missing")
	if s.State() != StateNotFound {
		t.Fatalf("state = %s, want %s", s.State(), StateNotFound)
	}

	if !s.Reset() {
		t.Fatal("Reset() = false on terminal state")
	}
	if s.State() != StateIdle {
		t.Fatalf("state after reset = %s, want %s", s.State(), StateIdle)
	}
	if result, err := s.Result(); result != nil || err != nil {
		t.Error("Reset should clear the previous result")
	}

	// A fresh round works end to end.
	j.err = nil
	j.result = &model.JoinResult{Status: model.JoinStatusJoined}
	s.Begin()
	if !s.HandleDecode(context.Background(), "slug") {
		t.Fatal("decode rejected after reset")
	}
	if s.State() != StateJoined {
		t.Fatalf("state = %s, want %s", s.State(), StateJoined)
	}
}

func TestSession_DecodeBeforeBeginIgnored(t *testing.T) {
	j := &mockJoiner{}
	s := NewSession(j, "cust-1")
	if s.HandleDecode(context.Background(), "slug") {
		t.Error("decode accepted while idle")
	}
	if j.callCount() != 0 {
		t.Error("JoinShop called without a scanning round")
	}
}

func TestSession_ResetWhileScanningIgnored(t *testing.T) {
	s := NewSession(&mockJoiner{}, "cust-1")
	s.Begin()
	if s.Reset() {
		t.Error("Reset() accepted while scanning")
	}
}
