// Package domain contains core concepts of the chat relay.
// This file defines the Session entity and its invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session is the server-side state for one client connection.
//
// The display name is a write-once cell: nil until the first valid frame,
// then immutable for the session's lifetime. The inbound duty is the only
// writer; the forwarder duty and registry snapshots read it lock-free.
//
// The outbound channel is owned exclusively by the Session. Closing it
// signals the outbound duty to stop; CloseOutbound must only be called once
// every producer has stopped sending.
type Session struct {
	ID uuid.UUID

	name      atomic.Pointer[string]
	outbound  chan []byte
	closeOnce sync.Once
}

// NewSession allocates a session with a fresh random identity and an
// outbound buffer of the given capacity.
func NewSession(outboundBuffer int) *Session {
	if outboundBuffer < 1 {
		outboundBuffer = 1
	}
	return &Session{
		ID:       uuid.New(),
		outbound: make(chan []byte, outboundBuffer),
	}
}

// SetName sets the display name exactly once.
// Returns false when the name was already set; the existing name is kept.
func (s *Session) SetName(name string) bool {
	return s.name.CompareAndSwap(nil, &name)
}

// Name returns the display name and whether it has been set.
func (s *Session) Name() (string, bool) {
	p := s.name.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// Named reports whether the session has left the anonymous state.
func (s *Session) Named() bool {
	return s.name.Load() != nil
}

// Deliver queues a rendered payload for the outbound duty.
// It blocks when the buffer is full and gives up on context cancellation,
// so a stalled writer backs pressure up to the caller instead of growing
// memory without bound.
func (s *Session) Deliver(ctx context.Context, payload []byte) error {
	select {
	case s.outbound <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outbound exposes the receive side of the delivery handle to the
// outbound duty.
func (s *Session) Outbound() <-chan []byte {
	return s.outbound
}

// CloseOutbound closes the delivery handle. Idempotent.
func (s *Session) CloseOutbound() {
	s.closeOnce.Do(func() {
		close(s.outbound)
	})
}
