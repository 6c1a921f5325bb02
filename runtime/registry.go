package runtime

import (
	"ephemeral/contract"
	"ephemeral/domain"
	"ephemeral/errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the process-wide table of live sessions.
//
// Mutation is exclusive, reads run concurrently. The invariant callers rely
// on: an id resolves through Lookup exactly as long as that connection's
// teardown has not completed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
}

var _ contract.Registry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*domain.Session)}
}

// Insert adds a new session. With 128-bit random ids a collision means a
// generator defect, so it is refused rather than silently overwritten.
func (r *Registry) Insert(session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return errors.ErrDuplicateSession
	}
	r.sessions[session.ID] = session
	return nil
}

// Remove deletes the entry if present. Idempotent no-op when absent.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Lookup resolves an id to its live session.
func (r *Registry) Lookup(id uuid.UUID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, errors.ErrSessionNotFound
	}
	return session, nil
}

// SnapshotNamed returns the display names of all named participants at the
// instant of the call, sorted for stable output. Anonymous sessions are
// excluded.
func (r *Registry) SnapshotNamed() []string {
	r.mu.RLock()
	names := lo.FilterMap(lo.Values(r.sessions), func(s *domain.Session, _ int) (string, bool) {
		return s.Name()
	})
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of live sessions, named or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
