package runtime

import (
	"ephemeral/domain"
	"ephemeral/errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Insert_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession(1)

	// Given an empty registry
	req.Zero(registry.Len())

	// When a session is inserted
	req.NoError(registry.Insert(session))

	// Then it resolves by id
	req.Equal(1, registry.Len())
	found, err := registry.Lookup(session.ID)
	req.NoError(err)
	req.Same(session, found)
}

func TestRegistry_Insert_DuplicateID(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession(1)

	req.NoError(registry.Insert(session))

	// When the same id is inserted again
	err := registry.Insert(session)

	// Then the collision is refused and the original entry survives
	req.ErrorIs(err, errors.ErrDuplicateSession)
	req.Equal(1, registry.Len())
}

func TestRegistry_Remove_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := domain.NewSession(1)
	req.NoError(registry.Insert(session))

	registry.Remove(session.ID)
	_, err := registry.Lookup(session.ID)
	req.ErrorIs(err, errors.ErrSessionNotFound)

	// Removing again must be a no-op
	registry.Remove(session.ID)
	registry.Remove(uuid.New())
	req.Zero(registry.Len())
}

func TestRegistry_SnapshotNamed_SkipsAnonymous(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	named1 := domain.NewSession(1)
	named1.SetName("bob")
	named2 := domain.NewSession(1)
	named2.SetName("alice")
	anonymous := domain.NewSession(1)

	req.NoError(registry.Insert(named1))
	req.NoError(registry.Insert(named2))
	req.NoError(registry.Insert(anonymous))

	// Then only named participants appear, in sorted order
	req.Equal([]string{"alice", "bob"}, registry.SnapshotNamed())
	req.Equal(3, registry.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := domain.NewSession(1)
			session.SetName(session.ID.String())
			req.NoError(registry.Insert(session))
			_, err := registry.Lookup(session.ID)
			req.NoError(err)
			_ = registry.SnapshotNamed()
			registry.Remove(session.ID)
		}()
	}
	wg.Wait()

	req.Zero(registry.Len())
	req.Empty(registry.SnapshotNamed())
}
