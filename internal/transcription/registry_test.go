package transcription

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/types"
)

func newRegistrySession(id, user string, lastActive time.Time) *Session {
	return NewSession(Options{
		ID:     id,
		UserID: user,
		Mode:   types.ModeCasual,
		Verses: genesisOne(2),
		Now:    func() time.Time { return lastActive },
	})
}

func TestRegistryOwnership(t *testing.T) {
	var removed int32
	reg := NewRegistry(time.Minute, func(*Session) { atomic.AddInt32(&removed, 1) })
	reg.Add(newRegistrySession("a", "alice", time.Now()))

	s, err := reg.Get("a", "alice")
	require.NoError(t, err)
	assert.Equal(t, "a", s.ID())

	_, err = reg.Get("a", "bob")
	assert.Equal(t, apperrors.CodeForbidden, apperrors.Categorize(err).Code)

	_, err = reg.Get("missing", "alice")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.Categorize(err).Code)

	assert.Error(t, reg.Remove("a", "bob"))
	require.NoError(t, reg.Remove("a", "alice"))
	assert.True(t, s.Closed())
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&removed))
}

func TestRegistryReapIdle(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(10*time.Minute, nil)
	reg.now = func() time.Time { return now }

	stale := newRegistrySession("stale", "alice", now.Add(-time.Hour))
	fresh := newRegistrySession("fresh", "alice", now.Add(-time.Minute))
	reg.Add(stale)
	reg.Add(fresh)

	assert.Equal(t, 1, reg.ReapIdle())
	assert.True(t, stale.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryScheduledReaper(t *testing.T) {
	reg := NewRegistry(time.Millisecond, nil)
	s := newRegistrySession("old", "alice", time.Now().Add(-time.Hour))
	reg.Add(s)

	require.NoError(t, reg.Start(20*time.Millisecond))
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.Closed())

	reg.Add(newRegistrySession("late", "bob", time.Now()))
	require.NoError(t, reg.Shutdown())
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryEveryRunsOnSharedScheduler(t *testing.T) {
	reg := NewRegistry(time.Hour, nil)
	require.Error(t, reg.Every("early", time.Millisecond, func() {}), "scheduler not started")

	require.NoError(t, reg.Start(time.Hour))
	var runs atomic.Int32
	require.NoError(t, reg.Every("count", 10*time.Millisecond, func() { runs.Add(1) }))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Shutdown())
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load(), "jobs stop with the registry")
}
