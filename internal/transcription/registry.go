package transcription

import (
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
)

// Registry holds server-side sessions and closes the ones left idle
type Registry struct {
	idleTimeout time.Duration
	now         func() time.Time
	onRemove    func(*Session)

	mu       sync.RWMutex
	sessions map[string]*Session

	scheduler gocron.Scheduler
}

// NewRegistry creates a registry. onRemove, when set, is called once for
// every session that leaves the registry.
func NewRegistry(idleTimeout time.Duration, onRemove func(*Session)) *Registry {
	return &Registry{
		idleTimeout: idleTimeout,
		now:         time.Now,
		onRemove:    onRemove,
		sessions:    make(map[string]*Session),
	}
}

// Add registers a session
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

// Get returns the session if it exists and belongs to userID
func (r *Registry) Get(id, userID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNotFoundError("session", id)
	}
	if s.UserID() != userID {
		return nil, apperrors.NewForbiddenError("session belongs to another user")
	}
	return s, nil
}

// Remove closes and drops a session owned by userID
func (r *Registry) Remove(id, userID string) error {
	s, err := r.Get(id, userID)
	if err != nil {
		return err
	}
	r.drop(s)
	return nil
}

func (r *Registry) drop(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s.ID()]
	delete(r.sessions, s.ID())
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	if r.onRemove != nil {
		r.onRemove(s)
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ReapIdle closes sessions that have been idle longer than the timeout.
// Finished sessions are reaped on the same schedule.
func (r *Registry) ReapIdle() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.RLock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range stale {
		r.drop(s)
	}
	if len(stale) > 0 {
		logging.WithField("reaped", len(stale)).Info("Closed idle transcription sessions")
	}
	return len(stale)
}

// Start runs the reaper every interval
func (r *Registry) Start(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	r.scheduler = sched

	if err := r.Every("reap-idle-sessions", interval, func() { r.ReapIdle() }); err != nil {
		r.scheduler = nil
		_ = sched.Shutdown()
		return err
	}

	sched.Start()
	return nil
}

// Every adds a periodic job to the reaper's scheduler. It stops with
// Shutdown. Start must have been called.
func (r *Registry) Every(name string, interval time.Duration, task func()) error {
	if r.scheduler == nil {
		return errors.New("registry scheduler not started")
	}
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Shutdown stops the reaper and closes every session
func (r *Registry) Shutdown() error {
	var err error
	if r.scheduler != nil {
		err = r.scheduler.Shutdown()
	}

	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		r.drop(s)
	}
	return err
}
