// Package presence maintains the authoritative in-memory map of who is
// currently reachable. At most one session may be registered per username;
// a second concurrent attempt is rejected, never evicts the first.
package presence

import (
	"context"
	"sort"
	"sync"

	"github.com/avelkaya/whisperline/internal/common"
	"github.com/avelkaya/whisperline/internal/logging"
	"github.com/avelkaya/whisperline/internal/server/instrument"
	"github.com/avelkaya/whisperline/internal/wire"
)

// Session is the live connection handle the registry references for lookup
// and delivery. The registry never controls a session's lifecycle.
//
// Send must not block: implementations queue the event and drop it if the
// session is gone or its queue is full.
type Session interface {
	// ID distinguishes two sessions for the same username, so a stale
	// disconnect cannot remove a newer session's entry.
	ID() string

	Send(event string, payload any)
}

// Registry is the single mutable shared state of the core. All operations
// are linearizable under one mutex; the presence-change broadcast happens
// inside the mutating operations so that every mutation implies exactly one
// broadcast, in mutation order.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session

	logger  logging.Logger
	metrics *instrument.Metrics
}

func NewRegistry(l logging.Logger, m *instrument.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		logger:   l.With("module", "presence"),
		metrics:  m,
	}
}

// Register claims username for s. It returns common.ErrDuplicateSession when
// the username already has a live entry; on success the updated username set
// is broadcast to every registered session, s included.
func (r *Registry) Register(ctx context.Context, username string, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; ok {
		return common.ErrDuplicateSession
	}
	r.sessions[username] = s
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))

	r.logger.Info(ctx, "session registered", "username", username, "sid", s.ID())
	r.broadcastLocked()
	return nil
}

// Unregister removes the entry for username only if it still points at s,
// guarding against a stale disconnect racing a newer connect. The username
// set is broadcast regardless, keeping observers consistent.
func (r *Registry) Unregister(ctx context.Context, username string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[username]; ok && cur.ID() == s.ID() {
		delete(r.sessions, username)
		r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
		r.logger.Info(ctx, "session unregistered", "username", username, "sid", s.ID())
	}
	r.broadcastLocked()
}

// Lookup returns the live session for username, if any.
func (r *Registry) Lookup(username string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[username]
	return s, ok
}

// Usernames returns a sorted snapshot of the registered usernames.
func (r *Registry) Usernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.usernamesLocked()
}

func (r *Registry) usernamesLocked() []string {
	names := make([]string, 0, len(r.sessions))
	for u := range r.sessions {
		names = append(names, u)
	}
	sort.Strings(names)
	return names
}

// broadcastLocked fans the current username set out to every registered
// session. Sends are non-blocking, so holding the mutex here keeps
// broadcasts in mutation order without risking a stall.
func (r *Registry) broadcastLocked() {
	names := r.usernamesLocked()
	for _, s := range r.sessions {
		s.Send(wire.EventUsers, names)
	}
}
