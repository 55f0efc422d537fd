package qa

import (
	"context"
	"sync"
)

type sessionEntry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SessionRegistry tracks the in-flight generation per session so a
// resubmitted or explicitly cancelled query can stop its predecessor.
// At most one generation runs per session at a time.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*sessionEntry)}
}

// Register derives a cancellable context for a new generation. Any prior
// generation of the same session is cancelled first, and Register blocks
// until it has fully released its resources. The returned release func is
// idempotent and must be called when the generation ends.
func (r *SessionRegistry) Register(ctx context.Context, sessionID string) (context.Context, func()) {
	genCtx, cancel := context.WithCancel(ctx)
	if sessionID == "" {
		return genCtx, cancel
	}

	entry := &sessionEntry{cancel: cancel, done: make(chan struct{})}
	for {
		r.mu.Lock()
		prev := r.sessions[sessionID]
		if prev == nil {
			r.sessions[sessionID] = entry
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()
		prev.cancel()
		<-prev.done
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			r.mu.Lock()
			if r.sessions[sessionID] == entry {
				delete(r.sessions, sessionID)
			}
			r.mu.Unlock()
			close(entry.done)
		})
	}
	return genCtx, release
}

// Cancel stops the in-flight generation of a session, if any. Returns
// whether a generation was found.
func (r *SessionRegistry) Cancel(sessionID string) bool {
	r.mu.Lock()
	entry := r.sessions[sessionID]
	r.mu.Unlock()
	if entry == nil {
		return false
	}
	entry.cancel()
	return true
}

// Active reports the number of sessions with an in-flight generation.
func (r *SessionRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
