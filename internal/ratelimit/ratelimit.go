// Package ratelimit tracks per-client cooldowns for session writes.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// CooldownError reports that a client acted again before its cooldown
// elapsed. RetryAfter is how long the client must still wait.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, retry in %.1fs", e.RetryAfter.Seconds())
}

// Limiter remembers, per (scope, client), the time of the last accepted
// action. A scope is one session, e.g. "form/feedback".
type Limiter struct {
	mu   sync.Mutex
	last map[string]map[string]time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{last: make(map[string]map[string]time.Time)}
}

// CheckAndRecord accepts the action iff the client has no prior record in
// the scope or at least cooldown has elapsed since it. On acceptance the
// record is updated to now in the same critical section, so two concurrent
// requests from one client cannot both pass. A cooldown <= 0 always
// accepts. Rejections return a *CooldownError.
func (l *Limiter) CheckAndRecord(scope, clientID string, cooldown time.Duration, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	clients := l.last[scope]
	if cooldown > 0 {
		if prev, ok := clients[clientID]; ok {
			elapsed := now.Sub(prev)
			if elapsed < cooldown {
				return &CooldownError{RetryAfter: cooldown - elapsed}
			}
		}
	}
	if clients == nil {
		clients = make(map[string]time.Time)
		l.last[scope] = clients
	}
	clients[clientID] = now
	return nil
}

// Seed installs a last-accepted timestamp, used when restoring persisted
// session state after a restart.
func (l *Limiter) Seed(scope, clientID string, last time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	clients := l.last[scope]
	if clients == nil {
		clients = make(map[string]time.Time)
		l.last[scope] = clients
	}
	clients[clientID] = last
}

// Snapshot returns a copy of the scope's per-client timestamps for
// persistence alongside the owning session.
func (l *Limiter) Snapshot(scope string) map[string]time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]time.Time, len(l.last[scope]))
	for client, at := range l.last[scope] {
		out[client] = at
	}
	return out
}

// Reset forgets every record in the scope.
func (l *Limiter) Reset(scope string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.last, scope)
}
