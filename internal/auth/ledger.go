// Package auth holds the session-revocation ledger consulted on every
// authenticated request.
package auth

import "sync"

// RevocationLedger records the jti of every token invalidated by
// logout. Membership is append-only: there is no un-revoke.
type RevocationLedger interface {
	Add(jti string)
	Contains(jti string) bool
}

// MemoryLedger is a process-lifetime, concurrency-safe revocation set.
// Entries are never persisted or pruned; a restart un-revokes all
// tokens.
type MemoryLedger struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{revoked: make(map[string]struct{})}
}

// Add marks a token id as revoked. Adding an already-revoked id is a
// no-op.
func (l *MemoryLedger) Add(jti string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[jti] = struct{}{}
}

// Contains reports whether a token id has been revoked.
func (l *MemoryLedger) Contains(jti string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.revoked[jti]
	return ok
}
