package service

import (
	"sync"

	"github.com/desk-kit/support-desk/internal/domain"
)

// Actor is the authorization context supplied by the identity boundary.
// Both the human UI and the automated tool-caller act through the same
// type; services never assume a human caller.
type Actor struct {
	ID        string
	Email     string
	Role      domain.UserRole
	CompanyID string
}

// IsStaff reports whether the actor may act on tickets they did not create.
func (a Actor) IsStaff() bool {
	return a.Role == domain.RoleAdmin || a.Role == domain.RoleAgent
}

// KeyedMutex serializes work per key. Mutations against the same ticket id
// are issued through it to prevent lost updates on rapid sequential edits.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the unlock func. Entries are
// reference-counted and removed once the last holder releases.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
