// Package keylock provides per-key mutual exclusion for serializing
// read-then-write sequences on the same logical entity (one user's
// progress in one unit group) while leaving unrelated keys fully
// parallel. No external dependencies - uses only standard library.
package keylock

import "sync"

// entry is one key's lock plus a reference count so idle entries can be
// evicted from the registry.
type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock is a registry of named mutexes. The zero value is not usable;
// create instances with New.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{
		locks: make(map[string]*entry),
	}
}

// Lock acquires the mutex for key, creating it on first use. Blocks
// until the holder releases it.
func (kl *KeyLock) Lock(key string) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		e = &entry{}
		kl.locks[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. The entry is evicted once no
// goroutine holds or waits on it.
func (kl *KeyLock) Unlock(key string) {
	kl.mu.Lock()
	e, ok := kl.locks[key]
	if !ok {
		kl.mu.Unlock()
		panic("keylock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	e.mu.Unlock()
}

// Do runs fn while holding the key's mutex.
func (kl *KeyLock) Do(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// Size returns the number of keys currently held or contended, for
// diagnostics.
func (kl *KeyLock) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
