/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import "sync"

// keyLock serializes operations on the same key. Different keys never contend.
// Entries are reference counted and removed as soon as the last holder unlocks,
// so the registry never grows beyond the number of keys being processed right now.
type keyLock struct {
	mu      sync.Mutex
	entries map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for the key and returns the func releasing it.
func (kl *keyLock) Lock(key string) (unlock func()) {
	kl.mu.Lock()
	e, ok := kl.entries[key]
	if !ok {
		e = &keyLockEntry{}
		kl.entries[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		kl.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(kl.entries, key)
		}
		kl.mu.Unlock()
	}
}
