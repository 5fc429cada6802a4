// internal/engine/lockmap.go
package engine

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

// lockMap hands out one RWMutex per curve. Entries are reference counted and
// dropped when the last holder releases them.
type lockMap struct {
	mu sync.Mutex
	m  map[solana.PublicKey]*holderLock
}

type holderLock struct {
	holders int
	mu      sync.RWMutex
}

func newLockMap() *lockMap {
	return &lockMap{m: make(map[solana.PublicKey]*holderLock)}
}

func (l *lockMap) Lock(key solana.PublicKey)    { l.acquire(key).mu.Lock() }
func (l *lockMap) RLock(key solana.PublicKey)   { l.acquire(key).mu.RLock() }
func (l *lockMap) Unlock(key solana.PublicKey)  { l.release(key, true) }
func (l *lockMap) RUnlock(key solana.PublicKey) { l.release(key, false) }

func (l *lockMap) acquire(key solana.PublicKey) *holderLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	hl, ok := l.m[key]
	if !ok {
		hl = &holderLock{}
		l.m[key] = hl
	}
	hl.holders++
	return hl
}

func (l *lockMap) release(key solana.PublicKey, write bool) {
	l.mu.Lock()
	hl, ok := l.m[key]
	if !ok {
		l.mu.Unlock()
		panic("engine: unlock of unlocked curve " + key.String())
	}
	hl.holders--
	if hl.holders == 0 {
		delete(l.m, key)
	}
	l.mu.Unlock()

	if write {
		hl.mu.Unlock()
	} else {
		hl.mu.RUnlock()
	}
}

// size returns the number of curves with holders.
func (l *lockMap) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
