package steward

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// stripedLock maps keys onto a fixed set of mutexes. Keys that share a
// stripe serialize with each other. Each stripe also carries a generation
// that writers bump whenever they invalidate cached answers for a key on
// that stripe.
type stripedLock struct {
	stripes []sync.Mutex
	gens    []atomic.Uint64
}

func newStripedLock(n int) *stripedLock {
	if n <= 0 {
		n = 1
	}
	return &stripedLock{
		stripes: make([]sync.Mutex, n),
		gens:    make([]atomic.Uint64, n),
	}
}

// lock acquires the stripe for key and returns its release function.
//
//	unlock := l.lock(key)
//	defer unlock()
func (l *stripedLock) lock(key string) func() {
	m := &l.stripes[l.stripe(key)]
	m.Lock()
	return m.Unlock
}

// tryLock acquires the stripe for key only if it is free.
func (l *stripedLock) tryLock(key string) (func(), bool) {
	m := &l.stripes[l.stripe(key)]
	if !m.TryLock() {
		return nil, false
	}
	return m.Unlock, true
}

// generation returns the current generation of the stripe for key.
func (l *stripedLock) generation(key string) uint64 {
	return l.gens[l.stripe(key)].Load()
}

// bump advances the generation of the stripe for key.
func (l *stripedLock) bump(key string) {
	l.gens[l.stripe(key)].Add(1)
}

func (l *stripedLock) stripe(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(l.stripes)))
}
