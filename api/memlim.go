package api

import "sync/atomic"

// Memlimit is a per-caller quota cookie. The allocator calls Add
// before committing an allocation and Sub on release; the cookie
// owns its counter and the allocator does not interpret it further.
type Memlimit interface {
	// Add account n pages against the quota. Return false when that
	// would exceed the quota, in which case nothing is accounted.
	Add(n int64) bool

	// Sub release n pages from the quota.
	Sub(n int64)
}

// Memlim is the default Memlimit over an atomic counter.
type Memlim struct {
	alloced    int64
	maxallowed int64
}

// Newmemlim create a quota cookie allowing maxallowed pages.
func Newmemlim(maxallowed int64) *Memlim {
	return &Memlim{maxallowed: maxallowed}
}

// Add implement Memlimit{} interface.
func (m *Memlim) Add(n int64) bool {
	if alloced := atomic.AddInt64(&m.alloced, n); alloced > m.maxallowed {
		atomic.AddInt64(&m.alloced, -n)
		return false
	}
	return true
}

// Sub implement Memlimit{} interface.
func (m *Memlim) Sub(n int64) {
	atomic.AddInt64(&m.alloced, -n)
}

// Alloced return the pages currently accounted against the quota.
func (m *Memlim) Alloced() int64 {
	return atomic.LoadInt64(&m.alloced)
}
