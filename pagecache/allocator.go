package pagecache

import (
	"sync/atomic"

	"github.com/hmarui66/bwtree-go/page"
)

// Allocator is an arena-style allocator for in-memory pages. Alloc
// increments a live-byte counter by the allocation's usable size; Dealloc
// decrements it by the same amount. The counter is eventually-consistent
// and exists only so callers can decide when to trigger eviction — no
// locking guards it beyond the atomic add/sub itself.
type Allocator struct {
	arena     *Arena
	liveBytes int64
}

// NewAllocator creates an allocator backed by a fresh arena.
func NewAllocator() *Allocator {
	return &Allocator{arena: NewArena()}
}

// Alloc builds a zeroed page of contentSize bytes, installs it in the
// arena, and returns its arena index plus the page itself.
func (a *Allocator) Alloc(contentSize int) (uint64, *page.Page) {
	p := page.NewPage(contentSize)
	return a.Put(p), p
}

// Put installs an already-built page in the arena and returns its index.
// Used by the tree engine, which builds deltas and base pages itself
// (consolidation, split, merge, reconciliation) rather than growing them
// in place through Alloc.
func (a *Allocator) Put(p *page.Page) uint64 {
	atomic.AddInt64(&a.liveBytes, int64(len(p.Buf)))
	return a.arena.Put(p)
}

// Dealloc releases the arena slot at idx and decrements the live-byte
// counter. It does not walk the chain: callers (epoch-deferred reclamation)
// are responsible for deallocating every page in a chain individually via
// their own next links.
func (a *Allocator) Dealloc(idx uint64) {
	p := a.arena.Get(idx)
	if p == nil {
		return
	}
	atomic.AddInt64(&a.liveBytes, -int64(len(p.Buf)))
	a.arena.Clear(idx)
}

// Get returns the page at the given arena index.
func (a *Allocator) Get(idx uint64) *page.Page {
	return a.arena.Get(idx)
}

// LiveBytes returns the current, eventually-consistent live-byte count.
func (a *Allocator) LiveBytes() int64 {
	return atomic.LoadInt64(&a.liveBytes)
}
