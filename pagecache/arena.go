// Package pagecache implements the in-memory page arena and a size-tracked
// allocator, the "in a language without raw pointers, the in-memory variant
// stores an index into an arena of pages protected by the same epoch
// scheme" strategy this module adopts in place of the raw-pointer mapping
// slot a systems language would use.
package pagecache

import (
	"sync"
	"sync/atomic"

	"github.com/hmarui66/bwtree-go/page"
)

const chunkSize = 1 << 12

// Arena is a growable, append-only, chunked directory of live pages. Once a
// chunk is allocated its address never moves, so readers who captured a
// slot index keep a valid handle across concurrent growth — the same
// guarantee the mapping table itself gives PIDs.
type Arena struct {
	mu     sync.Mutex
	chunks [][]atomic.Pointer[page.Page]
	next   uint64
}

// NewArena creates an empty arena. Index 0 is reserved and never handed
// out by Put: it coincides with the encoded "unused slot" and chain
// terminator value (EncodeAddr(Mem(0)) == 0), so a live page must never
// land there.
func NewArena() *Arena {
	return &Arena{next: 1}
}

func (a *Arena) chunkFor(idx uint64) *[]atomic.Pointer[page.Page] {
	c := idx / chunkSize
	a.mu.Lock()
	for uint64(len(a.chunks)) <= c {
		a.chunks = append(a.chunks, make([]atomic.Pointer[page.Page], chunkSize))
	}
	chunk := &a.chunks[c]
	a.mu.Unlock()
	return chunk
}

// Put installs p at a freshly allocated arena index and returns it.
func (a *Arena) Put(p *page.Page) uint64 {
	idx := atomic.AddUint64(&a.next, 1) - 1
	chunk := a.chunkFor(idx)
	(*chunk)[idx%chunkSize].Store(p)
	return idx
}

// Get returns the page stored at idx, or nil if none.
func (a *Arena) Get(idx uint64) *page.Page {
	chunk := a.chunkFor(idx)
	return (*chunk)[idx%chunkSize].Load()
}

// Clear removes the page at idx so its slot may be reclaimed. It does not
// reuse the index: arena indices, like PIDs, are append-only within a
// process lifetime.
func (a *Arena) Clear(idx uint64) {
	chunk := a.chunkFor(idx)
	(*chunk)[idx%chunkSize].Store(nil)
}
