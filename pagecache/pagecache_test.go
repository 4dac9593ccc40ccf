package pagecache_test

import (
	"testing"

	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagecache"
)

func TestArena_putGetAcrossChunkBoundary(t *testing.T) {
	a := pagecache.NewArena()
	var last uint64
	for i := 0; i < 1<<12+5; i++ {
		last = a.Put(page.NewPage(8))
	}
	if got := a.Get(last); got == nil {
		t.Fatalf("Get(%d) = nil, want the last put page", last)
	}
}

func TestArena_clearRemovesPage(t *testing.T) {
	a := pagecache.NewArena()
	idx := a.Put(page.NewPage(8))
	a.Clear(idx)
	if got := a.Get(idx); got != nil {
		t.Errorf("Get() after Clear() = %v, want nil", got)
	}
}

func TestAllocator_liveBytesTracksAllocAndDealloc(t *testing.T) {
	a := pagecache.NewAllocator()
	idx, p := a.Alloc(16)
	size := int64(len(p.Buf))

	if got := a.LiveBytes(); got != size {
		t.Errorf("LiveBytes() after Alloc() = %d, want %d", got, size)
	}
	a.Dealloc(idx)
	if got := a.LiveBytes(); got != 0 {
		t.Errorf("LiveBytes() after Dealloc() = %d, want 0", got)
	}
	if got := a.Get(idx); got != nil {
		t.Errorf("Get() after Dealloc() = %v, want nil", got)
	}
}

func TestAllocator_deallocUnknownIdxIsNoop(t *testing.T) {
	a := pagecache.NewAllocator()
	a.Dealloc(999) // must not panic or go negative
	if got := a.LiveBytes(); got != 0 {
		t.Errorf("LiveBytes() after Dealloc() of unknown idx = %d, want 0", got)
	}
}
