package pagetable_test

import (
	"testing"

	"github.com/hmarui66/bwtree-go/pagetable"
)

func TestAddr_encodeDecodeRoundTrip(t *testing.T) {
	cases := []pagetable.Addr{
		pagetable.Mem(0),
		pagetable.Mem(12345),
		pagetable.Disk(0),
		pagetable.Disk(98765),
	}
	for _, a := range cases {
		raw := pagetable.EncodeAddr(a)
		got := pagetable.DecodeAddr(raw)
		if got != a {
			t.Errorf("DecodeAddr(EncodeAddr(%+v)) = %+v", a, got)
		}
	}
}

func TestTable_allocSkipsRootPID(t *testing.T) {
	tb := pagetable.New()
	pid := tb.Alloc()
	if pid == pagetable.RootPID {
		t.Errorf("Alloc() returned reserved root PID %d", pagetable.RootPID)
	}
}

func TestTable_setThenGetRoundTrips(t *testing.T) {
	tb := pagetable.New()
	pid := tb.Alloc()
	want := pagetable.Mem(7)
	tb.Set(pid, want)
	if got := tb.Get(pid); got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestTable_casFailsOnStaleOld(t *testing.T) {
	tb := pagetable.New()
	pid := tb.Alloc()
	first := pagetable.Mem(1)
	tb.Set(pid, first)

	if _, ok := tb.CAS(pid, pagetable.Mem(999), pagetable.Mem(2)); ok {
		t.Errorf("CAS() with stale old succeeded, want failure")
	}
	if got := tb.Get(pid); got != first {
		t.Errorf("Get() after failed CAS = %+v, want unchanged %+v", got, first)
	}

	if _, ok := tb.CAS(pid, first, pagetable.Mem(2)); !ok {
		t.Errorf("CAS() with correct old failed, want success")
	}
	if got := tb.Get(pid); got != pagetable.Mem(2) {
		t.Errorf("Get() after successful CAS = %+v, want Mem(2)", got)
	}
}

func TestTable_freeRecyclesPID(t *testing.T) {
	tb := pagetable.New()
	pid := tb.Alloc()
	tb.Free(pid)
	got := tb.Alloc()
	if got != pid {
		t.Errorf("Alloc() after Free() = %d, want reuse of %d", got, pid)
	}
}

func TestTable_allocAcrossChunkBoundary(t *testing.T) {
	tb := pagetable.New()
	var last pagetable.PID
	for i := 0; i < 1<<12+10; i++ {
		last = tb.Alloc()
	}
	want := pagetable.Mem(42)
	tb.Set(last, want)
	if got := tb.Get(last); got != want {
		t.Errorf("Get() past a chunk boundary = %+v, want %+v", got, want)
	}
}
