package epoch_test

import (
	"testing"

	"github.com/hmarui66/bwtree-go/epoch"
)

func TestRegistry_deferredRunsOnlyAfterLastPinUnpins(t *testing.T) {
	r := epoch.NewRegistry()

	g1 := r.Pin()
	g2 := r.Pin()

	ran := false
	g1.Defer(func() { ran = true })

	g1.Unpin()
	if ran {
		t.Fatalf("deferred closure ran while g2 is still pinned at the same epoch")
	}

	g2.Unpin()
	if !ran {
		t.Errorf("deferred closure did not run after all pins on its epoch released")
	}
}

func TestRegistry_newGuardAfterAdvanceSeesLaterEpoch(t *testing.T) {
	r := epoch.NewRegistry()

	g1 := r.Pin()
	e1 := g1.Epoch()
	g1.Defer(func() {})
	g1.Unpin()

	g2 := r.Pin()
	defer g2.Unpin()
	if g2.Epoch() <= e1 {
		t.Errorf("second pin's epoch %d is not after first pin's epoch %d", g2.Epoch(), e1)
	}
}

func TestGuard_unpinIsIdempotent(t *testing.T) {
	r := epoch.NewRegistry()
	g := r.Pin()
	g.Unpin()
	g.Unpin() // must not panic or double-release
}
