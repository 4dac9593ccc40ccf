package bwtree

import (
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/pagetable"
	"github.com/hmarui66/bwtree-go/store/memstore"
)

func TestTree_emptyTree(t *testing.T) {
	tr := Open(DefaultOptions(), nil)
	guard := tr.Pin()
	defer guard.Unpin()

	if err := tr.Put([]byte("a"), 1, []byte("x"), guard); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if v, ok, err := tr.Get([]byte("a"), 1, guard); err != nil || !ok || string(v) != "x" {
		t.Errorf("Get(a, 1) = %q, %v, %v; want x, true, nil", v, ok, err)
	}
	if _, ok, err := tr.Get([]byte("a"), 0, guard); err != nil || ok {
		t.Errorf("Get(a, 0) = ok %v, err %v; want false, nil", ok, err)
	}
}

func TestTree_overwrite(t *testing.T) {
	tr := Open(DefaultOptions(), nil)
	guard := tr.Pin()
	defer guard.Unpin()

	mustPut(t, tr, guard, "a", 1, "x")
	mustPut(t, tr, guard, "a", 2, "y")

	if v, ok, err := tr.Get([]byte("a"), 2, guard); err != nil || !ok || string(v) != "y" {
		t.Errorf("Get(a, 2) = %q, %v, %v; want y, true, nil", v, ok, err)
	}
	if v, ok, err := tr.Get([]byte("a"), 1, guard); err != nil || !ok || string(v) != "x" {
		t.Errorf("Get(a, 1) = %q, %v, %v; want x, true, nil", v, ok, err)
	}
}

func TestTree_tombstone(t *testing.T) {
	tr := Open(DefaultOptions(), nil)
	guard := tr.Pin()
	defer guard.Unpin()

	mustPut(t, tr, guard, "a", 1, "x")
	if err := tr.Delete([]byte("a"), 2, guard); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok, err := tr.Get([]byte("a"), 2, guard); err != nil || ok {
		t.Errorf("Get(a, 2) after delete = ok %v, err %v; want false, nil", ok, err)
	}
	if v, ok, err := tr.Get([]byte("a"), 1, guard); err != nil || !ok || string(v) != "x" {
		t.Errorf("Get(a, 1) after delete = %q, %v, %v; want x, true, nil", v, ok, err)
	}
}

func TestTree_forcedConsolidation(t *testing.T) {
	log.SetOutput(io.Discard)
	opts := DefaultOptions()
	opts.DataDeltaLength = 4
	tr := Open(opts, nil)
	guard := tr.Pin()
	defer guard.Unpin()

	keys := []string{"a", "b", "c", "d", "e", "f"}
	for i, k := range keys {
		mustPut(t, tr, guard, k, uint64(i+1), k+"-value")
	}

	leaf, _, err := tr.descend([]byte(keys[0]), guard)
	if err != nil {
		t.Fatalf("descend() error = %v", err)
	}
	if got := leaf.page.ChainLen(); got != 1 {
		t.Errorf("leaf chain length = %d, want 1 after forced consolidation", got)
	}

	for i, k := range keys {
		if v, ok, err := tr.Get([]byte(k), uint64(i+1), guard); err != nil || !ok || string(v) != k+"-value" {
			t.Errorf("Get(%q) = %q, %v, %v; want %s-value, true, nil", k, v, ok, err, k)
		}
	}
}

func TestTree_leafSplit(t *testing.T) {
	log.SetOutput(io.Discard)
	opts := DefaultOptions()
	opts.DataNodeSize = 64
	opts.DataDeltaLength = 2
	tr := Open(opts, nil)
	guard := tr.Pin()
	defer guard.Unpin()

	var keys []string
	for i := 0; i < 64; i++ {
		k := fmt.Sprintf("key-%03d", i)
		keys = append(keys, k)
		mustPut(t, tr, guard, k, uint64(i+1), "value")
	}

	root, err := tr.loadNode(0)
	if err != nil {
		t.Fatalf("loadNode(root) error = %v", err)
	}
	entries, err := tr.materializeIndex(root)
	if err != nil {
		t.Fatalf("materializeIndex() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("root has %d children, want at least 2 (split should have fired)", len(entries))
	}

	for i, k := range keys {
		if v, ok, err := tr.Get([]byte(k), uint64(i+1), guard); err != nil || !ok || string(v) != "value" {
			t.Errorf("Get(%q) = %q, %v, %v; want value, true, nil", k, v, ok, err)
		}
	}
}

func TestTree_readerSurvivesSplitConcurrently(t *testing.T) {
	log.SetOutput(io.Discard)
	opts := DefaultOptions()
	opts.DataNodeSize = 64
	opts.DataDeltaLength = 2
	tr := Open(opts, nil)

	seedGuard := tr.Pin()
	mustPut(t, tr, seedGuard, "k", 1, "seed-value")
	seedGuard.Unpin()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		g := tr.Pin()
		defer g.Unpin()
		for i := 0; i < 200; i++ {
			if v, ok, err := tr.Get([]byte("k"), 1, g); err != nil || !ok || string(v) != "seed-value" {
				t.Errorf("reader: Get(k) = %q, %v, %v; want seed-value, true, nil", v, ok, err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		g := tr.Pin()
		defer g.Unpin()
		for i := 0; i < 64; i++ {
			k := fmt.Sprintf("other-%03d", i)
			if err := tr.Put([]byte(k), uint64(i+2), []byte("value"), g); err != nil {
				t.Errorf("writer: Put(%q) error = %v", k, err)
				return
			}
		}
	}()

	wg.Wait()
}

func TestTree_storeRoundTrip(t *testing.T) {
	st := memstore.New()
	defer st.Close()

	opts := DefaultOptions()
	tr := Open(opts, st)
	guard := tr.Pin()

	keys := []string{"a", "b", "c"}
	for i, k := range keys {
		mustPut(t, tr, guard, k, uint64(i+1), k+"-value")
	}

	leafPID := leafPIDFor(t, tr, guard, "a")
	if err := tr.EvictPage(leafPID, guard); err != nil {
		t.Fatalf("EvictPage() error = %v", err)
	}
	guard.Unpin()

	guard = tr.Pin()
	defer guard.Unpin()
	for i, k := range keys {
		if v, ok, err := tr.Get([]byte(k), uint64(i+1), guard); err != nil || !ok || string(v) != k+"-value" {
			t.Errorf("Get(%q) after round-trip = %q, %v, %v; want %s-value, true, nil", k, v, ok, err, k)
		}
	}
}

func mustPut(t *testing.T, tr *Tree, guard *epoch.Guard, key string, lsn uint64, value string) {
	t.Helper()
	if err := tr.Put([]byte(key), lsn, []byte(value), guard); err != nil {
		t.Fatalf("Put(%q, %d, %q) error = %v", key, lsn, value, err)
	}
}

func leafPIDFor(t *testing.T, tr *Tree, guard *epoch.Guard, key string) pagetable.PID {
	t.Helper()
	n, _, err := tr.descend([]byte(key), guard)
	if err != nil {
		t.Fatalf("descend(%q) error = %v", key, err)
	}
	return n.pid
}
