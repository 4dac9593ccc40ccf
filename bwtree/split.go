package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/iter"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// maybeSplit checks a freshly consolidated base page against the
// configured size threshold and splits it if it is over. n must be a
// single, base-only page (post-consolidation, never mid-chain): a node
// carrying unconsolidated deltas is not a candidate, it will be
// re-examined the next time it consolidates.
func (t *Tree) maybeSplit(pid pagetable.PID, n *node, guard *epoch.Guard) error {
	if n.page.Kind() != page.KindData || page.TagOf(n.page.Content()) != page.ContentEntries {
		return nil
	}
	threshold := t.opts.DataNodeSize
	if n.page.IsIndex() {
		threshold = t.opts.IndexNodeSize
	}
	if len(n.page.Content()) <= threshold {
		return nil
	}
	if pid == pagetable.RootPID {
		return t.growRoot(n, guard)
	}
	if n.page.IsIndex() {
		return t.splitIndex(pid, n, guard)
	}
	return t.splitLeaf(pid, n, guard)
}

// splitLeaf implements the Split SMO for a leaf base: pick the median
// key, publish the upper half under a new PID, and post a Split delta
// on the original PID naming the moved range. The parent is left
// untouched; a later descent through it observes the Split delta and
// triggers reconciliation (installing the corresponding index delta).
func (t *Tree) splitLeaf(pid pagetable.PID, n *node, guard *epoch.Guard) error {
	view := page.NewDataView(n.page.Content())
	total := view.Len()
	if total < 2 {
		return nil
	}
	mid := (total + 1) / 2

	left := make([]iter.Entry, mid)
	for i := 0; i < mid; i++ {
		e := view.Get(i)
		left[i] = iter.Entry{Key: e.Key, Value: e}
	}
	right := make([]iter.Entry, total-mid)
	for i := mid; i < total; i++ {
		e := view.Get(i)
		right[i-mid] = iter.Entry{Key: e.Key, Value: e}
	}

	lowest := view.Get(0).Key.User
	middle := view.Get(mid).Key.User

	rightContent := page.DataBuilder{}.Build(iter.NewSliceIter(right, page.Less))
	leftContent := page.DataBuilder{}.Build(iter.NewSliceIter(left, page.Less))

	newVersion := n.page.Version() + 1

	rightPID := t.table.Alloc()
	rightPage := newPage(rightContent, page.KindData, false, newVersion, 1, 0)
	t.table.Set(rightPID, pagetable.Mem(t.alloc.Put(rightPage)))

	// The left half is published as a fresh base under the original PID
	// first, then a Split delta is posted on top naming the moved
	// range: this keeps the original PID's content consistent with its
	// new (shrunk) range even before the Split delta's existence
	// matters, and means only one CAS (the Split delta's) needs to
	// succeed for the whole operation to become visible.
	leftBase := newPage(leftContent, page.KindData, false, newVersion, 1, 0)
	leftBaseIdx := t.alloc.Put(leftBase)

	splitContent := page.EncodeSplitDelta(page.SplitDelta{
		Lowest: lowest,
		Middle: middle,
		Right:  uint64(rightPID),
	})
	splitPg := newPage(splitContent, page.KindSplit, false, newVersion, 2, pagetable.EncodeAddr(pagetable.Mem(leftBaseIdx)))
	splitIdx := t.alloc.Put(splitPg)
	splitAddr := pagetable.Mem(splitIdx)

	oldAddr := n.addr
	if _, ok := t.table.CAS(pid, n.addr, splitAddr); !ok {
		t.alloc.Dealloc(splitIdx)
		t.alloc.Dealloc(leftBaseIdx)
		return bwerr.Again()
	}
	guard.Defer(func() { t.freeChain(oldAddr) })
	logSplit(pid, rightPID, middle)
	return nil
}

// splitIndex is splitLeaf's analogue for an oversized index base.
func (t *Tree) splitIndex(pid pagetable.PID, n *node, guard *epoch.Guard) error {
	view := page.NewIndexView(n.page.Content())
	total := view.Len()
	if total < 2 {
		return nil
	}
	mid := (total + 1) / 2

	left := make([]iter.Entry, mid)
	for i := 0; i < mid; i++ {
		e := view.Get(i)
		left[i] = iter.Entry{Key: e.Separator, Value: e}
	}
	right := make([]iter.Entry, total-mid)
	for i := mid; i < total; i++ {
		e := view.Get(i)
		right[i-mid] = iter.Entry{Key: e.Separator, Value: e}
	}

	lowest := view.Get(0).Separator
	middle := view.Get(mid).Separator

	rightContent := page.IndexBuilder{}.Build(iter.NewSliceIter(right, page.IndexLess))
	leftContent := page.IndexBuilder{}.Build(iter.NewSliceIter(left, page.IndexLess))

	newVersion := n.page.Version() + 1

	rightPID := t.table.Alloc()
	rightPage := newPage(rightContent, page.KindData, true, newVersion, 1, 0)
	t.table.Set(rightPID, pagetable.Mem(t.alloc.Put(rightPage)))

	leftBase := newPage(leftContent, page.KindData, true, newVersion, 1, 0)
	leftBaseIdx := t.alloc.Put(leftBase)

	splitContent := page.EncodeSplitDelta(page.SplitDelta{
		Lowest: lowest,
		Middle: middle,
		Right:  uint64(rightPID),
	})
	splitPg := newPage(splitContent, page.KindSplit, true, newVersion, 2, pagetable.EncodeAddr(pagetable.Mem(leftBaseIdx)))
	splitIdx := t.alloc.Put(splitPg)
	splitAddr := pagetable.Mem(splitIdx)

	oldAddr := n.addr
	if _, ok := t.table.CAS(pid, n.addr, splitAddr); !ok {
		t.alloc.Dealloc(splitIdx)
		t.alloc.Dealloc(leftBaseIdx)
		return bwerr.Again()
	}
	guard.Defer(func() { t.freeChain(oldAddr) })
	logSplit(pid, rightPID, middle)
	return nil
}

// growRoot handles the one case splitLeaf/splitIndex cannot: the root
// itself (PID 0, which must never change identity) outgrowing its
// threshold. Rather than posting a Split delta that some parent would
// reconcile, it rewrites the root's own content in a single CAS to
// point at two freshly allocated children holding the old content's two
// halves, raising the tree's height by one level.
func (t *Tree) growRoot(n *node, guard *epoch.Guard) error {
	view := page.NewIndexView(n.page.Content())
	total := view.Len()
	if total < 2 {
		return nil
	}
	mid := (total + 1) / 2

	left := make([]iter.Entry, mid)
	for i := 0; i < mid; i++ {
		e := view.Get(i)
		left[i] = iter.Entry{Key: e.Separator, Value: e}
	}
	right := make([]iter.Entry, total-mid)
	for i := mid; i < total; i++ {
		e := view.Get(i)
		right[i-mid] = iter.Entry{Key: e.Separator, Value: e}
	}

	leftContent := page.IndexBuilder{}.Build(iter.NewSliceIter(left, page.IndexLess))
	rightContent := page.IndexBuilder{}.Build(iter.NewSliceIter(right, page.IndexLess))

	leftPID := t.table.Alloc()
	rightPID := t.table.Alloc()
	t.table.Set(leftPID, pagetable.Mem(t.alloc.Put(newPage(leftContent, page.KindData, true, 0, 1, 0))))
	t.table.Set(rightPID, pagetable.Mem(t.alloc.Put(newPage(rightContent, page.KindData, true, 0, 1, 0))))

	middle := view.Get(mid).Separator
	newRoot := []iter.Entry{
		{Key: view.Get(0).Separator, Value: page.IndexEntry{
			Separator: view.Get(0).Separator,
			Value:     page.IndexValue{Child: uint64(leftPID), Version: 0},
		}},
		{Key: middle, Value: page.IndexEntry{
			Separator: middle,
			Value:     page.IndexValue{Child: uint64(rightPID), Version: 0},
		}},
	}
	newRootContent := page.IndexBuilder{}.Build(iter.NewSliceIter(newRoot, page.IndexLess))
	newRootPg := newPage(newRootContent, page.KindData, true, n.page.Version(), 1, 0)
	newRootIdx := t.alloc.Put(newRootPg)
	newRootAddr := pagetable.Mem(newRootIdx)

	oldAddr := n.addr
	if _, ok := t.table.CAS(pagetable.RootPID, n.addr, newRootAddr); !ok {
		t.alloc.Dealloc(newRootIdx)
		return bwerr.Again()
	}
	guard.Defer(func() { t.freeChain(oldAddr) })
	logSplit(pagetable.RootPID, rightPID, middle)
	return nil
}
