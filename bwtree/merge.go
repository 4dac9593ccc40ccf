package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// mergeSizeDivisor sets the merge trigger threshold relative to the
// split threshold: a base page under DataNodeSize/mergeSizeDivisor
// bytes is a merge candidate: a quarter-of-split low-water mark that
// avoids an immediate split/merge cycle at the boundary.
const mergeSizeDivisor = 4

// maybeMerge checks whether leafPID, after a delete, has shrunk enough
// to be worth folding into its right neighbor, and if so starts the
// merge SMO. It only acts on a freshly consolidated, single-base leaf
// reached through a non-empty path (the root is never a merge
// candidate); any other shape is left for the next delete or
// consolidation to reconsider.
func (t *Tree) maybeMerge(path []cursor, leafPID pagetable.PID, guard *epoch.Guard) error {
	if len(path) == 0 {
		return nil
	}
	n, err := t.loadNode(leafPID)
	if err != nil {
		return err
	}
	if n.page.Kind() != page.KindData || n.page.IsIndex() || n.page.ChainLen() != 1 {
		return nil
	}
	if page.TagOf(n.page.Content()) != page.ContentEntries {
		return nil
	}
	if len(n.page.Content()) > t.opts.DataNodeSize/mergeSizeDivisor {
		return nil
	}

	parentPID := path[len(path)-1].pid
	parent, err := t.loadNode(parentPID)
	if err != nil {
		return err
	}
	entries, err := t.materializeIndex(parent)
	if err != nil {
		return err
	}
	seps := sortedSeparators(entries)
	mySep := -1
	for i, s := range seps {
		if pagetable.PID(entries[s].Value.Child) == leafPID {
			mySep = i
			break
		}
	}
	if mySep < 0 || mySep+1 >= len(seps) {
		return nil
	}
	rightSep := seps[mySep+1]
	rightPID := pagetable.PID(entries[rightSep].Value.Child)

	right, err := t.loadNode(rightPID)
	if err != nil {
		return err
	}
	return t.merge(parentPID, n, right, rightSep, guard)
}

// merge folds right into left: a Remove marker ends right's own chain
// first, then a MergeDelta on left donates ownership of right's
// pre-remove chain so a reader or consolidation still sees its entries
// until the next consolidation absorbs them, and finally an
// IndexDelta{Delete:true} removes right's separator from the parent.
// Each step is independently CAS'd and idempotent: a losing CAS simply
// means a concurrent merge or split already changed the node, reported
// as bwerr.Again.
func (t *Tree) merge(parentPID pagetable.PID, left, right *node, rightSep string, guard *epoch.Guard) error {
	rightOldAddr := right.addr

	removeContent := page.EncodeRemoveMarker()
	removePg := newPage(removeContent, page.KindData, false, right.page.Version()+1, right.page.ChainLen()+1, pagetable.EncodeAddr(right.addr))
	removeIdx := t.alloc.Put(removePg)
	removeAddr := pagetable.Mem(removeIdx)
	if _, ok := t.table.CAS(right.pid, right.addr, removeAddr); !ok {
		t.alloc.Dealloc(removeIdx)
		return bwerr.Again()
	}

	mergeContent := page.EncodeMergeDelta(page.MergeDelta{
		Right: pagetable.EncodeAddr(rightOldAddr),
	})
	newLeftVersion := left.page.Version() + 1
	mergePg := newPage(mergeContent, page.KindData, false, newLeftVersion, left.page.ChainLen()+1, pagetable.EncodeAddr(left.addr))
	mergeIdx := t.alloc.Put(mergePg)
	mergeAddr := pagetable.Mem(mergeIdx)
	if _, ok := t.table.CAS(left.pid, left.addr, mergeAddr); !ok {
		t.alloc.Dealloc(mergeIdx)
		return bwerr.Again()
	}
	logMerge(left.pid, right.pid)

	if err := t.installIndexDelta(parentPID, page.IndexDelta{
		Lowest: []byte(rightSep),
		Delete: true,
	}, guard); err != nil && !bwerr.IsAgain(err) {
		return err
	}
	guard.Defer(func() { t.table.Free(right.pid) })
	return nil
}
