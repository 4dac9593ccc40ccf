package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// reconcile brings parent's separator set up to date with a structural
// change observed on child: a still-unreconciled Split delta gets a new
// separator installed for its right half, a Remove marker (posted by a
// completed merge) gets its separator deleted, and a plain version bump
// (consolidation never changes version, so this only happens once a
// split or merge has touched child directly) gets the recorded version
// refreshed. Every case is idempotent: a losing CAS here just means
// another descender's reconcile already won, folded into the
// bwerr.Again descend already returns for the version mismatch itself.
func (t *Tree) reconcile(parentPID pagetable.PID, child cursor, n *node, guard *epoch.Guard) error {
	if n.page.Kind() == page.KindSplit {
		return t.reconcileSplit(parentPID, child.pid, n, guard)
	}
	if n.page.Kind() == page.KindData && page.TagOf(n.page.Content()) == page.ContentRemove {
		return t.reconcileRemove(parentPID, child.pid, guard)
	}
	return t.reconcileVersion(parentPID, child.pid, n.page.Version(), guard)
}

// reconcileSplit installs the new right-half separator and refreshes the
// left half's own recorded version, both read off the Split delta sitting
// at n's chain head. The left half keeps whatever separator key the
// parent already uses to route to leftPID, which is not necessarily
// sd.Lowest (the leaf's own smallest key): the root's initial separator
// is "", and a leaf's smallest key is almost never "", so inserting at
// sd.Lowest would leave the real routing separator stale forever and
// every descent through it would loop on bwerr.Again.
func (t *Tree) reconcileSplit(parentPID pagetable.PID, leftPID pagetable.PID, n *node, guard *epoch.Guard) error {
	sd := page.DecodeSplitDelta(n.page.Content())
	version := n.page.Version()

	entry, ok, err := t.findBySeparatorChild(parentPID, leftPID)
	if err != nil {
		return err
	}
	if ok && entry.Value.Version != version {
		if err := t.installIndexDelta(parentPID, page.IndexDelta{
			Lowest:   entry.Separator,
			NewChild: page.IndexValue{Child: uint64(leftPID), Version: version},
		}, guard); err != nil && !bwerr.IsAgain(err) {
			return err
		}
	}
	return t.installIndexDelta(parentPID, page.IndexDelta{
		Lowest:   sd.Middle,
		NewChild: page.IndexValue{Child: sd.Right, Version: version},
	}, guard)
}

// reconcileRemove deletes childPID's separator from parent once a merge
// has reduced its chain to a Remove marker. The separator key itself is
// not carried by the marker, so it is recovered by searching parent's
// current materialized index for the entry that still routes to
// childPID.
func (t *Tree) reconcileRemove(parentPID pagetable.PID, childPID pagetable.PID, guard *epoch.Guard) error {
	entry, ok, err := t.findBySeparatorChild(parentPID, childPID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return t.installIndexDelta(parentPID, page.IndexDelta{
		Lowest: entry.Separator,
		Delete: true,
	}, guard)
}

// reconcileVersion refreshes the recorded version for childPID when
// neither a Split nor a Remove explains the mismatch: a completed merge
// bumps the surviving left sibling's own version the same way a split
// bumps its own. A no-op if parent already records the current version.
func (t *Tree) reconcileVersion(parentPID pagetable.PID, childPID pagetable.PID, version uint64, guard *epoch.Guard) error {
	entry, ok, err := t.findBySeparatorChild(parentPID, childPID)
	if err != nil {
		return err
	}
	if !ok || entry.Value.Version == version {
		return nil
	}
	return t.installIndexDelta(parentPID, page.IndexDelta{
		Lowest:   entry.Separator,
		NewChild: page.IndexValue{Child: uint64(childPID), Version: version},
	}, guard)
}

// findBySeparatorChild materializes parent's separator set and returns
// the entry currently routing to childPID, if any.
func (t *Tree) findBySeparatorChild(parentPID pagetable.PID, childPID pagetable.PID) (page.IndexEntry, bool, error) {
	parent, err := t.loadNode(parentPID)
	if err != nil {
		return page.IndexEntry{}, false, err
	}
	entries, err := t.materializeIndex(parent)
	if err != nil {
		return page.IndexEntry{}, false, err
	}
	for _, e := range entries {
		if pagetable.PID(e.Value.Child) == childPID {
			return e, true, nil
		}
	}
	return page.IndexEntry{}, false, nil
}

// installIndexDelta posts a one-entry IndexDelta onto parent's chain via
// CAS, consolidating first if the chain already holds maxDataDeltaLength
// pages, and afterwards once it reaches the configured DataDeltaLength.
// A losing CAS is reported as bwerr.Again: reconciliation is
// best-effort, so the retrying descent that follows simply observes
// whatever state won the race.
func (t *Tree) installIndexDelta(parentPID pagetable.PID, delta page.IndexDelta, guard *epoch.Guard) error {
	parent, err := t.loadNode(parentPID)
	if err != nil {
		return err
	}
	chainLen := parent.page.ChainLen()
	if chainLen >= maxDataDeltaLength {
		if err := t.consolidate(parentPID, parent, guard); err != nil && !bwerr.IsAgain(err) {
			return err
		}
		return bwerr.Again()
	}

	content := page.EncodeIndexDelta(delta)
	newPg := newPage(content, page.KindData, true, parent.page.Version(), chainLen+1, pagetable.EncodeAddr(parent.addr))
	idx := t.alloc.Put(newPg)
	newAddr := pagetable.Mem(idx)

	if _, ok := t.table.CAS(parentPID, parent.addr, newAddr); !ok {
		t.alloc.Dealloc(idx)
		return bwerr.Again()
	}
	if chainLen+1 >= t.opts.DataDeltaLength {
		newNode := &node{pid: parentPID, addr: newAddr, page: newPg}
		if err := t.consolidate(parentPID, newNode, guard); err != nil && !bwerr.IsAgain(err) {
			errPrintf("bwtree: consolidation after reconcile failed: %v\n", err)
		}
	}
	return nil
}
