package bwtree

import (
	"bytes"

	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/iter"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// lookupValue implements lookup_value: it scans every Data-kind,
// plain-entries page reachable from leaf's head, keeping the entry with
// the largest LSN <= the query LSN for the target user key. A chain can
// hold more than one delta touching the same user key at different
// LSNs, so unlike the single-delta-per-write common case the whole
// chain must be considered, not just the first match found.
func (t *Tree) lookupValue(leaf *node, userKey []byte, lsn uint64) (page.Value, bool, error) {
	chain, err := t.collectChain(leaf.page)
	if err != nil {
		return page.Value{}, false, err
	}
	var best *page.DataEntry
	consider := func(p *page.Page) {
		view := page.NewDataView(p.Content())
		e, ok := view.Seek(page.Key{User: userKey, LSN: lsn})
		if !ok || !bytes.Equal(e.Key.User, userKey) {
			return
		}
		if best == nil || e.Key.LSN > best.Key.LSN {
			cp := e
			best = &cp
		}
	}
	if err := t.walkDataPages(chain, consider); err != nil {
		return page.Value{}, false, err
	}
	if best == nil {
		return page.Value{}, false, nil
	}
	return best.Value, true, nil
}

// walkDataPages invokes fn for every plain-entries page reachable from
// chain, recursing into any Merge delta's donated sibling chain the
// same way consolidation does, so a read for a key that moved during a
// merge still finds it before the next consolidation absorbs it.
func (t *Tree) walkDataPages(chain []*page.Page, fn func(*page.Page)) error {
	for _, p := range chain {
		if p.Kind() != page.KindData {
			continue
		}
		switch page.TagOf(p.Content()) {
		case page.ContentEntries:
			fn(p)
		case page.ContentMerge:
			d := page.DecodeMergeDelta(p.Content())
			donated, err := t.resolvePage(pagetable.DecodeAddr(d.Right))
			if err != nil {
				return err
			}
			subchain, err := t.collectChain(donated)
			if err != nil {
				return err
			}
			if err := t.walkDataPages(subchain, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// tryUpdate implements try_update: build a one-entry delta and CAS it
// onto leaf's slot. A CAS loss at the same version means a concurrent
// writer got there first; re-read the head and retry without
// restarting the descent. A CAS loss at a different version means a
// structural change raced ahead of us; give up the unpublished delta
// and report bwerr.Again so the caller redescends from the root.
func (t *Tree) tryUpdate(leaf *node, entry page.DataEntry, guard *epoch.Guard) error {
	expectedVersion := leaf.page.Version()
	head := leaf
	for {
		chainLen := head.page.ChainLen()
		if chainLen >= maxDataDeltaLength {
			if err := t.consolidate(head.pid, head, guard); err != nil && !bwerr.IsAgain(err) {
				return err
			}
			return bwerr.Again()
		}

		deltaContent := page.DataBuilder{}.Build(iter.NewSliceIter(
			[]iter.Entry{{Key: entry.Key, Value: entry}}, page.Less,
		))
		newPg := newPage(deltaContent, page.KindData, false, head.page.Version(), chainLen+1, pagetable.EncodeAddr(head.addr))
		idx := t.alloc.Put(newPg)
		newAddr := pagetable.Mem(idx)

		observed, ok := t.table.CAS(head.pid, head.addr, newAddr)
		if ok {
			if chainLen+1 >= t.opts.DataDeltaLength {
				newHead := &node{pid: head.pid, addr: newAddr, page: newPg}
				if err := t.consolidate(head.pid, newHead, guard); err != nil && !bwerr.IsAgain(err) {
					errPrintf("bwtree: consolidation after write failed: %v\n", err)
				}
			}
			return nil
		}

		t.alloc.Dealloc(idx)
		observedPage, rerr := t.resolvePage(observed)
		if rerr != nil {
			return rerr
		}
		if observedPage.Version() != expectedVersion {
			return bwerr.Again()
		}
		head = &node{pid: head.pid, addr: observed, page: observedPage}
	}
}
