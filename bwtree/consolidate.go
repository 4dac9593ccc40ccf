package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/iter"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// consolidate replaces pid's chain with a single fresh base page
// summarizing every delta on it, then schedules the old chain for
// epoch-deferred reclamation. It never fails the triggering write: a
// lost CAS just means someone else already consolidated (or mutated)
// this node, which is reported as bwerr.Again and otherwise ignored by
// callers.
func (t *Tree) consolidate(pid pagetable.PID, head *node, guard *epoch.Guard) error {
	chain, err := t.collectChain(head.page)
	if err != nil {
		return err
	}
	if len(chain) <= 1 {
		return nil
	}

	var content []byte
	var donations []pagetable.Addr
	if head.page.IsIndex() {
		content = t.consolidateIndex(chain)
	} else {
		c, err := t.consolidateData(chain)
		if err != nil {
			return err
		}
		content = c
		donations, err = t.collectMergeDonations(chain)
		if err != nil {
			return err
		}
	}

	newPg := newPage(content, page.KindData, head.page.IsIndex(), head.page.Version(), 1, 0)
	newIdx := t.alloc.Put(newPg)
	newAddr := pagetable.Mem(newIdx)

	oldHeadAddr := head.addr
	if _, ok := t.table.CAS(pid, head.addr, newAddr); !ok {
		t.alloc.Dealloc(newIdx)
		return bwerr.Again()
	}
	logConsolidate(pid, head.page.ChainLen())
	guard.Defer(func() {
		t.freeChain(oldHeadAddr)
		for _, d := range donations {
			t.freeChain(d)
		}
	})

	newNode := &node{pid: pid, addr: newAddr, page: newPg}
	if err := t.maybeSplit(pid, newNode, guard); err != nil && !bwerr.IsAgain(err) {
		errPrintf("bwtree: split after consolidation failed: %v\n", err)
	}
	return nil
}

// consolidateData unions every plain-entries Data delta on the chain
// through a k-way merge, transparently absorbing any Merge delta's
// donated sibling chain along the way. Every entry's key embeds its own
// LSN, so distinct writes never collide: a straight union (not an
// overwrite merge) already yields the exact multiset of versions
// observed before consolidation, per the round-trip law in the
// testable properties.
func (t *Tree) consolidateData(chain []*page.Page) ([]byte, error) {
	mib := iter.NewMergingIterBuilder(page.Less)
	if err := t.addDataViews(mib, chain); err != nil {
		return nil, err
	}
	return page.DataBuilder{}.Build(mib.Build()), nil
}

// addDataViews adds every plain-entries page in chain to mib. A Merge
// delta is not itself consolidated data; it names the pre-merge head
// of a donated sibling chain, which is walked and added recursively
// (the sibling chain's own Remove marker, if reached, simply ends that
// walk with nothing further to add).
func (t *Tree) addDataViews(mib *iter.MergingIterBuilder, chain []*page.Page) error {
	for _, p := range chain {
		if p.Kind() != page.KindData {
			continue
		}
		switch page.TagOf(p.Content()) {
		case page.ContentEntries:
			mib.Add(page.NewDataView(p.Content()).Iter())
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
			if err := t.addDataViews(mib, subchain); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectMergeDonations returns the head address of every donated
// sibling chain reachable from chain through a Merge delta (recursing
// into a donation's own Merge deltas, if any). Consolidation inlines a
// donated chain's entries into the fresh base page it builds, so once
// the chain being replaced is gone nothing else will ever free the
// donation's pages; the caller schedules them for reclamation alongside
// the old chain itself.
func (t *Tree) collectMergeDonations(chain []*page.Page) ([]pagetable.Addr, error) {
	var donations []pagetable.Addr
	for _, p := range chain {
		if p.Kind() != page.KindData || page.TagOf(p.Content()) != page.ContentMerge {
			continue
		}
		d := page.DecodeMergeDelta(p.Content())
		addr := pagetable.DecodeAddr(d.Right)
		donations = append(donations, addr)

		donated, err := t.resolvePage(addr)
		if err != nil {
			return nil, err
		}
		subchain, err := t.collectChain(donated)
		if err != nil {
			return nil, err
		}
		sub, err := t.collectMergeDonations(subchain)
		if err != nil {
			return nil, err
		}
		donations = append(donations, sub...)
	}
	return donations, nil
}

// consolidateIndex overlays IndexDelta inserts/updates/deletes onto the
// base separator set, oldest first so the freshest delta for a given
// separator wins, then rebuilds a single base page from the result.
// Unlike data consolidation, a plain union is wrong here: a delta can
// replace or remove an existing separator rather than only add one, so
// consolidation needs override semantics a k-way merge does not give.
func (t *Tree) consolidateIndex(chain []*page.Page) []byte {
	entries := map[string]page.IndexEntry{}
	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		if p.Kind() == page.KindSplit {
			continue
		}
		switch page.TagOf(p.Content()) {
		case page.ContentEntries:
			v := page.NewIndexView(p.Content())
			for j := 0; j < v.Len(); j++ {
				e := v.Get(j)
				entries[string(e.Separator)] = e
			}
		case page.ContentIndexDelta:
			d := page.DecodeIndexDelta(p.Content())
			if d.Delete {
				delete(entries, string(d.Lowest))
			} else {
				entries[string(d.Lowest)] = page.IndexEntry{Separator: d.Lowest, Value: d.NewChild}
			}
		}
	}
	seps := sortedSeparators(entries)
	list := make([]iter.Entry, len(seps))
	for i, k := range seps {
		e := entries[k]
		list[i] = iter.Entry{Key: []byte(k), Value: e}
	}
	return page.IndexBuilder{}.Build(iter.NewSliceIter(list, page.IndexLess))
}
