package bwtree

import (
	"sort"

	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// cursor names a node together with the structural version the parent
// last observed for it (0 and RootPID for the very first hop).
type cursor struct {
	pid     pagetable.PID
	version uint64
}

// descend performs try_find_node: root-to-leaf traversal following
// Split deltas and index routing, restarting from the root (via
// bwerr.Again) whenever a node's observed version disagrees with what
// its parent last recorded for it.
func (t *Tree) descend(key []byte, guard *epoch.Guard) (*node, []cursor, error) {
	cur := cursor{pid: pagetable.RootPID, version: 0}
	var path []cursor
	for {
		n, err := t.loadNode(cur.pid)
		if err != nil {
			return nil, nil, err
		}
		if n.page.Version() != cur.version {
			var parent pagetable.PID
			hasParent := len(path) > 0
			if hasParent {
				parent = path[len(path)-1].pid
			}
			if hasParent {
				if rerr := t.reconcile(parent, cur, n, guard); rerr != nil && !bwerr.IsAgain(rerr) {
					return nil, nil, rerr
				}
			}
			return nil, nil, bwerr.Again()
		}

		if right, redirected, err := t.followSplit(n, key); err != nil {
			return nil, nil, err
		} else if redirected {
			path = append(path, cur)
			cur = right
			continue
		}

		if !n.page.IsIndex() {
			return n, path, nil
		}

		child, err := t.routeIndex(n, key)
		if err != nil {
			return nil, nil, err
		}
		path = append(path, cur)
		cur = cursor{pid: child.pid, version: child.version}
	}
}

// followSplit walks n's chain looking for a Split delta. If one is found
// and key falls in its moved range, the cursor for its right half is
// returned. If one is found but key is not covered, the node's own
// left-half base beneath the Split delta answers for key, so traversal stops there
// without looking further down the chain.
func (t *Tree) followSplit(n *node, key []byte) (cursor, bool, error) {
	p := n.page
	for {
		if p.Kind() == page.KindSplit {
			sd := page.DecodeSplitDelta(p.Content())
			if sd.Covers(key) {
				return cursor{pid: pagetable.PID(sd.Right), version: n.page.Version()}, true, nil
			}
			return cursor{}, false, nil
		}
		next := p.Next()
		if next == 0 {
			return cursor{}, false, nil
		}
		np, err := t.resolvePage(pagetable.DecodeAddr(next))
		if err != nil {
			return cursor{}, false, err
		}
		p = np
	}
}

// indexRoute is the result of routing a key through an index node's
// materialized separator set.
type indexRoute struct {
	pid     pagetable.PID
	version uint64
}

// routeIndex materializes n's current separator set (base entries
// overlaid by IndexDelta inserts/updates/deletes found on the chain)
// and returns the entry for the largest separator <= key.
func (t *Tree) routeIndex(n *node, key []byte) (indexRoute, error) {
	entries, err := t.materializeIndex(n)
	if err != nil {
		return indexRoute{}, err
	}
	if len(entries) == 0 {
		return indexRoute{}, bwerr.Corrupted("index node has no entries")
	}
	seps := sortedSeparators(entries)
	i := sort.Search(len(seps), func(i int) bool { return string(seps[i]) > string(key) })
	i--
	if i < 0 {
		return indexRoute{}, bwerr.Corrupted("key below index node's lowest separator")
	}
	e := entries[string(seps[i])]
	return indexRoute{pid: pagetable.PID(e.Value.Child), version: e.Value.Version}, nil
}

// materializeIndex walks n's full chain tail-to-head order (oldest
// first), applying base entries then IndexDelta inserts/updates/deletes
// in write order so the freshest delta for a given separator wins.
func (t *Tree) materializeIndex(n *node) (map[string]page.IndexEntry, error) {
	chain, err := t.collectChain(n.page)
	if err != nil {
		return nil, err
	}
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
	return entries, nil
}

func sortedSeparators(entries map[string]page.IndexEntry) []string {
	seps := make([]string, 0, len(entries))
	for k := range entries {
		seps = append(seps, k)
	}
	sort.Strings(seps)
	return seps
}
