// Package bwtree implements the tree engine: root-to-leaf traversal over
// mapping-table-addressed delta chains, delta installation via CAS,
// consolidation, and the split/merge structural-modification protocol
// with its reconciliation.
package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/iter"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagecache"
	"github.com/hmarui66/bwtree-go/pagetable"
	"github.com/hmarui66/bwtree-go/store"
)

// Tree is the in-memory Bw-tree engine. The mapping table, the arena
// allocator, and the epoch registry are its only shared mutable state;
// every structural change reaches them through a single CAS.
type Tree struct {
	table *pagetable.Table
	alloc *pagecache.Allocator
	epoch *epoch.Registry
	store store.Store
	opts  Options
}

// Open creates a fresh tree: an empty leaf and a one-entry root index
// pointing to it, both published before Open returns. st may be nil for
// a purely in-memory tree that never evicts to a store.
func Open(opts Options, st store.Store) *Tree {
	t := &Tree{
		table: pagetable.New(),
		alloc: pagecache.NewAllocator(),
		epoch: epoch.NewRegistry(),
		store: st,
		opts:  opts.normalized(),
	}
	t.init()
	return t
}

func (t *Tree) init() {
	leafPID := t.table.Alloc()
	leafContent := page.DataBuilder{}.Build(iter.NewSliceIter(nil, page.Less))
	leaf := newPage(leafContent, page.KindData, false, 0, 1, 0)
	leafIdx := t.alloc.Put(leaf)
	t.table.Set(leafPID, pagetable.Mem(leafIdx))

	rootEntries := []iter.Entry{{
		Key: []byte{},
		Value: page.IndexEntry{
			Separator: []byte{},
			Value:     page.IndexValue{Child: uint64(leafPID), Version: 0},
		},
	}}
	rootContent := page.IndexBuilder{}.Build(iter.NewSliceIter(rootEntries, page.IndexLess))
	root := newPage(rootContent, page.KindData, true, 0, 1, 0)
	rootIdx := t.alloc.Put(root)
	t.table.Set(pagetable.RootPID, pagetable.Mem(rootIdx))
}

// Pin starts a request-scoped epoch guard. Callers must Unpin it once
// they are done dereferencing any page address observed while pinned.
func (t *Tree) Pin() *epoch.Guard {
	return t.epoch.Pin()
}

// Get returns the freshest Put whose user key equals key and whose LSN
// is <= lsn, or (nil, false) on a Tombstone or absence. The returned
// slice is only valid for guard's lifetime.
func (t *Tree) Get(key []byte, lsn uint64, guard *epoch.Guard) ([]byte, bool, error) {
	for {
		leaf, _, err := t.descend(key, guard)
		if bwerr.IsAgain(err) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		val, ok, err := t.lookupValue(leaf, key, lsn)
		if err != nil {
			return nil, false, err
		}
		if !ok || val.Tombstone {
			return nil, false, nil
		}
		return val.Bytes, true, nil
	}
}

// Put installs value under key at lsn.
func (t *Tree) Put(key []byte, lsn uint64, value []byte, guard *epoch.Guard) error {
	return t.write(key, page.Value{Bytes: value}, lsn, guard)
}

// Delete installs a tombstone for key at lsn.
func (t *Tree) Delete(key []byte, lsn uint64, guard *epoch.Guard) error {
	return t.write(key, page.Value{Tombstone: true}, lsn, guard)
}

func (t *Tree) write(key []byte, value page.Value, lsn uint64, guard *epoch.Guard) error {
	entry := page.DataEntry{Key: page.Key{User: key, LSN: lsn}, Value: value}
	for {
		leaf, path, err := t.descend(key, guard)
		if bwerr.IsAgain(err) {
			continue
		}
		if err != nil {
			return err
		}
		err = t.tryUpdate(leaf, entry, guard)
		if bwerr.IsAgain(err) {
			continue
		}
		if err != nil {
			return err
		}
		if value.Tombstone {
			if merr := t.maybeMerge(path, leaf.pid, guard); merr != nil && !bwerr.IsAgain(merr) {
				errPrintf("bwtree: merge check failed: %v\n", merr)
			}
		}
		return nil
	}
}
