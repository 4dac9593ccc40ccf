package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/epoch"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// EvictPage writes pid's current head page out to the configured store and
// swings its mapping-table slot from the in-memory address to the returned
// disk locator, the mirror image of swapIn. A later loadNode for pid pages
// it back in transparently. Evicting a node mid-chain (chain length > 1) is
// legal, but only the head page's bytes are written to the store: its next
// link still names the rest of the chain, which stays in the arena and is
// reached again through that link after swap-in.
func (t *Tree) EvictPage(pid pagetable.PID, guard *epoch.Guard) error {
	if t.store == nil {
		return bwerr.Corrupted("no store configured for eviction")
	}
	n, err := t.loadNode(pid)
	if err != nil {
		return err
	}
	if n.addr.OnDisk {
		return nil
	}

	diskAddr, err := t.store.AcquirePage()
	if err != nil {
		return bwerr.Io(err)
	}
	if err := t.store.FlushPage(diskAddr, n.page); err != nil {
		return bwerr.Io(err)
	}

	newAddr := pagetable.Disk(diskAddr)
	oldAddr := n.addr
	if _, ok := t.table.CAS(pid, n.addr, newAddr); !ok {
		_ = t.store.ReleasePage(diskAddr)
		return bwerr.Again()
	}
	guard.Defer(func() { t.alloc.Dealloc(oldAddr.Value) })
	return nil
}
