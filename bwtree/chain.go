package bwtree

import (
	"github.com/hmarui66/bwtree-go/bwerr"
	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/pagetable"
)

// node is a PID together with the exact address observed for its chain
// head and the resolved page behind it. The address is kept around
// because every mutation CASes against it.
type node struct {
	pid  pagetable.PID
	addr pagetable.Addr
	page *page.Page
}

// resolvePage dereferences addr without publishing anything: an
// in-memory address is an arena index, an on-disk address is read
// through the store. Used for interior chain links (next pointers),
// which are never independently registered in the mapping table and so
// never need swap-in/CAS handling of their own.
func (t *Tree) resolvePage(addr pagetable.Addr) (*page.Page, error) {
	if !addr.OnDisk {
		p := t.alloc.Get(addr.Value)
		if p == nil {
			return nil, bwerr.Corrupted("dangling arena slot")
		}
		return p, nil
	}
	if t.store == nil {
		return nil, bwerr.Corrupted("on-disk address without a configured store")
	}
	p, err := t.store.LoadPage(addr.Value)
	if err != nil {
		return nil, bwerr.Io(err)
	}
	return p, nil
}

// loadNode reads pid's mapping-table slot and resolves its head page,
// swapping it into the arena first if the slot currently names an
// on-disk address. Swap-in publishes via CAS; a lost race is reported as
// bwerr.Again so the caller re-reads the slot rather than trusting a
// stale address.
func (t *Tree) loadNode(pid pagetable.PID) (*node, error) {
	for {
		addr := t.table.Get(pid)
		if !addr.OnDisk {
			p := t.alloc.Get(addr.Value)
			if p == nil {
				return nil, bwerr.Corrupted("dangling arena slot")
			}
			return &node{pid: pid, addr: addr, page: p}, nil
		}
		if err := t.swapIn(pid, addr); err != nil {
			return nil, err
		}
	}
}

// swapIn loads the on-disk page at addr and installs it in the arena,
// publishing the new in-memory address via CAS. On a lost race it
// returns bwerr.Again; loadNode's caller loop re-reads the slot, which
// now names whatever address won.
func (t *Tree) swapIn(pid pagetable.PID, addr pagetable.Addr) error {
	if t.store == nil {
		return bwerr.Corrupted("on-disk address without a configured store")
	}
	p, err := t.store.LoadPage(addr.Value)
	if err != nil {
		return bwerr.Io(err)
	}
	idx := t.alloc.Put(p)
	newAddr := pagetable.Mem(idx)
	if _, ok := t.table.CAS(pid, addr, newAddr); !ok {
		t.alloc.Dealloc(idx)
		return bwerr.Again()
	}
	logSwapIn(pid, addr.Value)
	return nil
}

// collectChain walks head's next links, resolving each page, and
// returns them head-to-tail. It never consults the mapping table: a
// chain's interior is reachable only through its own links.
func (t *Tree) collectChain(head *page.Page) ([]*page.Page, error) {
	chain := []*page.Page{head}
	p := head
	for {
		next := p.Next()
		if next == 0 {
			return chain, nil
		}
		np, err := t.resolvePage(pagetable.DecodeAddr(next))
		if err != nil {
			return nil, err
		}
		chain = append(chain, np)
		p = np
	}
}

// freeChain deallocates every in-memory page reachable from headAddr by
// walking next links directly, per the epoch invariant that a deferred
// free must never consult the mapping table (the slot may already point
// elsewhere by the time the free runs). An on-disk link ends the walk:
// the store owns reclamation of its own pages.
func (t *Tree) freeChain(headAddr pagetable.Addr) {
	addr := headAddr
	for {
		if addr.OnDisk {
			if t.store != nil {
				_ = t.store.ReleasePage(addr.Value)
			}
			return
		}
		p := t.alloc.Get(addr.Value)
		if p == nil {
			return
		}
		next := p.Next()
		t.alloc.Dealloc(addr.Value)
		if next == 0 {
			return
		}
		addr = pagetable.DecodeAddr(next)
	}
}

// newPage builds a fresh page carrying content, with the given header
// fields stamped, ready to be installed in the arena.
func newPage(content []byte, kind page.Kind, isIndex bool, version uint64, chainLen uint8, next uint64) *page.Page {
	p := page.NewPage(len(content))
	copy(p.Content(), content)
	p.SetKind(kind)
	p.SetIsIndex(isIndex)
	p.SetVersion(version)
	p.SetChainLen(chainLen)
	p.SetNext(next)
	return p
}
