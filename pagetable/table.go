// Package pagetable implements the mapping table: a growable, append-only
// array of atomic 64-bit slots indexed by logical page id (PID). CAS
// against a slot is the tree engine's only mutation primitive.
package pagetable

import (
	"sync"
	"sync/atomic"
)

// PID is a logical page identifier: an index into the mapping table.
type PID uint64

// diskBit, set in a slot's top bit, discriminates an on-disk address from
// an in-memory arena index, matching the external bit layout:
// bit 63 = 0 -> in-memory, 1 -> on-disk; bits 62..0 = address.
const diskBit = uint64(1) << 63

// Addr is a decoded mapping-table slot value.
type Addr struct {
	OnDisk bool
	Value  uint64 // arena index if !OnDisk, opaque disk locator if OnDisk
}

func (a Addr) encode() uint64 {
	return EncodeAddr(a)
}

func decode(raw uint64) Addr {
	return DecodeAddr(raw)
}

// EncodeAddr packs an Addr into the raw 64-bit form used both by mapping
// table slots and by a page header's next field, which addresses the
// previous page in a chain the same tagged way.
func EncodeAddr(a Addr) uint64 {
	if a.OnDisk {
		return diskBit | a.Value
	}
	return a.Value &^ diskBit
}

// DecodeAddr unpacks a raw 64-bit address into an Addr.
func DecodeAddr(raw uint64) Addr {
	return Addr{OnDisk: raw&diskBit != 0, Value: raw &^ diskBit}
}

// Mem builds an in-memory Addr from an arena index.
func Mem(arenaIdx uint64) Addr { return Addr{Value: arenaIdx} }

// Disk builds an on-disk Addr from a store-chosen locator.
func Disk(locator uint64) Addr { return Addr{OnDisk: true, Value: locator} }

const chunkSize = 1 << 12

// Table is the mapping table. Slot index 0 is reserved for the root PID
// and is never returned by Alloc.
type Table struct {
	mu      sync.Mutex
	chunks  [][]atomic.Uint64
	nextPID uint64
	free    []PID
}

// New creates a table with the root slot (PID 0) already reserved.
func New() *Table {
	t := &Table{}
	t.chunkFor(0)
	t.nextPID = 1
	return t
}

func (t *Table) chunkFor(pid PID) *[]atomic.Uint64 {
	c := uint64(pid) / chunkSize
	t.mu.Lock()
	for uint64(len(t.chunks)) <= c {
		t.chunks = append(t.chunks, make([]atomic.Uint64, chunkSize))
	}
	chunk := &t.chunks[c]
	t.mu.Unlock()
	return chunk
}

// Alloc reserves a PID, reusing one from the free list if available.
func (t *Table) Alloc() PID {
	t.mu.Lock()
	if n := len(t.free); n > 0 {
		pid := t.free[n-1]
		t.free = t.free[:n-1]
		t.mu.Unlock()
		return pid
	}
	pid := PID(t.nextPID)
	t.nextPID++
	t.mu.Unlock()
	t.chunkFor(pid)
	return pid
}

// Free returns pid to the free list. Callers must only do this after epoch
// reclamation has confirmed no reader can still observe the slot.
func (t *Table) Free(pid PID) {
	t.mu.Lock()
	t.free = append(t.free, pid)
	t.mu.Unlock()
}

// Get reads a slot with acquire ordering.
func (t *Table) Get(pid PID) Addr {
	chunk := t.chunkFor(pid)
	return decode((*chunk)[uint64(pid)%chunkSize].Load())
}

// Set publishes addr unconditionally, with release ordering.
func (t *Table) Set(pid PID, addr Addr) {
	chunk := t.chunkFor(pid)
	(*chunk)[uint64(pid)%chunkSize].Store(addr.encode())
}

// CAS is the sole mutation primitive used by the tree protocol: it swaps
// pid's slot from old to new only if it still holds old, returning the
// observed value on failure.
func (t *Table) CAS(pid PID, old, new Addr) (observed Addr, ok bool) {
	chunk := t.chunkFor(pid)
	slot := &(*chunk)[uint64(pid)%chunkSize]
	if slot.CompareAndSwap(old.encode(), new.encode()) {
		return new, true
	}
	return decode(slot.Load()), false
}

// RootPID is the tree engine's fixed root page identifier.
const RootPID PID = 0
