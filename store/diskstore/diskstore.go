// Package diskstore implements a durable, O_DIRECT-backed page store
// using github.com/ncw/directio, satisfying the store.Store facade.
// Every page occupies a fixed, block-aligned slot so swap-in and flush
// never go through the kernel page cache's own double-buffering.
package diskstore

import (
	"fmt"
	"os"
	"sync"

	"github.com/ncw/directio"

	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/store"
)

// slotSize is the fixed on-disk footprint of one page, rounded up to a
// multiple of directio.BlockSize so every slot offset is itself a legal
// O_DIRECT read/write boundary.
var slotSize = alignUp(8192, directio.BlockSize)

func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// Store is a store.Store over a directio.OpenFile handle.
type Store struct {
	mu   sync.Mutex
	file *os.File
	next uint64
	free []uint64
}

// Open opens (creating if necessary) the disk file backing the store.
// Reopening an existing file recovers next from its current size, so
// every previously flushed slot stays addressable.
func Open(path string) (*Store, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("diskstore: open %s: %w", path, err)
	}
	s := &Store{file: f}
	if info, statErr := f.Stat(); statErr == nil && info.Size() > 0 {
		s.next = uint64(info.Size()) / uint64(slotSize)
	}
	return s, nil
}

func (s *Store) PageInfo(addr uint64) (store.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr >= s.next {
		return store.Info{}, false
	}
	buf := directio.AlignedBlock(slotSize)
	if _, err := s.file.ReadAt(buf, int64(addr)*int64(slotSize)); err != nil {
		return store.Info{}, false
	}
	h := page.Header{Buf: buf[:page.HeaderSize]}
	return store.Info{Version: h.Version(), ChainLen: h.ChainLen(), IsIndex: h.IsIndex()}, true
}

func (s *Store) LoadPage(addr uint64) (*page.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := directio.AlignedBlock(slotSize)
	if _, err := s.file.ReadAt(buf, int64(addr)*int64(slotSize)); err != nil {
		return nil, fmt.Errorf("diskstore: read addr %d: %w", addr, err)
	}
	total := page.HeaderSize + int(page.Header{Buf: buf}.ContentSize())
	out := make([]byte, total)
	copy(out, buf[:total])
	return &page.Page{Header: page.Header{Buf: out}}, nil
}

func (s *Store) AcquirePage() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.free); n > 0 {
		addr := s.free[n-1]
		s.free = s.free[:n-1]
		return addr, nil
	}
	addr := s.next
	s.next++
	return addr, nil
}

func (s *Store) FlushPage(addr uint64, p *page.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p.Buf) > slotSize {
		return fmt.Errorf("diskstore: page of %d bytes exceeds slot size %d", len(p.Buf), slotSize)
	}
	buf := directio.AlignedBlock(slotSize)
	copy(buf, p.Buf)
	if _, err := s.file.WriteAt(buf, int64(addr)*int64(slotSize)); err != nil {
		return fmt.Errorf("diskstore: write addr %d: %w", addr, err)
	}
	return nil
}

func (s *Store) ReleasePage(addr uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free = append(s.free, addr)
	return nil
}

func (s *Store) Close() error {
	return s.file.Close()
}

var _ store.Store = (*Store)(nil)
