// Package memstore implements an in-memory page store backed by
// dsnet/golib/memfile's byte-slice-backed io.ReaderAt/io.WriterAt,
// satisfying the store.Store facade the tree engine's swap-in path
// depends on. It exists for tests and ephemeral trees that want the
// swap-in contract exercised without touching a real filesystem.
package memstore

import (
	"fmt"
	"sync"

	"github.com/dsnet/golib/memfile"

	"github.com/hmarui66/bwtree-go/page"
	"github.com/hmarui66/bwtree-go/store"
)

// slotSize is the fixed footprint reserved for one page. A page whose
// header-plus-content exceeds it cannot be flushed; callers keep
// DataNodeSize/IndexNodeSize comfortably under this.
const slotSize = 8192

// Store is a store.Store over a memfile.File: every acquired address is
// a fixed-size slot index, exactly like the disk store, but backed by a
// growable byte slice instead of a file descriptor.
type Store struct {
	mu   sync.Mutex
	file *memfile.File
	next uint64
	free []uint64
}

// New creates an empty memory-backed store.
func New() *Store {
	return &Store{file: memfile.New(nil)}
}

func (s *Store) PageInfo(addr uint64) (store.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr >= s.next {
		return store.Info{}, false
	}
	buf := make([]byte, page.HeaderSize)
	if _, err := s.file.ReadAt(buf, int64(addr*slotSize)); err != nil {
		return store.Info{}, false
	}
	h := page.Header{Buf: buf}
	return store.Info{Version: h.Version(), ChainLen: h.ChainLen(), IsIndex: h.IsIndex()}, true
}

func (s *Store) LoadPage(addr uint64) (*page.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hdr := make([]byte, page.HeaderSize)
	if _, err := s.file.ReadAt(hdr, int64(addr*slotSize)); err != nil {
		return nil, fmt.Errorf("memstore: read header at %d: %w", addr, err)
	}
	total := page.HeaderSize + int(page.Header{Buf: hdr}.ContentSize())
	buf := make([]byte, total)
	if _, err := s.file.ReadAt(buf, int64(addr*slotSize)); err != nil {
		return nil, fmt.Errorf("memstore: read page at %d: %w", addr, err)
	}
	return &page.Page{Header: page.Header{Buf: buf}}, nil
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
		return fmt.Errorf("memstore: page of %d bytes exceeds slot size %d", len(p.Buf), slotSize)
	}
	if _, err := s.file.WriteAt(p.Buf, int64(addr*slotSize)); err != nil {
		return fmt.Errorf("memstore: write page at %d: %w", addr, err)
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
