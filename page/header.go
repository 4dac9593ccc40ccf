// Package page implements the fixed 20-byte page header, the data/index
// page content layouts, their builders and views, and the split/merge
// delta encodings used by the tree engine.
package page

import "encoding/binary"

// HeaderSize is the fixed byte size of every page's header.
const HeaderSize = 20

// MaxVersion is the largest legal 48-bit version value.
const MaxVersion uint64 = (1 << 48) - 1

// Kind discriminates a page's payload shape, stored in the low 7 bits of
// the header's tag byte.
type Kind uint8

const (
	KindData  Kind = 0
	KindSplit Kind = 1
)

const (
	tagKindMask  = 0x7F
	tagIndexBit  = 0x80
	offVersion   = 0
	sizeVersion  = 6
	offChainLen  = 6
	offTag       = 7
	offNext      = 8
	offContSize  = 16
)

// Header is a thin accessor over a page's first HeaderSize bytes. Buf must
// be at least HeaderSize bytes; content follows immediately after.
type Header struct {
	Buf []byte
}

// Version returns the monotonic 48-bit structural version.
func (h Header) Version() uint64 {
	var b [8]byte
	copy(b[:sizeVersion], h.Buf[offVersion:offVersion+sizeVersion])
	return binary.LittleEndian.Uint64(b[:])
}

func (h Header) SetVersion(v uint64) {
	if v > MaxVersion {
		panic("page: version exceeds 48 bits")
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	copy(h.Buf[offVersion:offVersion+sizeVersion], b[:sizeVersion])
}

// ChainLen returns the number of pages reachable from this header via Next,
// including itself.
func (h Header) ChainLen() uint8 {
	return h.Buf[offChainLen]
}

func (h Header) SetChainLen(n uint8) {
	h.Buf[offChainLen] = n
}

func (h Header) tag() uint8 {
	return h.Buf[offTag]
}

func (h Header) setTag(t uint8) {
	h.Buf[offTag] = t
}

func (h Header) Kind() Kind {
	return Kind(h.tag() & tagKindMask)
}

func (h Header) SetKind(k Kind) {
	h.setTag((h.tag() & tagIndexBit) | uint8(k))
}

func (h Header) IsIndex() bool {
	return h.tag()&tagIndexBit != 0
}

func (h Header) SetIsIndex(isIndex bool) {
	if isIndex {
		h.setTag(h.tag() | tagIndexBit)
	} else {
		h.setTag(h.tag() & tagKindMask)
	}
}

// Next returns the address of the next page in the chain, 0 if terminal.
func (h Header) Next() uint64 {
	return binary.LittleEndian.Uint64(h.Buf[offNext : offNext+8])
}

func (h Header) SetNext(addr uint64) {
	binary.LittleEndian.PutUint64(h.Buf[offNext:offNext+8], addr)
}

func (h Header) ContentSize() uint32 {
	return binary.LittleEndian.Uint32(h.Buf[offContSize : offContSize+4])
}

func (h Header) SetContentSize(n uint32) {
	binary.LittleEndian.PutUint32(h.Buf[offContSize:offContSize+4], n)
}

// Content returns the payload slice following the header.
func (h Header) Content() []byte {
	return h.Buf[HeaderSize : HeaderSize+int(h.ContentSize())]
}

// Page is a page header plus its owning byte buffer, the unit the
// allocator hands out and the mapping table's arena stores.
type Page struct {
	Header
}

// NewPage allocates a zeroed page of the given content size and stamps its
// header defaults.
func NewPage(contentSize int) *Page {
	buf := make([]byte, HeaderSize+contentSize)
	h := Header{Buf: buf}
	h.SetContentSize(uint32(contentSize))
	return &Page{Header: h}
}
