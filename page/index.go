package page

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/hmarui66/bwtree-go/iter"
)

// IndexEntry is one decoded (separator, child) record from an index page.
// The separator is plain user bytes (no LSN component): index routing does
// not need to distinguish key versions.
type IndexEntry struct {
	Separator []byte
	Value     IndexValue
}

func indexEntrySize(e IndexEntry) int {
	return 4 + len(e.Separator) + 8 + 8
}

func encodeIndexEntry(buf []byte, e IndexEntry) int {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Separator)))
	off += 4
	copy(buf[off:], e.Separator)
	off += len(e.Separator)
	binary.LittleEndian.PutUint64(buf[off:], e.Value.Child)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.Value.Version)
	off += 8
	return off
}

func decodeIndexEntry(buf []byte) IndexEntry {
	off := 0
	slen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	sep := buf[off : off+int(slen)]
	off += int(slen)
	child := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	ver := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	return IndexEntry{Separator: sep, Value: IndexValue{Child: child, Version: ver}}
}

// IndexBuilder builds an index page's content the same two-pass way as
// DataBuilder.
type IndexBuilder struct{}

func (IndexBuilder) Build(it iter.RewindableIter) []byte {
	it.Rewind()
	n := 0
	payload := 0
	for e := it.Next(); e != nil; e = it.Next() {
		n++
		payload += indexEntrySize(e.Value.(IndexEntry))
	}

	offsetsSize := 4 * n
	content := make([]byte, offsetsSize+payload)

	it.Rewind()
	pos := offsetsSize
	i := 0
	for e := it.Next(); e != nil; e = it.Next() {
		binary.LittleEndian.PutUint32(content[4*i:], uint32(pos))
		pos += encodeIndexEntry(content[pos:], e.Value.(IndexEntry))
		i++
	}
	return WithTag(ContentEntries, content)
}

// IndexView reads an index page's content. NewIndexView strips the leading
// content tag written by IndexBuilder.
type IndexView struct {
	content []byte
}

func NewIndexView(tagged []byte) IndexView {
	return IndexView{content: Untagged(tagged)}
}

func (v IndexView) Len() int {
	if len(v.content) == 0 {
		return 0
	}
	first := binary.LittleEndian.Uint32(v.content[0:4])
	return int(first) / 4
}

func (v IndexView) offsetAt(i int) uint32 {
	return binary.LittleEndian.Uint32(v.content[4*i : 4*i+4])
}

func (v IndexView) Get(i int) IndexEntry {
	start := v.offsetAt(i)
	return decodeIndexEntry(v.content[start:])
}

// Descend returns the child entry for the largest separator <= key: the
// standard B+-tree index lookup.
func (v IndexView) Descend(key []byte) (IndexEntry, bool) {
	n := v.Len()
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(v.Get(i).Separator, key) > 0
	})
	i--
	if i < 0 {
		return IndexEntry{}, false
	}
	return v.Get(i), true
}

// IndexViewIter implements iter.SeekableRewindableIter over an IndexView,
// ordered by Separator bytes.
type IndexViewIter struct {
	view IndexView
	pos  int
	last *iter.Entry
}

func (v IndexView) Iter() *IndexViewIter {
	return &IndexViewIter{view: v}
}

func (it *IndexViewIter) Last() *iter.Entry { return it.last }

func (it *IndexViewIter) Next() *iter.Entry {
	if it.pos >= it.view.Len() {
		it.last = nil
		return nil
	}
	e := it.view.Get(it.pos)
	it.pos++
	it.last = &iter.Entry{Key: e.Separator, Value: e}
	return it.last
}

func (it *IndexViewIter) Seek(target interface{}) {
	sep := target.([]byte)
	it.pos = sort.Search(it.view.Len(), func(i int) bool {
		return bytes.Compare(it.view.Get(i).Separator, sep) >= 0
	})
	it.last = nil
}

func (it *IndexViewIter) Rewind() {
	it.pos = 0
	it.last = nil
}

// IndexLess orders IndexViewIter's Key type ([]byte separators).
func IndexLess(a, b interface{}) bool {
	return bytes.Compare(a.([]byte), b.([]byte)) < 0
}
