package page

import (
	"encoding/binary"
	"sort"

	"github.com/hmarui66/bwtree-go/iter"
)

// DataEntry is one decoded (key, value) record from a data page.
type DataEntry struct {
	Key   Key
	Value Value
}

func dataEntrySize(e DataEntry) int {
	n := 4 + len(e.Key.User) + 8 + 1
	if !e.Value.Tombstone {
		n += 4 + len(e.Value.Bytes)
	}
	return n
}

func encodeDataEntry(buf []byte, e DataEntry) int {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Key.User)))
	off += 4
	copy(buf[off:], e.Key.User)
	off += len(e.Key.User)
	binary.LittleEndian.PutUint64(buf[off:], e.Key.LSN)
	off += 8
	if e.Value.Tombstone {
		buf[off] = 1
		off++
	} else {
		buf[off] = 0
		off++
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Value.Bytes)))
		off += 4
		copy(buf[off:], e.Value.Bytes)
		off += len(e.Value.Bytes)
	}
	return off
}

func decodeDataEntry(buf []byte) DataEntry {
	off := 0
	ulen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	user := buf[off : off+int(ulen)]
	off += int(ulen)
	lsn := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	tomb := buf[off] == 1
	off++
	var val Value
	val.Tombstone = tomb
	if !tomb {
		vlen := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		val.Bytes = buf[off : off+int(vlen)]
	}
	return DataEntry{Key: Key{User: user, LSN: lsn}, Value: val}
}

// DataBuilder builds a data page's content from a rewindable forward
// iterator of DataEntry in two passes, per the original implementation's
// build_from_iter: the iterator is rewound before sizing and again before
// writing, and both passes must visit identical entries in identical order.
type DataBuilder struct{}

// Build constructs the content bytes for a data page from it, which must
// already yield entries in strictly ascending key order.
func (DataBuilder) Build(it iter.RewindableIter) []byte {
	it.Rewind()
	n := 0
	payload := 0
	for e := it.Next(); e != nil; e = it.Next() {
		n++
		payload += dataEntrySize(e.Value.(DataEntry))
	}

	offsetsSize := 4 * n
	content := make([]byte, offsetsSize+payload)

	it.Rewind()
	pos := offsetsSize
	i := 0
	for e := it.Next(); e != nil; e = it.Next() {
		binary.LittleEndian.PutUint32(content[4*i:], uint32(pos))
		written := encodeDataEntry(content[pos:], e.Value.(DataEntry))
		pos += written
		i++
	}
	return WithTag(ContentEntries, content)
}

// DataView reads a data page's content: an offset array followed by packed
// entries sorted ascending by key. NewDataView strips the leading content
// tag written by DataBuilder.
type DataView struct {
	content []byte
}

func NewDataView(tagged []byte) DataView {
	return DataView{content: Untagged(tagged)}
}

// Len returns the number of entries, recovered from the first offset per
// the offsets[0] == 4*n convention.
func (v DataView) Len() int {
	if len(v.content) == 0 {
		return 0
	}
	first := binary.LittleEndian.Uint32(v.content[0:4])
	return int(first) / 4
}

func (v DataView) offsetAt(i int) uint32 {
	return binary.LittleEndian.Uint32(v.content[4*i : 4*i+4])
}

// Get decodes the i-th entry.
func (v DataView) Get(i int) DataEntry {
	start := v.offsetAt(i)
	return decodeDataEntry(v.content[start:])
}

// Rank returns the index of the first entry whose key is >= target, using
// binary search over the offset array.
func (v DataView) Rank(target Key) int {
	n := v.Len()
	return sort.Search(n, func(i int) bool {
		e := v.Get(i)
		return Compare(e.Key, target) >= 0
	})
}

// Seek returns the entry at or after target, or false if none.
func (v DataView) Seek(target Key) (DataEntry, bool) {
	i := v.Rank(target)
	if i >= v.Len() {
		return DataEntry{}, false
	}
	return v.Get(i), true
}

// SeekBack returns the last entry whose key is <= target, walking backward
// from Rank to skip entries whose key strictly exceeds it (only
// non-trivial when multiple LSNs share the same user key).
func (v DataView) SeekBack(target Key) (DataEntry, bool) {
	i := v.Rank(target)
	if i < v.Len() {
		if e := v.Get(i); Compare(e.Key, target) == 0 {
			return e, true
		}
	}
	i--
	if i < 0 {
		return DataEntry{}, false
	}
	return v.Get(i), true
}

// Iter returns a seekable, rewindable iterator over this view's entries.
func (v DataView) Iter() *DataViewIter {
	return &DataViewIter{view: v}
}

// DataViewIter implements iter.SeekableRewindableIter over a DataView.
type DataViewIter struct {
	view DataView
	pos  int
	last *iter.Entry
}

func (it *DataViewIter) Last() *iter.Entry {
	return it.last
}

func (it *DataViewIter) Next() *iter.Entry {
	if it.pos >= it.view.Len() {
		it.last = nil
		return nil
	}
	e := it.view.Get(it.pos)
	it.pos++
	it.last = &iter.Entry{Key: e.Key, Value: e}
	return it.last
}

func (it *DataViewIter) Seek(target interface{}) {
	it.pos = it.view.Rank(target.(Key))
	it.last = nil
}

func (it *DataViewIter) Rewind() {
	it.pos = 0
	it.last = nil
}
