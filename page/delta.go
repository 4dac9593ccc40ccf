package page

import (
	"bytes"
	"encoding/binary"
)

// ContentTag discriminates, within a Data-kind (or index, via the header's
// is-index bit) page, whether its content is the plain offset-array entry
// list or a merge/remove delta. The header's own Kind byte only
// distinguishes {Data, Split} per the bit-exact layout in the external
// interface; merge and remove are layered on top of a Data-kind page via
// this leading content byte, since nothing outside this module ever reads
// page bytes directly.
type ContentTag byte

const (
	ContentEntries    ContentTag = 0
	ContentMerge      ContentTag = 1
	ContentRemove     ContentTag = 2
	ContentIndexDelta ContentTag = 3
)

// TagOf reads the leading content-tag byte. Split-kind pages never carry
// one: their content is always a SplitDelta.
func TagOf(content []byte) ContentTag {
	if len(content) == 0 {
		return ContentEntries
	}
	return ContentTag(content[0])
}

// WithTag prefixes content with a one-byte tag.
func WithTag(tag ContentTag, content []byte) []byte {
	out := make([]byte, 1+len(content))
	out[0] = byte(tag)
	copy(out[1:], content)
	return out
}

// Untagged strips the leading tag byte added by WithTag.
func Untagged(content []byte) []byte {
	if len(content) == 0 {
		return content
	}
	return content[1:]
}

// SplitDelta is the payload of a Split-kind page: it signals that keys in
// (Middle, Highest] have moved to Right, before the parent index has been
// updated to reflect it.
type SplitDelta struct {
	Lowest  []byte
	Middle  []byte
	Highest []byte
	Right   uint64
}

// Covers reports whether key falls in (Middle, Highest], the range that
// moved to Right.
func (d SplitDelta) Covers(key []byte) bool {
	if bytes.Compare(key, d.Middle) <= 0 {
		return false
	}
	if len(d.Highest) > 0 && bytes.Compare(key, d.Highest) > 0 {
		return false
	}
	return true
}

// EncodeSplitDelta writes d as the content of a Split-kind page.
func EncodeSplitDelta(d SplitDelta) []byte {
	buf := make([]byte, 4+len(d.Lowest)+4+len(d.Middle)+4+len(d.Highest)+8)
	off := 0
	off += putBytes(buf[off:], d.Lowest)
	off += putBytes(buf[off:], d.Middle)
	off += putBytes(buf[off:], d.Highest)
	binary.LittleEndian.PutUint64(buf[off:], d.Right)
	return buf
}

// DecodeSplitDelta reads a SplitDelta from a Split-kind page's content.
func DecodeSplitDelta(content []byte) SplitDelta {
	off := 0
	lowest, n := getBytes(content[off:])
	off += n
	middle, n := getBytes(content[off:])
	off += n
	highest, n := getBytes(content[off:])
	off += n
	right := binary.LittleEndian.Uint64(content[off:])
	return SplitDelta{Lowest: lowest, Middle: middle, Highest: highest, Right: right}
}

func putBytes(buf, b []byte) int {
	binary.LittleEndian.PutUint32(buf, uint32(len(b)))
	copy(buf[4:], b)
	return 4 + len(b)
}

func getBytes(buf []byte) ([]byte, int) {
	n := int(binary.LittleEndian.Uint32(buf))
	return buf[4 : 4+n], 4 + n
}

// MergeDelta is posted on the surviving left sibling: it carries the right
// sibling's address by ownership so a later step can delete the right PID
// from the parent and free it.
type MergeDelta struct {
	Lowest  []byte
	Highest []byte
	Right   uint64
}

func EncodeMergeDelta(d MergeDelta) []byte {
	buf := make([]byte, 4+len(d.Lowest)+4+len(d.Highest)+8)
	off := 0
	off += putBytes(buf[off:], d.Lowest)
	off += putBytes(buf[off:], d.Highest)
	binary.LittleEndian.PutUint64(buf[off:], d.Right)
	return WithTag(ContentMerge, buf)
}

func DecodeMergeDelta(tagged []byte) MergeDelta {
	content := Untagged(tagged)
	off := 0
	lowest, n := getBytes(content[off:])
	off += n
	highest, n := getBytes(content[off:])
	off += n
	right := binary.LittleEndian.Uint64(content[off:])
	return MergeDelta{Lowest: lowest, Highest: highest, Right: right}
}

// RemoveMarker content is just the tag byte: it signals the page chain it
// terminates has been logically deleted.
func EncodeRemoveMarker() []byte {
	return WithTag(ContentRemove, nil)
}

// IndexDelta is a one-entry addition to an index node's chain: it covers
// the half-open key range [Lowest, Highest) (Highest empty means
// unbounded) and, within it, routes to NewChild. Installed by split
// reconciliation (new separator for the right half) and by plain index
// updates alike. Delete marks a separator removed by merge reconciliation;
// NewChild is unused in that case since the surviving neighbor's own
// separator takes over the deleted range.
type IndexDelta struct {
	Lowest   []byte
	Highest  []byte
	NewChild IndexValue
	Delete   bool
}

// Covers reports whether key falls within d's range.
func (d IndexDelta) Covers(key []byte) bool {
	if bytes.Compare(key, d.Lowest) < 0 {
		return false
	}
	if len(d.Highest) > 0 && bytes.Compare(key, d.Highest) >= 0 {
		return false
	}
	return true
}

func EncodeIndexDelta(d IndexDelta) []byte {
	buf := make([]byte, 4+len(d.Lowest)+4+len(d.Highest)+8+8+1)
	off := 0
	off += putBytes(buf[off:], d.Lowest)
	off += putBytes(buf[off:], d.Highest)
	binary.LittleEndian.PutUint64(buf[off:], d.NewChild.Child)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], d.NewChild.Version)
	off += 8
	if d.Delete {
		buf[off] = 1
	}
	return WithTag(ContentIndexDelta, buf)
}

func DecodeIndexDelta(tagged []byte) IndexDelta {
	content := Untagged(tagged)
	off := 0
	lowest, n := getBytes(content[off:])
	off += n
	highest, n := getBytes(content[off:])
	off += n
	child := binary.LittleEndian.Uint64(content[off:])
	off += 8
	ver := binary.LittleEndian.Uint64(content[off:])
	off += 8
	del := content[off] == 1
	return IndexDelta{Lowest: lowest, Highest: highest, NewChild: IndexValue{Child: child, Version: ver}, Delete: del}
}
