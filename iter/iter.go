// Package iter defines the forward/seekable/rewindable iterator capability
// layers used throughout the tree engine, and a k-way merging iterator over
// them.
package iter

// Entry is a single (key, value) pair produced by an iterator. Key and
// Value are left as interface{} so the same iterator machinery serves both
// data-page entries (page.Key, page.DataEntry) and index-page entries
// ([]byte separator, page.IndexEntry).
type Entry struct {
	Key   interface{}
	Value interface{}
}

// Less orders two keys. Concrete iterators are built against a fixed Less
// function supplied at construction time, mirroring the Ord bound the
// original implementation places on its iterator's Key type.
type Less func(a, b interface{}) bool

// ForwardIter advances one entry at a time.
type ForwardIter interface {
	// Last returns the most recently returned entry, or nil if Next has not
	// been called since construction or the last Rewind/Seek.
	Last() *Entry
	// Next advances to the next entry and returns it, or nil if exhausted.
	Next() *Entry
}

// SeekableIter positions the next entry at or after a target key.
type SeekableIter interface {
	ForwardIter
	Seek(target interface{})
}

// RewindableIter positions the next entry at the beginning.
type RewindableIter interface {
	ForwardIter
	Rewind()
}

// SeekableRewindableIter is the combination most page iterators implement.
type SeekableRewindableIter interface {
	ForwardIter
	Seek(target interface{})
	Rewind()
}
