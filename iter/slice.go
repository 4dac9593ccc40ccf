package iter

import "sort"

// SliceIter turns a slice of Entry, already sorted by less, into a
// SeekableRewindableIter. It mirrors the original implementation's
// SliceIter, backing a data page's in-memory entry list before it is
// written out by a builder.
type SliceIter struct {
	data []Entry
	pos  int
	less Less
	last *Entry
}

// NewSliceIter wraps data, which must already be sorted ascending by less.
func NewSliceIter(data []Entry, less Less) *SliceIter {
	return &SliceIter{data: data, less: less}
}

func (s *SliceIter) Last() *Entry {
	return s.last
}

func (s *SliceIter) Next() *Entry {
	if s.pos >= len(s.data) {
		s.last = nil
		return nil
	}
	e := s.data[s.pos]
	s.last = &e
	s.pos++
	return s.last
}

func (s *SliceIter) Seek(target interface{}) {
	idx := sort.Search(len(s.data), func(i int) bool {
		return !s.less(s.data[i].Key, target)
	})
	s.pos = idx
	s.last = nil
}

func (s *SliceIter) Rewind() {
	s.pos = 0
	s.last = nil
}

// Len reports the number of entries backing this iterator.
func (s *SliceIter) Len() int {
	return len(s.data)
}
