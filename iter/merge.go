package iter

import "container/heap"

// MergingIter combines N child iterators into a k-way merge producing
// globally ascending keys. It maintains a min-heap keyed by each child's
// last-returned entry: Next pops the top child, advances it, and pushes it
// back. Seek and Rewind broadcast to every child and reset the heap; the
// heap is rebuilt lazily on the following Next, matching the original
// implementation's reset/init_heap split.
type MergingIter struct {
	less     Less
	children []ForwardIter
	h        *mergeHeap
	primed   bool
}

// MergingIterBuilder accumulates children before constructing a MergingIter.
type MergingIterBuilder struct {
	less     Less
	children []ForwardIter
}

// NewMergingIterBuilder creates a builder that orders entries with less.
func NewMergingIterBuilder(less Less) *MergingIterBuilder {
	return &MergingIterBuilder{less: less}
}

func (b *MergingIterBuilder) Add(child ForwardIter) {
	b.children = append(b.children, child)
}

func (b *MergingIterBuilder) Build() *MergingIter {
	return &MergingIter{less: b.less, children: b.children}
}

type mergeHeap struct {
	less Less
	data []ForwardIter
}

func (h *mergeHeap) Len() int { return len(h.data) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.data[i].Last(), h.data[j].Last()
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return h.less(a.Key, b.Key)
	}
}

func (h *mergeHeap) Swap(i, j int) { h.data[i], h.data[j] = h.data[j], h.data[i] }

func (h *mergeHeap) Push(x interface{}) { h.data = append(h.data, x.(ForwardIter)) }

func (h *mergeHeap) Pop() interface{} {
	n := len(h.data)
	x := h.data[n-1]
	h.data = h.data[:n-1]
	return x
}

// initHeap primes every child with one Next and heap-builds in one pass.
func (m *MergingIter) initHeap() {
	h := &mergeHeap{less: m.less, data: make([]ForwardIter, len(m.children))}
	copy(h.data, m.children)
	for _, c := range h.data {
		c.Next()
	}
	heap.Init(h)
	m.h = h
	m.primed = true
}

func (m *MergingIter) Last() *Entry {
	if m.h == nil || m.h.Len() == 0 {
		return nil
	}
	return m.h.data[0].Last()
}

func (m *MergingIter) Next() *Entry {
	if !m.primed {
		m.initHeap()
		return m.Last()
	}
	if m.h.Len() == 0 {
		return nil
	}
	top := m.h.data[0]
	top.Next()
	heap.Fix(m.h, 0)
	if m.h.data[0].Last() == nil {
		heap.Pop(m.h)
	}
	return m.Last()
}

func (m *MergingIter) reset(f func(ForwardIter)) {
	for _, c := range m.children {
		f(c)
	}
	m.h = nil
	m.primed = false
}

// Seek requires every child to implement SeekableIter.
func (m *MergingIter) Seek(target interface{}) {
	m.reset(func(c ForwardIter) {
		c.(SeekableIter).Seek(target)
	})
}

// Rewind requires every child to implement RewindableIter.
func (m *MergingIter) Rewind() {
	m.reset(func(c ForwardIter) {
		c.(RewindableIter).Rewind()
	})
}
