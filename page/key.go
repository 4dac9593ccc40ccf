package page

import "bytes"

// Key is a user key paired with the LSN that produced it. Keys compare by
// user bytes lexicographically; ties are broken by LSN descending, so that
// seeking to the first entry >= a target returns the freshest visible
// version first.
type Key struct {
	User []byte
	LSN  uint64
}

// Compare returns <0, 0, >0 as a < b, a == b, a > b under the key ordering.
func Compare(a, b Key) int {
	if c := bytes.Compare(a.User, b.User); c != 0 {
		return c
	}
	switch {
	case a.LSN > b.LSN:
		return -1
	case a.LSN < b.LSN:
		return 1
	default:
		return 0
	}
}

// Less adapts Compare to the iter.Less signature over page.Key values.
func Less(a, b interface{}) bool {
	return Compare(a.(Key), b.(Key)) < 0
}

// Value is a tagged Put(bytes)/Tombstone variant.
type Value struct {
	Tombstone bool
	Bytes     []byte
}

// IndexValue is an index entry's payload: the child PID and the child's
// last-observed structural version.
type IndexValue struct {
	Child   uint64
	Version uint64
}
