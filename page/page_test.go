package page_test

import (
	"testing"

	"github.com/hmarui66/bwtree-go/iter"
	"github.com/hmarui66/bwtree-go/page"
)

func entries(pairs ...[2]string) []iter.Entry {
	out := make([]iter.Entry, len(pairs))
	for i, p := range pairs {
		e := page.DataEntry{
			Key:   page.Key{User: []byte(p[0]), LSN: 1},
			Value: page.Value{Bytes: []byte(p[1])},
		}
		out[i] = iter.Entry{Key: e.Key, Value: e}
	}
	return out
}

func TestDataBuilder_buildAndReadBack(t *testing.T) {
	content := page.DataBuilder{}.Build(iter.NewSliceIter(entries(
		[2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"},
	), page.Less))

	v := page.NewDataView(content)
	if got := v.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	for i, want := range []string{"a", "b", "c"} {
		e := v.Get(i)
		if string(e.Key.User) != want {
			t.Errorf("Get(%d).Key.User = %q, want %q", i, e.Key.User, want)
		}
	}
}

func TestDataView_seek(t *testing.T) {
	content := page.DataBuilder{}.Build(iter.NewSliceIter(entries(
		[2]string{"a", "1"}, [2]string{"c", "3"}, [2]string{"e", "5"},
	), page.Less))
	v := page.NewDataView(content)

	e, ok := v.Seek(page.Key{User: []byte("b"), LSN: 1})
	if !ok || string(e.Key.User) != "c" {
		t.Errorf("Seek(b) = %q, %v; want c, true", e.Key.User, ok)
	}

	if _, ok := v.Seek(page.Key{User: []byte("z"), LSN: 1}); ok {
		t.Errorf("Seek(z) = ok, want not found")
	}
}

func TestKey_compareOrdersByUserThenLSNDescending(t *testing.T) {
	a := page.Key{User: []byte("x"), LSN: 5}
	b := page.Key{User: []byte("x"), LSN: 10}
	if page.Compare(a, b) <= 0 {
		t.Errorf("Compare(LSN 5, LSN 10) = %d, want > 0 (higher LSN sorts first)", page.Compare(a, b))
	}
	if page.Compare(a, a) != 0 {
		t.Errorf("Compare(a, a) = %d, want 0", page.Compare(a, a))
	}
}

func TestSplitDelta_coversRange(t *testing.T) {
	d := page.SplitDelta{Middle: []byte("m"), Highest: []byte("t")}
	if d.Covers([]byte("m")) {
		t.Errorf("Covers(m) = true, want false (exclusive lower bound)")
	}
	if !d.Covers([]byte("n")) {
		t.Errorf("Covers(n) = false, want true")
	}
	if d.Covers([]byte("z")) {
		t.Errorf("Covers(z) = true, want false (beyond highest)")
	}
}

func TestSplitDelta_encodeDecodeRoundTrip(t *testing.T) {
	want := page.SplitDelta{Lowest: []byte("a"), Middle: []byte("m"), Highest: []byte("z"), Right: 42}
	got := page.DecodeSplitDelta(page.EncodeSplitDelta(want))
	if string(got.Lowest) != string(want.Lowest) || string(got.Middle) != string(want.Middle) ||
		string(got.Highest) != string(want.Highest) || got.Right != want.Right {
		t.Errorf("DecodeSplitDelta(EncodeSplitDelta(%+v)) = %+v", want, got)
	}
}

func TestMergeDelta_encodeDecodeRoundTrip(t *testing.T) {
	want := page.MergeDelta{Lowest: []byte("a"), Highest: []byte("m"), Right: 7}
	tagged := page.EncodeMergeDelta(want)
	if page.TagOf(tagged) != page.ContentMerge {
		t.Fatalf("TagOf() = %v, want ContentMerge", page.TagOf(tagged))
	}
	got := page.DecodeMergeDelta(tagged)
	if string(got.Lowest) != string(want.Lowest) || got.Right != want.Right {
		t.Errorf("DecodeMergeDelta(EncodeMergeDelta(%+v)) = %+v", want, got)
	}
}

func TestIndexDelta_coversHalfOpenRange(t *testing.T) {
	d := page.IndexDelta{Lowest: []byte("b"), Highest: []byte("d")}
	if !d.Covers([]byte("b")) {
		t.Errorf("Covers(b) = false, want true (inclusive lower bound)")
	}
	if d.Covers([]byte("d")) {
		t.Errorf("Covers(d) = true, want false (exclusive upper bound)")
	}
	if d.Covers([]byte("a")) {
		t.Errorf("Covers(a) = true, want false")
	}
}

func TestIndexDelta_encodeDecodeRoundTrip(t *testing.T) {
	want := page.IndexDelta{
		Lowest: []byte("k"), Highest: []byte("z"),
		NewChild: page.IndexValue{Child: 3, Version: 9},
		Delete:   true,
	}
	got := page.DecodeIndexDelta(page.EncodeIndexDelta(want))
	if string(got.Lowest) != string(want.Lowest) || got.NewChild != want.NewChild || got.Delete != want.Delete {
		t.Errorf("DecodeIndexDelta(EncodeIndexDelta(%+v)) = %+v", want, got)
	}
}

func TestIndexView_descendPicksLargestSeparatorLE(t *testing.T) {
	list := []iter.Entry{
		{Key: []byte("a"), Value: page.IndexEntry{Separator: []byte("a"), Value: page.IndexValue{Child: 1}}},
		{Key: []byte("m"), Value: page.IndexEntry{Separator: []byte("m"), Value: page.IndexValue{Child: 2}}},
	}
	content := page.IndexBuilder{}.Build(iter.NewSliceIter(list, page.IndexLess))
	v := page.NewIndexView(content)

	e, ok := v.Descend([]byte("z"))
	if !ok || e.Value.Child != 2 {
		t.Errorf("Descend(z) = %+v, %v; want child 2, true", e, ok)
	}
	e, ok = v.Descend([]byte("a"))
	if !ok || e.Value.Child != 1 {
		t.Errorf("Descend(a) = %+v, %v; want child 1, true", e, ok)
	}
	if _, ok := v.Descend([]byte("0")); ok {
		t.Errorf("Descend(0) before first separator = ok, want not found")
	}
}

func TestHeader_roundTripsFields(t *testing.T) {
	p := page.NewPage(4)
	p.SetKind(page.KindSplit)
	p.SetIsIndex(true)
	p.SetVersion(123)
	p.SetChainLen(5)
	p.SetNext(999)
	copy(p.Content(), []byte("xyzw"))

	if p.Kind() != page.KindSplit {
		t.Errorf("Kind() = %v, want KindSplit", p.Kind())
	}
	if !p.IsIndex() {
		t.Errorf("IsIndex() = false, want true")
	}
	if p.Version() != 123 {
		t.Errorf("Version() = %d, want 123", p.Version())
	}
	if p.ChainLen() != 5 {
		t.Errorf("ChainLen() = %d, want 5", p.ChainLen())
	}
	if p.Next() != 999 {
		t.Errorf("Next() = %d, want 999", p.Next())
	}
	if string(p.Content()) != "xyzw" {
		t.Errorf("Content() = %q, want xyzw", p.Content())
	}
}

func TestRemoveMarker_tagIsContentRemove(t *testing.T) {
	if got := page.TagOf(page.EncodeRemoveMarker()); got != page.ContentRemove {
		t.Errorf("TagOf(EncodeRemoveMarker()) = %v, want ContentRemove", got)
	}
}
