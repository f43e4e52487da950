package object

import "testing"

func TestAlignUp8(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 23: 24, 24: 24}
	for in, want := range cases {
		if got := AlignUp8(in); got != want {
			t.Errorf("AlignUp8(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestObjectSize(t *testing.T) {
	if got := ObjectSize(0); got != ObjectHeaderSize {
		t.Errorf("ObjectSize(0) = %d, want %d", got, ObjectHeaderSize)
	}
	if got := ObjectSize(4); got != 24 {
		t.Errorf("ObjectSize(4) = %d, want 24", got)
	}
}

func TestArraySize(t *testing.T) {
	if got := ArraySize(4, 3); got != 40 {
		t.Errorf("ArraySize(4,3) = %d, want 40 (24-byte array header + 12 payload rounded to 40)", got)
	}
	if got := ArraySize(1, 0); got != ArrayHeaderSize {
		t.Errorf("ArraySize(1,0) = %d, want %d", got, ArrayHeaderSize)
	}
}

func TestSpecialPrototypesComplete(t *testing.T) {
	want := []string{BoolPrototype, IntPrototype, StrPrototype, BoolListPrototype, IntListPrototype, ObjectListPrototype}
	for _, name := range want {
		if _, ok := SpecialPrototypes[name]; !ok {
			t.Errorf("missing special prototype %s", name)
		}
	}
}
