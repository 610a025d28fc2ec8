package types

import (
	"errors"
	"testing"
)

func TestStringOps(t *testing.T) {
	s := String("hello world")

	check := func(name string, got Value, err error, want Value) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !Equal(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}

	got, err := StrAt(s, 4)
	check("StrAt", got, err, String("o"))
	got, err = StrInsert(String("held"), 3, String("l"))
	check("StrInsert", got, err, String("helld"))
	got, err = StrErase(s, 5, NotFound)
	check("StrErase to end", got, err, String("hello"))
	got, err = StrErase(s, 0, 6)
	check("StrErase prefix", got, err, String("world"))
	got, err = StrReplace(s, 0, 5, String("howdy"))
	check("StrReplace", got, err, String("howdy world"))
	got, err = StrSub(s, 6, 3)
	check("StrSub", got, err, String("wor"))
	got, err = StrPush(String("ab"), 'c')
	check("StrPush", got, err, String("abc"))
	got, err = StrFind(s, String("o"), 0)
	check("StrFind", got, err, Uint64(4))
	got, err = StrFind(s, String("o"), 5)
	check("StrFind from", got, err, Uint64(7))
	got, err = StrFind(s, String("z"), 0)
	check("StrFind missing", got, err, Uint64(NotFound))
	got, err = StrRFind(s, String("o"), NotFound)
	check("StrRFind", got, err, Uint64(7))
	got, err = StrRFind(s, String("o"), 6)
	check("StrRFind upto", got, err, Uint64(4))
	got, err = StrCompare(String("b"), String("a"))
	check("StrCompare", got, err, Int32(1))

	if _, err := StrAt(s, 11); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("StrAt past end err = %v", err)
	}
	if _, err := StrAt(Int32(1), 0); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("StrAt on int err = %v", err)
	}
}

func TestSequenceOps(t *testing.T) {
	got, err := Slice(String("abcdef"), 1, 4)
	if err != nil || got.Str() != "bcd" {
		t.Errorf("Slice string = %v, %v", got, err)
	}
	got, err = Slice(Array(1, 2, 3, 4), 2, 4)
	if err != nil || !Equal(got, Array(3, 4)) {
		t.Errorf("Slice array = %v, %v", got, err)
	}
	if _, err := Slice(Array(1), 1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("inverted slice err = %v", err)
	}

	got, _ = Stride(String("abcdef"), 2)
	if got.Str() != "ace" {
		t.Errorf("Stride = %q", got.Str())
	}
	if _, err := Stride(Array(1), 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("zero stride err = %v", err)
	}

	got, _ = Reverse(Array(1, 2, 3))
	if !Equal(got, Array(3, 2, 1)) {
		t.Errorf("Reverse = %v", got)
	}
}

func TestArrayOps(t *testing.T) {
	a := Array(10, 20, 30)

	if v, _ := ArrayAt(a, 1); !Equal(v, Uint64(20)) {
		t.Errorf("ArrayAt = %v", v)
	}
	if v, _ := ArrayFront(a); !Equal(v, Uint64(10)) {
		t.Errorf("ArrayFront = %v", v)
	}
	if v, _ := ArrayBack(a); !Equal(v, Uint64(30)) {
		t.Errorf("ArrayBack = %v", v)
	}
	if v, _ := ArrayAppend(a, Int32(40)); !Equal(v, Array(10, 20, 30, 40)) {
		t.Errorf("ArrayAppend = %v", v)
	}
	if v, _ := ArrayErase(a, 0); !Equal(v, Array(20, 30)) {
		t.Errorf("ArrayErase = %v", v)
	}
	if v, _ := ArrayPop(a); !Equal(v, Array(10, 20)) {
		t.Errorf("ArrayPop = %v", v)
	}
	if _, err := ArrayBack(Array()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ArrayBack empty err = %v", err)
	}
	if _, err := ArrayAppend(a, String("x")); !errors.Is(err, ErrConversion) {
		t.Errorf("ArrayAppend string err = %v", err)
	}
}

func TestMapOps(t *testing.T) {
	m := Map(map[uint64]uint64{3: 30, 1: 10})

	if v, _ := MapHas(m, 3); !Equal(v, Bool(true)) {
		t.Errorf("MapHas = %v", v)
	}
	if v, _ := MapAt(m, 1); !Equal(v, Uint64(10)) {
		t.Errorf("MapAt = %v", v)
	}
	if _, err := MapAt(m, 2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("MapAt missing err = %v", err)
	}
	put, _ := MapPut(m, 2, Uint8(20))
	if put.Len() != 3 || m.Len() != 2 {
		t.Errorf("MapPut lens = %d, %d", put.Len(), m.Len())
	}
	erased, _ := MapErase(put, 3)
	if !Equal(erased, Map(map[uint64]uint64{1: 10, 2: 20})) {
		t.Errorf("MapErase = %v", erased)
	}
	if keys, _ := MapKeys(put); !Equal(keys, Array(1, 2, 3)) {
		t.Errorf("MapKeys = %v", keys)
	}
	if vals, _ := MapValues(put); !Equal(vals, Array(10, 20, 30)) {
		t.Errorf("MapValues = %v", vals)
	}
}
