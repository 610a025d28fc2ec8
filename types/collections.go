package types

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// NotFound is the index string searches report when the needle is absent.
const NotFound = math.MaxUint64

func want(v Value, k Kind, op string) error {
	if v.kind != k {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedOperator, op, v.kind)
	}
	return nil
}

func outOfRange(op string, idx uint64, n int) error {
	return fmt.Errorf("%w: %s index %d, length %d", ErrOutOfRange, op, idx, n)
}

// ---------------------------------------------------------------------------
// Generic sequence operations (strings and arrays)
// ---------------------------------------------------------------------------

// Slice returns v[start:stop] for strings and arrays.
func Slice(v Value, start, stop uint64) (Value, error) {
	n := uint64(v.Len())
	if start > stop || stop > n {
		return Value{}, fmt.Errorf("%w: slice [%d:%d] of length %d", ErrOutOfRange, start, stop, n)
	}
	switch v.kind {
	case KindString:
		return String(v.str[start:stop]), nil
	case KindArray:
		return Array(v.ary[start:stop]...), nil
	}
	return Value{}, fmt.Errorf("%w: slice on %s", ErrUnsupportedOperator, v.kind)
}

// Stride returns every step-th element of a string or array.
func Stride(v Value, step uint64) (Value, error) {
	if step == 0 {
		return Value{}, fmt.Errorf("%w: stride of 0", ErrOutOfRange)
	}
	switch v.kind {
	case KindString:
		var b strings.Builder
		for i := uint64(0); i < uint64(len(v.str)); i += step {
			b.WriteByte(v.str[i])
		}
		return String(b.String()), nil
	case KindArray:
		out := make([]uint64, 0, uint64(len(v.ary))/step+1)
		for i := uint64(0); i < uint64(len(v.ary)); i += step {
			out = append(out, v.ary[i])
		}
		return Value{kind: KindArray, ary: out}, nil
	}
	return Value{}, fmt.Errorf("%w: stride on %s", ErrUnsupportedOperator, v.kind)
}

// Reverse returns a string or array in reverse order.
func Reverse(v Value) (Value, error) {
	switch v.kind {
	case KindString:
		b := []byte(v.str)
		slices.Reverse(b)
		return String(string(b)), nil
	case KindArray:
		out := v.Elems()
		slices.Reverse(out)
		return Value{kind: KindArray, ary: out}, nil
	}
	return Value{}, fmt.Errorf("%w: reverse on %s", ErrUnsupportedOperator, v.kind)
}

// ---------------------------------------------------------------------------
// String operations
// ---------------------------------------------------------------------------

// StrAt returns the single-byte string at idx.
func StrAt(s Value, idx uint64) (Value, error) {
	if err := want(s, KindString, "strat"); err != nil {
		return Value{}, err
	}
	if idx >= uint64(len(s.str)) {
		return Value{}, outOfRange("strat", idx, len(s.str))
	}
	return String(s.str[idx : idx+1]), nil
}

// StrAppend returns s followed by t.
func StrAppend(s, t Value) (Value, error) {
	if err := want(s, KindString, "strapd"); err != nil {
		return Value{}, err
	}
	if err := want(t, KindString, "strapd"); err != nil {
		return Value{}, err
	}
	return String(s.str + t.str), nil
}

// StrPush appends one byte to s.
func StrPush(s Value, c byte) (Value, error) {
	if err := want(s, KindString, "strpsh"); err != nil {
		return Value{}, err
	}
	return String(s.str + string([]byte{c})), nil
}

// StrInsert inserts t into s at pos.
func StrInsert(s Value, pos uint64, t Value) (Value, error) {
	if err := want(s, KindString, "strist"); err != nil {
		return Value{}, err
	}
	if err := want(t, KindString, "strist"); err != nil {
		return Value{}, err
	}
	if pos > uint64(len(s.str)) {
		return Value{}, outOfRange("strist", pos, len(s.str))
	}
	return String(s.str[:pos] + t.str + s.str[pos:]), nil
}

// StrErase removes n bytes from s starting at pos. An n past the end erases
// to the end.
func StrErase(s Value, pos, n uint64) (Value, error) {
	if err := want(s, KindString, "strers"); err != nil {
		return Value{}, err
	}
	l := uint64(len(s.str))
	if pos > l {
		return Value{}, outOfRange("strers", pos, len(s.str))
	}
	end := l
	if n < l-pos {
		end = pos + n
	}
	return String(s.str[:pos] + s.str[end:]), nil
}

// StrReplace replaces n bytes of s starting at pos with t.
func StrReplace(s Value, pos, n uint64, t Value) (Value, error) {
	erased, err := StrErase(s, pos, n)
	if err != nil {
		return Value{}, err
	}
	return StrInsert(erased, pos, t)
}

// StrSub returns up to n bytes of s starting at pos.
func StrSub(s Value, pos, n uint64) (Value, error) {
	if err := want(s, KindString, "strsub"); err != nil {
		return Value{}, err
	}
	l := uint64(len(s.str))
	if pos > l {
		return Value{}, outOfRange("strsub", pos, len(s.str))
	}
	end := l
	if n < l-pos {
		end = pos + n
	}
	return String(s.str[pos:end]), nil
}

// StrFind returns the index of the first needle at or after from, or
// NotFound.
func StrFind(s, needle Value, from uint64) (Value, error) {
	if err := want(s, KindString, "strfnd"); err != nil {
		return Value{}, err
	}
	if err := want(needle, KindString, "strfnd"); err != nil {
		return Value{}, err
	}
	if from > uint64(len(s.str)) {
		return Uint64(NotFound), nil
	}
	i := strings.Index(s.str[from:], needle.str)
	if i < 0 {
		return Uint64(NotFound), nil
	}
	return Uint64(from + uint64(i)), nil
}

// StrRFind returns the index of the last needle starting at or before upto,
// or NotFound.
func StrRFind(s, needle Value, upto uint64) (Value, error) {
	if err := want(s, KindString, "strrfnd"); err != nil {
		return Value{}, err
	}
	if err := want(needle, KindString, "strrfnd"); err != nil {
		return Value{}, err
	}
	end := uint64(len(s.str))
	if upto < end && upto+uint64(len(needle.str)) < end {
		end = upto + uint64(len(needle.str))
	}
	i := strings.LastIndex(s.str[:end], needle.str)
	if i < 0 {
		return Uint64(NotFound), nil
	}
	return Uint64(uint64(i)), nil
}

// StrCompare returns int32 -1, 0 or 1.
func StrCompare(a, b Value) (Value, error) {
	if err := want(a, KindString, "strcmp"); err != nil {
		return Value{}, err
	}
	if err := want(b, KindString, "strcmp"); err != nil {
		return Value{}, err
	}
	return Int32(int32(strings.Compare(a.str, b.str))), nil
}

// ---------------------------------------------------------------------------
// Array operations
// ---------------------------------------------------------------------------

// ArrayAt returns element idx as a uint64 value.
func ArrayAt(a Value, idx uint64) (Value, error) {
	if err := want(a, KindArray, "aryat"); err != nil {
		return Value{}, err
	}
	if idx >= uint64(len(a.ary)) {
		return Value{}, outOfRange("aryat", idx, len(a.ary))
	}
	return Uint64(a.ary[idx]), nil
}

// ArrayFront returns the first element.
func ArrayFront(a Value) (Value, error) {
	return ArrayAt(a, 0)
}

// ArrayBack returns the last element.
func ArrayBack(a Value) (Value, error) {
	if err := want(a, KindArray, "arybak"); err != nil {
		return Value{}, err
	}
	if len(a.ary) == 0 {
		return Value{}, outOfRange("arybak", 0, 0)
	}
	return Uint64(a.ary[len(a.ary)-1]), nil
}

// ArrayPut returns a copy of a with element idx set to elem.
func ArrayPut(a Value, idx uint64, elem Value) (Value, error) {
	if err := want(a, KindArray, "aryput"); err != nil {
		return Value{}, err
	}
	if idx >= uint64(len(a.ary)) {
		return Value{}, outOfRange("aryput", idx, len(a.ary))
	}
	e, err := Element(elem)
	if err != nil {
		return Value{}, err
	}
	out := a.Elems()
	out[idx] = e
	return Value{kind: KindArray, ary: out}, nil
}

// ArrayAppend returns a copy of a with elem appended.
func ArrayAppend(a Value, elem Value) (Value, error) {
	if err := want(a, KindArray, "aryapnd"); err != nil {
		return Value{}, err
	}
	e, err := Element(elem)
	if err != nil {
		return Value{}, err
	}
	out := make([]uint64, len(a.ary), len(a.ary)+1)
	copy(out, a.ary)
	return Value{kind: KindArray, ary: append(out, e)}, nil
}

// ArrayErase returns a copy of a without element idx.
func ArrayErase(a Value, idx uint64) (Value, error) {
	if err := want(a, KindArray, "aryers"); err != nil {
		return Value{}, err
	}
	if idx >= uint64(len(a.ary)) {
		return Value{}, outOfRange("aryers", idx, len(a.ary))
	}
	return Value{kind: KindArray, ary: slices.Delete(a.Elems(), int(idx), int(idx)+1)}, nil
}

// ArrayPop returns a copy of a without its last element.
func ArrayPop(a Value) (Value, error) {
	if err := want(a, KindArray, "arypop"); err != nil {
		return Value{}, err
	}
	if len(a.ary) == 0 {
		return Value{}, outOfRange("arypop", 0, 0)
	}
	return Array(a.ary[:len(a.ary)-1]...), nil
}

// ---------------------------------------------------------------------------
// Map operations
// ---------------------------------------------------------------------------

// MapHas reports whether key is present.
func MapHas(m Value, key uint64) (Value, error) {
	if err := want(m, KindMap, "mapfind"); err != nil {
		return Value{}, err
	}
	_, ok := m.m[key]
	return Bool(ok), nil
}

// MapAt returns the element at key as a uint64 value.
func MapAt(m Value, key uint64) (Value, error) {
	if err := want(m, KindMap, "mapat"); err != nil {
		return Value{}, err
	}
	e, ok := m.m[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: mapat key %d", ErrOutOfRange, key)
	}
	return Uint64(e), nil
}

// MapPut returns a copy of m with key set to elem.
func MapPut(m Value, key uint64, elem Value) (Value, error) {
	if err := want(m, KindMap, "mapput"); err != nil {
		return Value{}, err
	}
	e, err := Element(elem)
	if err != nil {
		return Value{}, err
	}
	out := m.Entries()
	out[key] = e
	return Value{kind: KindMap, m: out}, nil
}

// MapErase returns a copy of m without key. Missing keys are an error.
func MapErase(m Value, key uint64) (Value, error) {
	if err := want(m, KindMap, "mapers"); err != nil {
		return Value{}, err
	}
	if _, ok := m.m[key]; !ok {
		return Value{}, fmt.Errorf("%w: mapers key %d", ErrOutOfRange, key)
	}
	out := m.Entries()
	delete(out, key)
	return Value{kind: KindMap, m: out}, nil
}

// MapKeys returns the keys as an array in ascending order.
func MapKeys(m Value) (Value, error) {
	if err := want(m, KindMap, "mapkeys"); err != nil {
		return Value{}, err
	}
	return Value{kind: KindArray, ary: sortedKeys(m.m)}, nil
}

// MapValues returns the elements as an array in ascending key order.
func MapValues(m Value) (Value, error) {
	if err := want(m, KindMap, "mapvals"); err != nil {
		return Value{}, err
	}
	keys := sortedKeys(m.m)
	out := make([]uint64, len(keys))
	for i, k := range keys {
		out[i] = m.m[k]
	}
	return Value{kind: KindArray, ary: out}, nil
}
