// Package types implements the VM's native value system: a closed tagged
// union of primitive kinds plus generic unary and binary operator dispatch
// with size-based type promotion.
//
// Values have value semantics. Strings are immutable, and every operation
// that changes an array or map returns a fresh copy, so a Value can be pushed
// on several stacks or stored in the native pool without aliasing.
package types

import (
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Value is a native type handle.
//
// Integer kinds are stored sign-extended in num, bool as 0/1, decimal as the
// float64 bits of the float32 value, decimal2 as float64 bits.
type Value struct {
	kind Kind
	num  uint64
	str  string
	ary  []uint64
	m    map[uint64]uint64
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func Int8(v int8) Value     { return Value{kind: KindInt8, num: uint64(int64(v))} }
func Uint8(v uint8) Value   { return Value{kind: KindUint8, num: uint64(v)} }
func Int16(v int16) Value   { return Value{kind: KindInt16, num: uint64(int64(v))} }
func Uint16(v uint16) Value { return Value{kind: KindUint16, num: uint64(v)} }
func Int32(v int32) Value   { return Value{kind: KindInt32, num: uint64(int64(v))} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, num: uint64(v)} }
func Int64(v int64) Value   { return Value{kind: KindInt64, num: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, num: v} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

func Decimal(v float32) Value {
	return Value{kind: KindDecimal, num: math.Float64bits(float64(v))}
}

func Decimal2(v float64) Value {
	return Value{kind: KindDecimal2, num: math.Float64bits(v)}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Array builds an array value. The elements are copied.
func Array(elems ...uint64) Value {
	return Value{kind: KindArray, ary: slices.Clone(elems)}
}

// Map builds a map value. The entries are copied.
func Map(m map[uint64]uint64) Value {
	out := make(map[uint64]uint64, len(m))
	maps.Copy(out, m)
	return Value{kind: KindMap, m: out}
}

// Zero returns the zero value of kind k.
func Zero(k Kind) Value {
	switch k.class() {
	case classString:
		return String("")
	case classArray:
		return Array()
	case classMap:
		return Map(nil)
	}
	return Value{kind: k}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Int returns the value as int64. Only meaningful for numeric kinds.
func (v Value) Int() int64 { return v.i64() }

// Uint returns the value as uint64. Only meaningful for numeric kinds.
func (v Value) Uint() uint64 { return v.u64() }

// Float returns the value as float64. Only meaningful for numeric kinds.
func (v Value) Float() float64 { return v.f64() }

// Str returns the string payload, or "" for non-strings.
func (v Value) Str() string { return v.str }

// Elems returns a copy of the array payload.
func (v Value) Elems() []uint64 { return slices.Clone(v.ary) }

// Entries returns a copy of the map payload.
func (v Value) Entries() map[uint64]uint64 {
	out := make(map[uint64]uint64, len(v.m))
	maps.Copy(out, v.m)
	return out
}

// Len returns the length of a string, array or map, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindArray:
		return len(v.ary)
	case KindMap:
		return len(v.m)
	}
	return 0
}

func (v Value) i64() int64 {
	switch v.kind.class() {
	case classFloat:
		return int64(v.f64())
	}
	return int64(v.num)
}

func (v Value) u64() uint64 {
	switch v.kind.class() {
	case classFloat:
		return uint64(v.f64())
	}
	return v.num
}

func (v Value) f64() float64 {
	switch v.kind.class() {
	case classFloat:
		return math.Float64frombits(v.num)
	case classSigned:
		return float64(int64(v.num))
	}
	return float64(v.num)
}

// ---------------------------------------------------------------------------
// Numeric construction by kind
// ---------------------------------------------------------------------------

func fromInt64(k Kind, x int64) Value {
	switch k {
	case KindInt8:
		return Int8(int8(x))
	case KindUint8:
		return Uint8(uint8(x))
	case KindInt16:
		return Int16(int16(x))
	case KindUint16:
		return Uint16(uint16(x))
	case KindInt32:
		return Int32(int32(x))
	case KindUint32:
		return Uint32(uint32(x))
	case KindInt64:
		return Int64(x)
	case KindUint64:
		return Uint64(uint64(x))
	case KindBool:
		return Bool(x != 0)
	case KindDecimal:
		return Decimal(float32(x))
	case KindDecimal2:
		return Decimal2(float64(x))
	}
	return Zero(k)
}

func fromUint64(k Kind, x uint64) Value {
	switch k {
	case KindDecimal:
		return Decimal(float32(x))
	case KindDecimal2:
		return Decimal2(float64(x))
	case KindBool:
		return Bool(x != 0)
	}
	return fromInt64(k, int64(x))
}

func fromFloat64(k Kind, x float64) Value {
	switch k {
	case KindDecimal:
		return Decimal(float32(x))
	case KindDecimal2:
		return Decimal2(x)
	case KindBool:
		return Bool(x != 0)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		if x < 0 {
			return fromInt64(k, int64(x))
		}
		return fromUint64(k, uint64(x))
	}
	return fromInt64(k, int64(x))
}

// cast converts a numeric value to another numeric kind with Go conversion
// semantics (truncation, wrap-around).
func cast(v Value, k Kind) Value {
	switch v.kind.class() {
	case classSigned:
		return fromInt64(k, v.i64())
	case classFloat:
		return fromFloat64(k, v.f64())
	}
	return fromUint64(k, v.u64())
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Truthy reports whether the value counts as true for conditional jumps:
// non-zero numbers and non-empty strings, arrays and maps.
func Truthy(v Value) bool {
	switch v.kind.class() {
	case classFloat:
		return v.f64() != 0
	case classString, classArray, classMap:
		return v.Len() > 0
	}
	return v.num != 0
}

// Equal reports whether a and b have the same kind and payload.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind.class() {
	case classString:
		return a.str == b.str
	case classArray:
		return slices.Equal(a.ary, b.ary)
	case classMap:
		return maps.Equal(a.m, b.m)
	case classFloat:
		return a.f64() == b.f64()
	}
	return a.num == b.num
}

// Repr renders the value. Strings render raw; arrays as [a, b]; maps as
// {k: v} in ascending key order.
func Repr(v Value) string {
	switch v.kind.class() {
	case classSigned:
		return strconv.FormatInt(v.i64(), 10)
	case classUnsigned:
		return strconv.FormatUint(v.u64(), 10)
	case classBool:
		return strconv.FormatBool(v.num != 0)
	case classFloat:
		if v.kind == KindDecimal {
			return strconv.FormatFloat(v.f64(), 'g', -1, 32)
		}
		return strconv.FormatFloat(v.f64(), 'g', -1, 64)
	case classString:
		return v.str
	case classArray:
		parts := make([]string, len(v.ary))
		for i, e := range v.ary {
			parts[i] = strconv.FormatUint(e, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case classMap:
		keys := sortedKeys(v.m)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.FormatUint(k, 10) + ": " + strconv.FormatUint(v.m[k], 10)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

func (v Value) String() string {
	return v.kind.String() + "(" + Repr(v) + ")"
}

// Hash returns a 64-bit hash of the value, salted with its kind so equal
// reprs of different kinds hash apart.
func Hash(v Value) uint64 {
	r := Repr(v)
	buf := make([]byte, 0, len(r)+1)
	buf = append(buf, byte(v.kind))
	buf = append(buf, r...)
	return xxh3.Hash(buf)
}

func sortedKeys(m map[uint64]uint64) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
