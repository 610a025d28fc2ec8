package types

import (
	"errors"
	"testing"
)

func mustBinary(t *testing.T, op BinaryOp, a, b Value) Value {
	t.Helper()
	r, err := Binary(op, a, b)
	if err != nil {
		t.Fatalf("Binary(%s, %v, %v): %v", op, a, b, err)
	}
	return r
}

func TestPromotionLaw(t *testing.T) {
	l := mustBinary(t, Addition, Int8(5), Int32(10))
	r := mustBinary(t, Addition, Int32(10), Int8(5))

	for _, v := range []Value{l, r} {
		if !Equal(v, Int32(15)) {
			t.Errorf("got %v, want int32(15)", v)
		}
	}
}

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b, want Kind
	}{
		{KindInt8, KindInt64, KindInt64},
		{KindUint64, KindInt8, KindUint64},
		{KindBool, KindInt16, KindInt16},
		{KindInt32, KindDecimal, KindInt32},
		{KindDecimal, KindInt32, KindDecimal},
		{KindDecimal, KindDecimal2, KindDecimal2},
		{KindUint16, KindInt16, KindUint16},
	}
	for _, tt := range tests {
		if got := Promote(tt.a, tt.b); got != tt.want {
			t.Errorf("Promote(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBinaryNumeric(t *testing.T) {
	tests := []struct {
		name string
		op   BinaryOp
		a, b Value
		want Value
	}{
		{"int8 wraps", Addition, Int8(127), Int8(1), Int8(-128)},
		{"uint8 wraps", Subtraction, Uint8(0), Uint8(1), Uint8(255)},
		{"mul int16", Multiplication, Int16(-3), Int16(7), Int16(-21)},
		{"div truncates", Division, Int64(-7), Int64(2), Int64(-3)},
		{"mod signed", Modulus, Int32(-7), Int32(3), Int32(-1)},
		{"mod decimal2", Modulus, Decimal2(7.5), Decimal2(2), Decimal2(1.5)},
		{"pow int", Power, Int32(3), Int32(4), Int32(81)},
		{"pow decimal2", Power, Decimal2(2), Decimal2(0.5), Decimal2(1.4142135623730951)},
		{"band", BitwiseAnd, Uint8(0xF0), Uint8(0x3C), Uint8(0x30)},
		{"bor", BitwiseOr, Uint16(1), Uint16(4), Uint16(5)},
		{"bxor", BitwiseXor, Int64(6), Int64(3), Int64(5)},
		{"shl", LeftShift, Uint32(1), Uint32(31), Uint32(1 << 31)},
		{"shr signed", RightShift, Int32(-8), Int32(1), Int32(-4)},
		{"lt yields promoted kind", Lt, Int8(1), Int64(2), Int64(1)},
		{"gte false", Gte, Uint32(1), Uint32(2), Uint32(0)},
		{"eq decimal", Eq, Decimal(1.5), Decimal(1.5), Decimal(1)},
		{"land", LogicalAnd, Int32(3), Int32(0), Int32(0)},
		{"lor", LogicalOr, Int32(0), Int32(9), Int32(1)},
		{"bool plus int", Addition, Bool(true), Int16(2), Int16(3)},
		{"bool and bool", LogicalAnd, Bool(true), Bool(true), Bool(true)},
		{"int and decimal keeps left on tie", Addition, Int32(1), Decimal(2.5), Int32(3)},
		{"decimal and int keeps left on tie", Addition, Decimal(2.5), Int32(1), Decimal(3.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustBinary(t, tt.op, tt.a, tt.b)
			if !Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, op := range []BinaryOp{Division, Modulus} {
		if _, err := Binary(op, Int32(1), Int8(0)); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("%s by zero: err = %v", op, err)
		}
		if _, err := Binary(op, Uint64(1), Uint64(0)); !errors.Is(err, ErrDivisionByZero) {
			t.Errorf("unsigned %s by zero: err = %v", op, err)
		}
	}
}

func TestStringSpecializations(t *testing.T) {
	got := mustBinary(t, Addition, String("foo"), String("bar"))
	if !Equal(got, String("foobar")) {
		t.Errorf("concat = %v", got)
	}

	cmp := []struct {
		op   BinaryOp
		want bool
	}{
		{Eq, false}, {Neq, true}, {Lt, true}, {Gt, false}, {Lte, true}, {Gte, false},
	}
	for _, c := range cmp {
		got := mustBinary(t, c.op, String("abc"), String("abd"))
		if !Equal(got, Bool(c.want)) {
			t.Errorf("%s: got %v, want bool(%v)", c.op, got, c.want)
		}
	}

	if _, err := Binary(Subtraction, String("a"), String("b")); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("string subtraction err = %v", err)
	}
}

func TestArrayAndMapSpecializations(t *testing.T) {
	got := mustBinary(t, Addition, Array(1, 2), Array(3))
	if !Equal(got, Array(1, 2, 3)) {
		t.Errorf("array append = %v", got)
	}
	if lt := mustBinary(t, Lt, Array(1, 2), Array(1, 3)); !Equal(lt, Bool(true)) {
		t.Errorf("array lt = %v", lt)
	}

	merged := mustBinary(t, Addition, Map(map[uint64]uint64{1: 1, 2: 2}), Map(map[uint64]uint64{2: 9}))
	if !Equal(merged, Map(map[uint64]uint64{1: 1, 2: 9})) {
		t.Errorf("map merge = %v", merged)
	}
	if _, err := Binary(Lt, Map(nil), Map(nil)); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("map lt err = %v", err)
	}
}

func TestMixedKindsFailLoudly(t *testing.T) {
	pairs := [][2]Value{
		{String("1"), Int32(1)},
		{Int32(1), String("1")},
		{Array(1), String("x")},
		{Map(nil), Int8(0)},
	}
	for _, p := range pairs {
		if _, err := Binary(Addition, p[0], p[1]); !errors.Is(err, ErrUnsupportedOperator) {
			t.Errorf("%v + %v: err = %v", p[0], p[1], err)
		}
		if _, err := Binary(Eq, p[0], p[1]); !errors.Is(err, ErrUnsupportedOperator) {
			t.Errorf("%v == %v: err = %v", p[0], p[1], err)
		}
	}
}

func TestBitwiseOnDecimalUnsupported(t *testing.T) {
	if _, err := Binary(BitwiseAnd, Decimal2(1), Decimal2(1)); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("decimal band err = %v", err)
	}
	if _, err := Unary(BitwiseNot, Decimal(1)); !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("decimal bnot err = %v", err)
	}
}

func TestUnary(t *testing.T) {
	tests := []struct {
		op   UnaryOp
		in   Value
		want Value
	}{
		{Positive, Int16(-4), Int16(-4)},
		{Negation, Int32(5), Int32(-5)},
		{Negation, Decimal2(1.5), Decimal2(-1.5)},
		{Increment, Uint8(255), Uint8(0)},
		{Decrement, Int8(-128), Int8(127)},
		{LogicalNot, Int64(0), Int64(1)},
		{LogicalNot, Bool(true), Bool(false)},
		{BitwiseNot, Uint8(0x0F), Uint8(0xF0)},
		{BitwiseNot, Int32(0), Int32(-1)},
	}
	for _, tt := range tests {
		got, err := Unary(tt.op, tt.in)
		if err != nil {
			t.Fatalf("Unary(%s, %v): %v", tt.op, tt.in, err)
		}
		if !Equal(got, tt.want) {
			t.Errorf("Unary(%s, %v) = %v, want %v", tt.op, tt.in, got, tt.want)
		}
	}
}

func TestUnaryOnContainersFails(t *testing.T) {
	for _, v := range []Value{String("s"), Array(1), Map(nil)} {
		for op := Positive; op <= BitwiseNot; op++ {
			if _, err := Unary(op, v); !errors.Is(err, ErrUnsupportedOperator) {
				t.Errorf("Unary(%s, %v) err = %v", op, v, err)
			}
		}
	}
}
