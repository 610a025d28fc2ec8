package types

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

var (
	ErrUnsupportedOperator = errors.New("unsupported operator for native type")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrConversion          = errors.New("invalid native type conversion")
	ErrOutOfRange          = errors.New("native type index out of range")
)

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryOp is a unary native operator.
type UnaryOp uint8

const (
	Positive UnaryOp = iota
	Negation
	Increment
	Decrement
	LogicalNot
	BitwiseNot
)

var unaryNames = [...]string{"positive", "negation", "increment", "decrement", "logical_not", "bitwise_not"}

func (op UnaryOp) String() string {
	if int(op) < len(unaryNames) {
		return unaryNames[op]
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(op))
}

// BinaryOp is a binary native operator.
type BinaryOp uint8

const (
	Addition BinaryOp = iota
	Subtraction
	Multiplication
	Division
	Modulus
	Power
	LogicalAnd
	LogicalOr
	BitwiseAnd
	BitwiseOr
	BitwiseXor
	LeftShift
	RightShift
	Eq
	Neq
	Lt
	Gt
	Lte
	Gte
)

var binaryNames = [...]string{
	"addition", "subtraction", "multiplication", "division", "modulus", "power",
	"logical_and", "logical_or", "bitwise_and", "bitwise_or", "bitwise_xor",
	"left_shift", "right_shift", "eq", "neq", "lt", "gt", "lte", "gte",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(op))
}

// IsComparison reports whether op is one of eq, neq, lt, gt, lte, gte.
func (op BinaryOp) IsComparison() bool {
	return op >= Eq && op <= Gte
}

func unsupportedUnary(op UnaryOp, v Value) error {
	return fmt.Errorf("%w: %s %s", ErrUnsupportedOperator, op, v.kind)
}

func unsupportedBinary(op BinaryOp, a, b Value) error {
	return fmt.Errorf("%w: %s %s %s", ErrUnsupportedOperator, a.kind, op, b.kind)
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Unary dispatch
// ---------------------------------------------------------------------------

// Unary applies op to v. The result has v's kind. Strings, arrays and maps
// have no unary specializations and always fail.
func Unary(op UnaryOp, v Value) (Value, error) {
	switch v.kind.class() {
	case classSigned:
		x := v.i64()
		switch op {
		case Positive:
			return fromInt64(v.kind, x), nil
		case Negation:
			return fromInt64(v.kind, -x), nil
		case Increment:
			return fromInt64(v.kind, x+1), nil
		case Decrement:
			return fromInt64(v.kind, x-1), nil
		case LogicalNot:
			return fromUint64(v.kind, b2u(x == 0)), nil
		case BitwiseNot:
			return fromInt64(v.kind, ^x), nil
		}

	case classUnsigned, classBool:
		x := v.u64()
		switch op {
		case Positive:
			return fromUint64(v.kind, x), nil
		case Negation:
			return fromUint64(v.kind, -x), nil
		case Increment:
			return fromUint64(v.kind, x+1), nil
		case Decrement:
			return fromUint64(v.kind, x-1), nil
		case LogicalNot:
			return fromUint64(v.kind, b2u(x == 0)), nil
		case BitwiseNot:
			return fromUint64(v.kind, ^x), nil
		}

	case classFloat:
		x := v.f64()
		switch op {
		case Positive:
			return fromFloat64(v.kind, x), nil
		case Negation:
			return fromFloat64(v.kind, -x), nil
		case Increment:
			return fromFloat64(v.kind, x+1), nil
		case Decrement:
			return fromFloat64(v.kind, x-1), nil
		case LogicalNot:
			return fromUint64(v.kind, b2u(x == 0)), nil
		}
	}
	return Value{}, unsupportedUnary(op, v)
}

// ---------------------------------------------------------------------------
// Binary dispatch
// ---------------------------------------------------------------------------

// Binary applies op to a and b.
//
// Numeric operands (including bool) are cast to Promote(a.Kind(), b.Kind())
// and the result is in that kind; comparisons and logical operators yield
// 1 or 0 in the promoted kind. Strings, arrays and maps only support their
// explicit specializations: concatenation/merge via addition, and
// comparisons that yield bool.
func Binary(op BinaryOp, a, b Value) (Value, error) {
	if a.kind.IsNumeric() && b.kind.IsNumeric() {
		return binaryNumeric(op, a, b)
	}
	if a.kind != b.kind {
		return Value{}, unsupportedBinary(op, a, b)
	}
	switch a.kind {
	case KindString:
		return binaryString(op, a, b)
	case KindArray:
		return binaryArray(op, a, b)
	case KindMap:
		return binaryMap(op, a, b)
	}
	return Value{}, unsupportedBinary(op, a, b)
}

func binaryNumeric(op BinaryOp, a, b Value) (Value, error) {
	k := Promote(a.kind, b.kind)
	a, b = cast(a, k), cast(b, k)

	switch k.class() {
	case classSigned:
		return binarySigned(op, k, a.i64(), b.i64())
	case classFloat:
		return binaryFloat(op, k, a, b)
	}
	return binaryUnsigned(op, k, a.u64(), b.u64())
}

func binarySigned(op BinaryOp, k Kind, x, y int64) (Value, error) {
	switch op {
	case Addition:
		return fromInt64(k, x+y), nil
	case Subtraction:
		return fromInt64(k, x-y), nil
	case Multiplication:
		return fromInt64(k, x*y), nil
	case Division:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return fromInt64(k, x/y), nil
	case Modulus:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return fromInt64(k, x%y), nil
	case Power:
		if y < 0 {
			return fromFloat64(k, math.Pow(float64(x), float64(y))), nil
		}
		return fromUint64(k, ipow(uint64(x), uint64(y))), nil
	case LogicalAnd:
		return fromUint64(k, b2u(x != 0 && y != 0)), nil
	case LogicalOr:
		return fromUint64(k, b2u(x != 0 || y != 0)), nil
	case BitwiseAnd:
		return fromInt64(k, x&y), nil
	case BitwiseOr:
		return fromInt64(k, x|y), nil
	case BitwiseXor:
		return fromInt64(k, x^y), nil
	case LeftShift:
		return fromInt64(k, x<<uint64(y)), nil
	case RightShift:
		return fromInt64(k, x>>uint64(y)), nil
	case Eq:
		return fromUint64(k, b2u(x == y)), nil
	case Neq:
		return fromUint64(k, b2u(x != y)), nil
	case Lt:
		return fromUint64(k, b2u(x < y)), nil
	case Gt:
		return fromUint64(k, b2u(x > y)), nil
	case Lte:
		return fromUint64(k, b2u(x <= y)), nil
	case Gte:
		return fromUint64(k, b2u(x >= y)), nil
	}
	return Value{}, fmt.Errorf("%w: %s %s", ErrUnsupportedOperator, op, k)
}

func binaryUnsigned(op BinaryOp, k Kind, x, y uint64) (Value, error) {
	switch op {
	case Addition:
		return fromUint64(k, x+y), nil
	case Subtraction:
		return fromUint64(k, x-y), nil
	case Multiplication:
		return fromUint64(k, x*y), nil
	case Division:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return fromUint64(k, x/y), nil
	case Modulus:
		if y == 0 {
			return Value{}, ErrDivisionByZero
		}
		return fromUint64(k, x%y), nil
	case Power:
		return fromUint64(k, ipow(x, y)), nil
	case LogicalAnd:
		return fromUint64(k, b2u(x != 0 && y != 0)), nil
	case LogicalOr:
		return fromUint64(k, b2u(x != 0 || y != 0)), nil
	case BitwiseAnd:
		return fromUint64(k, x&y), nil
	case BitwiseOr:
		return fromUint64(k, x|y), nil
	case BitwiseXor:
		return fromUint64(k, x^y), nil
	case LeftShift:
		return fromUint64(k, x<<y), nil
	case RightShift:
		return fromUint64(k, x>>y), nil
	case Eq:
		return fromUint64(k, b2u(x == y)), nil
	case Neq:
		return fromUint64(k, b2u(x != y)), nil
	case Lt:
		return fromUint64(k, b2u(x < y)), nil
	case Gt:
		return fromUint64(k, b2u(x > y)), nil
	case Lte:
		return fromUint64(k, b2u(x <= y)), nil
	case Gte:
		return fromUint64(k, b2u(x >= y)), nil
	}
	return Value{}, fmt.Errorf("%w: %s %s", ErrUnsupportedOperator, op, k)
}

func binaryFloat(op BinaryOp, k Kind, a, b Value) (Value, error) {
	x, y := a.f64(), b.f64()
	switch op {
	case Addition:
		return fromFloat64(k, x+y), nil
	case Subtraction:
		return fromFloat64(k, x-y), nil
	case Multiplication:
		return fromFloat64(k, x*y), nil
	case Division:
		return fromFloat64(k, x/y), nil
	case Modulus:
		return fromFloat64(k, math.Mod(x, y)), nil
	case Power:
		return fromFloat64(k, math.Pow(x, y)), nil
	case LogicalAnd:
		return fromUint64(k, b2u(x != 0 && y != 0)), nil
	case LogicalOr:
		return fromUint64(k, b2u(x != 0 || y != 0)), nil
	case Eq:
		return fromUint64(k, b2u(x == y)), nil
	case Neq:
		return fromUint64(k, b2u(x != y)), nil
	case Lt:
		return fromUint64(k, b2u(x < y)), nil
	case Gt:
		return fromUint64(k, b2u(x > y)), nil
	case Lte:
		return fromUint64(k, b2u(x <= y)), nil
	case Gte:
		return fromUint64(k, b2u(x >= y)), nil
	}
	return Value{}, unsupportedBinary(op, a, b)
}

func ipow(base, exp uint64) uint64 {
	result := uint64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func compareResult(op BinaryOp, c int) (Value, bool) {
	switch op {
	case Eq:
		return Bool(c == 0), true
	case Neq:
		return Bool(c != 0), true
	case Lt:
		return Bool(c < 0), true
	case Gt:
		return Bool(c > 0), true
	case Lte:
		return Bool(c <= 0), true
	case Gte:
		return Bool(c >= 0), true
	}
	return Value{}, false
}

func binaryString(op BinaryOp, a, b Value) (Value, error) {
	if op == Addition {
		return String(a.str + b.str), nil
	}
	if r, ok := compareResult(op, strings.Compare(a.str, b.str)); ok {
		return r, nil
	}
	return Value{}, unsupportedBinary(op, a, b)
}

func binaryArray(op BinaryOp, a, b Value) (Value, error) {
	if op == Addition {
		out := make([]uint64, 0, len(a.ary)+len(b.ary))
		out = append(out, a.ary...)
		out = append(out, b.ary...)
		return Value{kind: KindArray, ary: out}, nil
	}
	if r, ok := compareResult(op, slices.Compare(a.ary, b.ary)); ok {
		return r, nil
	}
	return Value{}, unsupportedBinary(op, a, b)
}

func binaryMap(op BinaryOp, a, b Value) (Value, error) {
	switch op {
	case Addition:
		out := a.Entries()
		maps.Copy(out, b.m)
		return Value{kind: KindMap, m: out}, nil
	case Eq:
		return Bool(maps.Equal(a.m, b.m)), nil
	case Neq:
		return Bool(!maps.Equal(a.m, b.m)), nil
	}
	return Value{}, unsupportedBinary(op, a, b)
}
