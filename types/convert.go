package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Convert returns v as kind k.
//
// Numeric kinds convert among themselves with Go conversion semantics.
// Strings parse into numeric kinds. Every kind converts to string through
// Repr. Arrays and maps only convert to their own kind.
func Convert(v Value, k Kind) (Value, error) {
	if !k.Valid() {
		return Value{}, fmt.Errorf("%w: unknown kind %d", ErrConversion, uint8(k))
	}

	switch k {
	case KindString:
		return String(Repr(v)), nil
	case KindArray:
		if v.kind == KindArray {
			return Array(v.ary...), nil
		}
		return Value{}, conversionError(v, k)
	case KindMap:
		if v.kind == KindMap {
			return Map(v.m), nil
		}
		return Value{}, conversionError(v, k)
	}

	if v.kind.IsNumeric() {
		return cast(v, k), nil
	}
	if v.kind == KindString {
		return parse(v.str, k)
	}
	return Value{}, conversionError(v, k)
}

func conversionError(v Value, k Kind) error {
	return fmt.Errorf("%w: %s to %s", ErrConversion, v.kind, k)
}

func parse(s string, k Kind) (Value, error) {
	s = strings.TrimSpace(s)
	switch k.class() {
	case classSigned:
		x, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q to %s: %v", ErrConversion, s, k, err)
		}
		return fromInt64(k, x), nil
	case classUnsigned:
		x, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q to %s: %v", ErrConversion, s, k, err)
		}
		return fromUint64(k, x), nil
	case classBool:
		x, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q to %s: %v", ErrConversion, s, k, err)
		}
		return Bool(x), nil
	case classFloat:
		bits := 64
		if k == KindDecimal {
			bits = 32
		}
		x, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q to %s: %v", ErrConversion, s, k, err)
		}
		return fromFloat64(k, x), nil
	}
	return Value{}, fmt.Errorf("%w: %q to %s", ErrConversion, s, k)
}

// Element converts a numeric value to an array/map element.
func Element(v Value) (uint64, error) {
	if !v.kind.IsNumeric() {
		return 0, fmt.Errorf("%w: %s is not an element", ErrConversion, v.kind)
	}
	return cast(v, KindUint64).u64(), nil
}

// DecimalFromParts builds a float from an integer part and the digits of a
// fractional part: (3, 14) is 3.14 and (0, 5) is 0.5.
func DecimalFromParts(whole, frac uint64) float64 {
	if frac == 0 {
		return float64(whole)
	}
	f, err := strconv.ParseFloat(strconv.FormatUint(whole, 10)+"."+strconv.FormatUint(frac, 10), 64)
	if err != nil {
		return float64(whole)
	}
	return f
}
