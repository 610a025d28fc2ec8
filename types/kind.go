package types

import "fmt"

// Kind identifies which member of the native union a Value holds.
type Kind uint8

const (
	KindInt8 Kind = iota
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindBool
	KindDecimal  // float32
	KindDecimal2 // float64
	KindString
	KindArray
	KindMap

	kindCount
)

// class groups kinds by the Go representation arithmetic runs in.
type class uint8

const (
	classSigned class = iota
	classUnsigned
	classBool
	classFloat
	classString
	classArray
	classMap
)

type kindInfo struct {
	name  string
	size  int // sizeof the underlying representation; 0 for containers
	class class
}

var kindInfoTable = [kindCount]kindInfo{
	KindInt8:     {"int8", 1, classSigned},
	KindUint8:    {"uint8", 1, classUnsigned},
	KindInt16:    {"int16", 2, classSigned},
	KindUint16:   {"uint16", 2, classUnsigned},
	KindInt32:    {"int32", 4, classSigned},
	KindUint32:   {"uint32", 4, classUnsigned},
	KindInt64:    {"int64", 8, classSigned},
	KindUint64:   {"uint64", 8, classUnsigned},
	KindBool:     {"bool", 1, classBool},
	KindDecimal:  {"decimal", 4, classFloat},
	KindDecimal2: {"decimal2", 8, classFloat},
	KindString:   {"string", 0, classString},
	KindArray:    {"array", 0, classArray},
	KindMap:      {"map", 0, classMap},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindInfoTable[k].name
}

// Size returns sizeof the kind's representation. Strings, arrays and maps
// report 0 and never take part in promotion.
func (k Kind) Size() int {
	if !k.Valid() {
		return 0
	}
	return kindInfoTable[k].size
}

// IsNumeric reports whether k participates in size promotion. Bool counts
// as a one-byte numeric.
func (k Kind) IsNumeric() bool {
	return k.Valid() && k.Size() > 0
}

func (k Kind) class() class {
	return kindInfoTable[k].class
}

// Promote returns the kind a binary operation on a and b is carried out in:
// whichever operand kind has the larger size. Ties keep the left operand's
// kind, so Promote(int32, decimal) is int32 while Promote(decimal, int32) is
// decimal.
func Promote(a, b Kind) Kind {
	if b.Size() > a.Size() {
		return b
	}
	return a
}
