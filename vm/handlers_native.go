package vm

import (
	"github.com/chazu/corevm/types"
)

var unaryOps = map[InstrCode]types.UnaryOp{
	POS:  types.Positive,
	NEG:  types.Negation,
	INC:  types.Increment,
	DEC:  types.Decrement,
	BNOT: types.BitwiseNot,
	LNOT: types.LogicalNot,
}

var binaryOps = map[InstrCode]types.BinaryOp{
	ADD:  types.Addition,
	SUB:  types.Subtraction,
	MUL:  types.Multiplication,
	DIV:  types.Division,
	MOD:  types.Modulus,
	POW:  types.Power,
	BAND: types.BitwiseAnd,
	BOR:  types.BitwiseOr,
	BXOR: types.BitwiseXor,
	BLS:  types.LeftShift,
	BRS:  types.RightShift,
	EQ:   types.Eq,
	NEQ:  types.Neq,
	GT:   types.Gt,
	LT:   types.Lt,
	GTE:  types.Gte,
	LTE:  types.Lte,
	LAND: types.LogicalAnd,
	LOR:  types.LogicalOr,
}

var conversions = map[InstrCode]types.Kind{
	TOINT8:   types.KindInt8,
	TOUINT8:  types.KindUint8,
	TOINT16:  types.KindInt16,
	TOUINT16: types.KindUint16,
	TOINT32:  types.KindInt32,
	TOUINT32: types.KindUint32,
	TOINT64:  types.KindInt64,
	TOUINT64: types.KindUint64,
	TOBOOL:   types.KindBool,
	TODEC1:   types.KindDecimal,
	TODEC2:   types.KindDecimal2,
	TOSTR:    types.KindString,
	TOARY:    types.KindArray,
	TOMAP:    types.KindMap,
}

func init() {
	for code, op := range unaryOps {
		register(code, unary(func(v types.Value, _ Instr) (types.Value, error) {
			return types.Unary(op, v)
		}))
	}
	for code, op := range binaryOps {
		register(code, binary(func(a, b types.Value, _ Instr) (types.Value, error) {
			return types.Binary(op, a, b)
		}))
	}
	for code, k := range conversions {
		register(code, unary(func(v types.Value, _ Instr) (types.Value, error) {
			return types.Convert(v, k)
		}))
	}

	// Creation
	register(INT8, constant(func(in Instr) types.Value { return types.Int8(int8(in.Oprd1)) }))
	register(UINT8, constant(func(in Instr) types.Value { return types.Uint8(uint8(in.Oprd1)) }))
	register(INT16, constant(func(in Instr) types.Value { return types.Int16(int16(in.Oprd1)) }))
	register(UINT16, constant(func(in Instr) types.Value { return types.Uint16(uint16(in.Oprd1)) }))
	register(INT32, constant(func(in Instr) types.Value { return types.Int32(int32(in.Oprd1)) }))
	register(UINT32, constant(func(in Instr) types.Value { return types.Uint32(uint32(in.Oprd1)) }))
	register(INT64, constant(func(in Instr) types.Value { return types.Int64(int64(in.Oprd1)) }))
	register(UINT64, constant(func(in Instr) types.Value { return types.Uint64(in.Oprd1) }))
	register(BOOL, constant(func(in Instr) types.Value { return types.Bool(in.Oprd1 != 0) }))
	register(DEC1, constant(func(in Instr) types.Value {
		return types.Decimal(float32(types.DecimalFromParts(in.Oprd1, in.Oprd2)))
	}))
	register(DEC2, constant(func(in Instr) types.Value {
		return types.Decimal2(types.DecimalFromParts(in.Oprd1, in.Oprd2))
	}))
	register(ARY, constant(func(Instr) types.Value { return types.Array() }))
	register(MAP, constant(func(Instr) types.Value { return types.Map(nil) }))
	register(STR, pushing(func(p *Process, in Instr) (types.Value, error) {
		s, err := p.Encoding(in.Oprd1)
		if err != nil {
			return types.Value{}, err
		}
		return types.String(s), nil
	}))

	// Manipulation
	register(TRUTHY, unary(func(v types.Value, _ Instr) (types.Value, error) {
		return types.Bool(types.Truthy(v)), nil
	}))
	register(REPR, unary(func(v types.Value, _ Instr) (types.Value, error) {
		return types.String(types.Repr(v)), nil
	}))
	register(HASH, unary(func(v types.Value, _ Instr) (types.Value, error) {
		return types.Uint64(types.Hash(v)), nil
	}))
	register(SLICE, unary(func(v types.Value, in Instr) (types.Value, error) {
		return types.Slice(v, in.Oprd1, in.Oprd2)
	}))
	register(STRIDE, unary(func(v types.Value, in Instr) (types.Value, error) {
		return types.Stride(v, in.Oprd1)
	}))
	register(REVERSE, unary(func(v types.Value, _ Instr) (types.Value, error) {
		return types.Reverse(v)
	}))
}

func constant(fn func(in Instr) types.Value) Handler {
	return pushing(func(_ *Process, in Instr) (types.Value, error) {
		return fn(in), nil
	})
}
