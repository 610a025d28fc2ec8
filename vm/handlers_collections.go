package vm

import (
	"github.com/chazu/corevm/types"
)

// length pushes the length of a value of kind k.
func length(k types.Kind) Handler {
	return unary(func(v types.Value, _ Instr) (types.Value, error) {
		if err := wantKind(v, k); err != nil {
			return types.Value{}, err
		}
		return types.Uint64(uint64(v.Len())), nil
	})
}

func empty(k types.Kind) Handler {
	return unary(func(v types.Value, _ Instr) (types.Value, error) {
		if err := wantKind(v, k); err != nil {
			return types.Value{}, err
		}
		return types.Bool(v.Len() == 0), nil
	})
}

func cleared(k types.Kind) Handler {
	return unary(func(v types.Value, _ Instr) (types.Value, error) {
		if err := wantKind(v, k); err != nil {
			return types.Value{}, err
		}
		return types.Zero(k), nil
	})
}

func init() {
	// String
	register(STRLEN, length(types.KindString))
	register(STRCLR, cleared(types.KindString))
	register(STRSWP, swapping(types.KindString))
	register(STRAT, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrAt(s, in.Oprd1)
	}))
	register(STRAPD, binary(func(s, t types.Value, _ Instr) (types.Value, error) {
		return types.StrAppend(s, t)
	}))
	register(STRPSH, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrPush(s, byte(in.Oprd1))
	}))
	register(STRIST, binary(func(s, t types.Value, in Instr) (types.Value, error) {
		return types.StrInsert(s, in.Oprd1, t)
	}))
	register(STRERS, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrErase(s, in.Oprd1, types.NotFound)
	}))
	register(STRERS2, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrErase(s, in.Oprd1, in.Oprd2)
	}))
	register(STRRPLC, binary(func(s, t types.Value, in Instr) (types.Value, error) {
		return types.StrReplace(s, in.Oprd1, in.Oprd2, t)
	}))
	register(STRSUB, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrSub(s, in.Oprd1, types.NotFound)
	}))
	register(STRSUB2, unary(func(s types.Value, in Instr) (types.Value, error) {
		return types.StrSub(s, in.Oprd1, in.Oprd2)
	}))
	register(STRFND, binary(func(s, needle types.Value, _ Instr) (types.Value, error) {
		return types.StrFind(s, needle, 0)
	}))
	register(STRFND2, binary(func(s, needle types.Value, in Instr) (types.Value, error) {
		return types.StrFind(s, needle, in.Oprd1)
	}))
	register(STRRFND, binary(func(s, needle types.Value, _ Instr) (types.Value, error) {
		return types.StrRFind(s, needle, types.NotFound)
	}))
	register(STRRFND2, binary(func(s, needle types.Value, in Instr) (types.Value, error) {
		return types.StrRFind(s, needle, in.Oprd1)
	}))
	register(STRCMP, binary(func(a, b types.Value, _ Instr) (types.Value, error) {
		return types.StrCompare(a, b)
	}))

	// Array
	register(ARYLEN, length(types.KindArray))
	register(ARYEMP, empty(types.KindArray))
	register(ARYCLR, cleared(types.KindArray))
	register(ARYSWP, swapping(types.KindArray))
	register(ARYAT, unary(func(a types.Value, in Instr) (types.Value, error) {
		return types.ArrayAt(a, in.Oprd1)
	}))
	register(ARYFRT, unary(func(a types.Value, _ Instr) (types.Value, error) {
		return types.ArrayFront(a)
	}))
	register(ARYBAK, unary(func(a types.Value, _ Instr) (types.Value, error) {
		return types.ArrayBack(a)
	}))
	register(ARYPUT, binary(func(a, elem types.Value, in Instr) (types.Value, error) {
		return types.ArrayPut(a, in.Oprd1, elem)
	}))
	register(ARYAPND, binary(func(a, elem types.Value, _ Instr) (types.Value, error) {
		return types.ArrayAppend(a, elem)
	}))
	register(ARYERS, unary(func(a types.Value, in Instr) (types.Value, error) {
		return types.ArrayErase(a, in.Oprd1)
	}))
	register(ARYPOP, unary(func(a types.Value, _ Instr) (types.Value, error) {
		return types.ArrayPop(a)
	}))

	// Map
	register(MAPLEN, length(types.KindMap))
	register(MAPEMP, empty(types.KindMap))
	register(MAPCLR, cleared(types.KindMap))
	register(MAPSWP, swapping(types.KindMap))
	register(MAPFIND, unary(func(m types.Value, in Instr) (types.Value, error) {
		return types.MapHas(m, in.Oprd1)
	}))
	register(MAPAT, unary(func(m types.Value, in Instr) (types.Value, error) {
		return types.MapAt(m, in.Oprd1)
	}))
	register(MAPPUT, binary(func(m, elem types.Value, in Instr) (types.Value, error) {
		return types.MapPut(m, in.Oprd1, elem)
	}))
	register(MAPERS, unary(func(m types.Value, in Instr) (types.Value, error) {
		return types.MapErase(m, in.Oprd1)
	}))
	register(MAPKEYS, unary(func(m types.Value, _ Instr) (types.Value, error) {
		return types.MapKeys(m)
	}))
	register(MAPVALS, unary(func(m types.Value, _ Instr) (types.Value, error) {
		return types.MapValues(m)
	}))
}
