package vm

import "fmt"

// InstrCode identifies an instruction.
type InstrCode uint32

// Instr is a single instruction: a code and two operands whose meaning
// depends on the code.
type Instr struct {
	Code  InstrCode
	Oprd1 uint64
	Oprd2 uint64
}

func (in Instr) String() string {
	info, ok := instrInfoTable[in.Code]
	if !ok {
		return fmt.Sprintf("<0x%02X>", uint32(in.Code))
	}
	switch info.Operands {
	case 0:
		return info.Name
	case 1:
		return fmt.Sprintf("%s %d", info.Name, in.Oprd1)
	}
	return fmt.Sprintf("%s %d %d", info.Name, in.Oprd1, in.Oprd2)
}

const (
	// ========================================================================
	// Object instructions (0x00-0x1F)
	// ========================================================================

	NEW     InstrCode = 0x00 // Push a new object: NEW <flags>
	LDOBJ   InstrCode = 0x01 // Push visible variable: LDOBJ <key>
	STOBJ   InstrCode = 0x02 // Pop into visible variable: STOBJ <key>
	GETATTR InstrCode = 0x03 // Replace top with its attribute: GETATTR <key>
	SETATTR InstrCode = 0x04 // Pop and set as attribute of new top: SETATTR <key>
	DELATTR InstrCode = 0x05 // Delete attribute of top: DELATTR <key>
	POP     InstrCode = 0x06 // Pop object stack
	LDOBJ2  InstrCode = 0x07 // Push invisible variable: LDOBJ2 <key>
	STOBJ2  InstrCode = 0x08 // Pop into invisible variable: STOBJ2 <key>
	DELOBJ  InstrCode = 0x09 // Remove visible variable: DELOBJ <key>
	DELOBJ2 InstrCode = 0x0A // Remove invisible variable: DELOBJ2 <key>
	GETHNDL InstrCode = 0x0B // Copy top object's native value to eval stack
	SETHNDL InstrCode = 0x0C // Pop eval stack into top object's native value
	CLRHNDL InstrCode = 0x0D // Drop top object's native value
	OBJEQ   InstrCode = 0x0E // Pop two objects, push identity equality
	OBJNEQ  InstrCode = 0x0F // Pop two objects, push identity inequality
	SETFLGC InstrCode = 0x10 // Set top object collectible: SETFLGC <0|1>
	SWAP    InstrCode = 0x11 // Swap top two objects

	// ========================================================================
	// Control instructions (0x20-0x2F)
	// ========================================================================

	RTRN   InstrCode = 0x20 // Return from frame
	JMP    InstrCode = 0x21 // Jump within block: JMP <offset>
	JMPIF  InstrCode = 0x22 // Pop eval stack, jump when truthy: JMPIF <offset>
	EXC    InstrCode = 0x23 // Raise popped object, unwind one frame
	EXC2   InstrCode = 0x24 // Raise popped object without unwinding
	JMPEXC InstrCode = 0x25 // Jump when an exception is pending: JMPEXC <offset>
	CLREXC InstrCode = 0x26 // Push pending exception and clear it
	EXIT   InstrCode = 0x27 // Halt: EXIT <code>

	// ========================================================================
	// Function instructions (0x30-0x3F)
	// ========================================================================

	FRAME     InstrCode = 0x30 // Call closure: FRAME <closure>
	PUTARG    InstrCode = 0x31 // Pop into pending args
	PUTKWARG  InstrCode = 0x32 // Pop into pending kwargs: PUTKWARG <key>
	GETARG    InstrCode = 0x33 // Push next positional arg
	GETKWARG  InstrCode = 0x34 // Push kwarg: GETKWARG <key>
	GETARGS   InstrCode = 0x35 // Push object holding remaining args
	GETKWARGS InstrCode = 0x36 // Push object holding remaining kwargs
	HASARGS   InstrCode = 0x37 // Push whether positional args remain

	// ========================================================================
	// Runtime instructions (0x40-0x4F)
	// ========================================================================

	GC    InstrCode = 0x40 // Request a collection
	DEBUG InstrCode = 0x41 // Log process state
	PRINT InstrCode = 0x42 // Pop and print repr

	// ========================================================================
	// Arithmetic and logic (0x50-0x6F)
	// ========================================================================

	POS  InstrCode = 0x50
	NEG  InstrCode = 0x51
	INC  InstrCode = 0x52
	DEC  InstrCode = 0x53
	ADD  InstrCode = 0x54
	SUB  InstrCode = 0x55
	MUL  InstrCode = 0x56
	DIV  InstrCode = 0x57
	MOD  InstrCode = 0x58
	POW  InstrCode = 0x59
	BNOT InstrCode = 0x5A
	BAND InstrCode = 0x5B
	BOR  InstrCode = 0x5C
	BXOR InstrCode = 0x5D
	BLS  InstrCode = 0x5E
	BRS  InstrCode = 0x5F
	EQ   InstrCode = 0x60
	NEQ  InstrCode = 0x61
	GT   InstrCode = 0x62
	LT   InstrCode = 0x63
	GTE  InstrCode = 0x64
	LTE  InstrCode = 0x65
	LNOT InstrCode = 0x66
	LAND InstrCode = 0x67
	LOR  InstrCode = 0x68

	// ========================================================================
	// Native type creation (0x70-0x7F)
	// ========================================================================

	INT8   InstrCode = 0x70 // Push int8: INT8 <value>
	UINT8  InstrCode = 0x71
	INT16  InstrCode = 0x72
	UINT16 InstrCode = 0x73
	INT32  InstrCode = 0x74
	UINT32 InstrCode = 0x75
	INT64  InstrCode = 0x76
	UINT64 InstrCode = 0x77
	BOOL   InstrCode = 0x78 // Push bool: BOOL <0|1>
	DEC1   InstrCode = 0x79 // Push decimal: DEC1 <whole> <fraction digits>
	DEC2   InstrCode = 0x7A // Push decimal2: DEC2 <whole> <fraction digits>
	STR    InstrCode = 0x7B // Push encoded string: STR <encoding key>
	ARY    InstrCode = 0x7C // Push empty array
	MAP    InstrCode = 0x7D // Push empty map

	// ========================================================================
	// Native type conversion (0x80-0x8F)
	// ========================================================================

	TOINT8   InstrCode = 0x80
	TOUINT8  InstrCode = 0x81
	TOINT16  InstrCode = 0x82
	TOUINT16 InstrCode = 0x83
	TOINT32  InstrCode = 0x84
	TOUINT32 InstrCode = 0x85
	TOINT64  InstrCode = 0x86
	TOUINT64 InstrCode = 0x87
	TOBOOL   InstrCode = 0x88
	TODEC1   InstrCode = 0x89
	TODEC2   InstrCode = 0x8A
	TOSTR    InstrCode = 0x8B
	TOARY    InstrCode = 0x8C
	TOMAP    InstrCode = 0x8D

	// ========================================================================
	// Native type manipulation (0x90-0x9F)
	// ========================================================================

	TRUTHY  InstrCode = 0x90
	REPR    InstrCode = 0x91
	HASH    InstrCode = 0x92
	SLICE   InstrCode = 0x93 // SLICE <start> <stop>
	STRIDE  InstrCode = 0x94 // STRIDE <step>
	REVERSE InstrCode = 0x95

	// ========================================================================
	// String (0xA0-0xBF)
	// ========================================================================

	STRLEN   InstrCode = 0xA0
	STRAT    InstrCode = 0xA1 // STRAT <index>
	STRCLR   InstrCode = 0xA2
	STRAPD   InstrCode = 0xA3
	STRPSH   InstrCode = 0xA4 // STRPSH <byte>
	STRIST   InstrCode = 0xA5 // STRIST <pos>
	STRERS   InstrCode = 0xA6 // STRERS <pos>
	STRERS2  InstrCode = 0xA7 // STRERS2 <pos> <len>
	STRRPLC  InstrCode = 0xA8 // STRRPLC <pos> <len>
	STRSWP   InstrCode = 0xA9
	STRSUB   InstrCode = 0xAA // STRSUB <pos>
	STRSUB2  InstrCode = 0xAB // STRSUB2 <pos> <len>
	STRFND   InstrCode = 0xAC
	STRFND2  InstrCode = 0xAD // STRFND2 <from>
	STRRFND  InstrCode = 0xAE
	STRRFND2 InstrCode = 0xAF // STRRFND2 <upto>
	STRCMP   InstrCode = 0xB0

	// ========================================================================
	// Array (0xC0-0xCF)
	// ========================================================================

	ARYLEN  InstrCode = 0xC0
	ARYEMP  InstrCode = 0xC1
	ARYAT   InstrCode = 0xC2 // ARYAT <index>
	ARYFRT  InstrCode = 0xC3
	ARYBAK  InstrCode = 0xC4
	ARYPUT  InstrCode = 0xC5 // ARYPUT <index>
	ARYAPND InstrCode = 0xC6
	ARYERS  InstrCode = 0xC7 // ARYERS <index>
	ARYPOP  InstrCode = 0xC8
	ARYSWP  InstrCode = 0xC9
	ARYCLR  InstrCode = 0xCA

	// ========================================================================
	// Map (0xD0-0xDF)
	// ========================================================================

	MAPLEN  InstrCode = 0xD0
	MAPEMP  InstrCode = 0xD1
	MAPFIND InstrCode = 0xD2 // MAPFIND <key>
	MAPAT   InstrCode = 0xD3 // MAPAT <key>
	MAPPUT  InstrCode = 0xD4 // MAPPUT <key>
	MAPERS  InstrCode = 0xD5 // MAPERS <key>
	MAPCLR  InstrCode = 0xD6
	MAPSWP  InstrCode = 0xD7
	MAPKEYS InstrCode = 0xD8
	MAPVALS InstrCode = 0xD9
)

// InstrInfo describes an instruction.
type InstrInfo struct {
	Name      string
	Operands  int  // number of meaningful operands
	Allocates bool // may grow the heap or native pool
}

var instrInfoTable = map[InstrCode]InstrInfo{
	// Object
	NEW:     {"NEW", 1, true},
	LDOBJ:   {"LDOBJ", 1, false},
	STOBJ:   {"STOBJ", 1, false},
	GETATTR: {"GETATTR", 1, false},
	SETATTR: {"SETATTR", 1, false},
	DELATTR: {"DELATTR", 1, false},
	POP:     {"POP", 0, false},
	LDOBJ2:  {"LDOBJ2", 1, false},
	STOBJ2:  {"STOBJ2", 1, false},
	DELOBJ:  {"DELOBJ", 1, false},
	DELOBJ2: {"DELOBJ2", 1, false},
	GETHNDL: {"GETHNDL", 0, false},
	SETHNDL: {"SETHNDL", 0, true},
	CLRHNDL: {"CLRHNDL", 0, false},
	OBJEQ:   {"OBJEQ", 0, false},
	OBJNEQ:  {"OBJNEQ", 0, false},
	SETFLGC: {"SETFLGC", 1, false},
	SWAP:    {"SWAP", 0, false},

	// Control
	RTRN:   {"RTRN", 0, false},
	JMP:    {"JMP", 1, false},
	JMPIF:  {"JMPIF", 1, false},
	EXC:    {"EXC", 0, false},
	EXC2:   {"EXC2", 0, false},
	JMPEXC: {"JMPEXC", 1, false},
	CLREXC: {"CLREXC", 0, false},
	EXIT:   {"EXIT", 1, false},

	// Function
	FRAME:     {"FRAME", 1, false},
	PUTARG:    {"PUTARG", 0, false},
	PUTKWARG:  {"PUTKWARG", 1, false},
	GETARG:    {"GETARG", 0, false},
	GETKWARG:  {"GETKWARG", 1, false},
	GETARGS:   {"GETARGS", 0, true},
	GETKWARGS: {"GETKWARGS", 0, true},
	HASARGS:   {"HASARGS", 0, false},

	// Runtime
	GC:    {"GC", 0, false},
	DEBUG: {"DEBUG", 0, false},
	PRINT: {"PRINT", 0, false},

	// Arithmetic and logic
	POS: {"POS", 0, false}, NEG: {"NEG", 0, false},
	INC: {"INC", 0, false}, DEC: {"DEC", 0, false},
	ADD: {"ADD", 0, false}, SUB: {"SUB", 0, false},
	MUL: {"MUL", 0, false}, DIV: {"DIV", 0, false},
	MOD: {"MOD", 0, false}, POW: {"POW", 0, false},
	BNOT: {"BNOT", 0, false}, BAND: {"BAND", 0, false},
	BOR: {"BOR", 0, false}, BXOR: {"BXOR", 0, false},
	BLS: {"BLS", 0, false}, BRS: {"BRS", 0, false},
	EQ: {"EQ", 0, false}, NEQ: {"NEQ", 0, false},
	GT: {"GT", 0, false}, LT: {"LT", 0, false},
	GTE: {"GTE", 0, false}, LTE: {"LTE", 0, false},
	LNOT: {"LNOT", 0, false}, LAND: {"LAND", 0, false},
	LOR: {"LOR", 0, false},

	// Native type creation
	INT8: {"INT8", 1, false}, UINT8: {"UINT8", 1, false},
	INT16: {"INT16", 1, false}, UINT16: {"UINT16", 1, false},
	INT32: {"INT32", 1, false}, UINT32: {"UINT32", 1, false},
	INT64: {"INT64", 1, false}, UINT64: {"UINT64", 1, false},
	BOOL: {"BOOL", 1, false},
	DEC1: {"DEC1", 2, false}, DEC2: {"DEC2", 2, false},
	STR: {"STR", 1, false},
	ARY: {"ARY", 0, false}, MAP: {"MAP", 0, false},

	// Native type conversion
	TOINT8: {"TOINT8", 0, false}, TOUINT8: {"TOUINT8", 0, false},
	TOINT16: {"TOINT16", 0, false}, TOUINT16: {"TOUINT16", 0, false},
	TOINT32: {"TOINT32", 0, false}, TOUINT32: {"TOUINT32", 0, false},
	TOINT64: {"TOINT64", 0, false}, TOUINT64: {"TOUINT64", 0, false},
	TOBOOL: {"TOBOOL", 0, false},
	TODEC1: {"TODEC1", 0, false}, TODEC2: {"TODEC2", 0, false},
	TOSTR: {"TOSTR", 0, false}, TOARY: {"TOARY", 0, false},
	TOMAP: {"TOMAP", 0, false},

	// Native type manipulation
	TRUTHY:  {"TRUTHY", 0, false},
	REPR:    {"REPR", 0, false},
	HASH:    {"HASH", 0, false},
	SLICE:   {"SLICE", 2, false},
	STRIDE:  {"STRIDE", 1, false},
	REVERSE: {"REVERSE", 0, false},

	// String
	STRLEN: {"STRLEN", 0, false}, STRAT: {"STRAT", 1, false},
	STRCLR: {"STRCLR", 0, false}, STRAPD: {"STRAPD", 0, false},
	STRPSH: {"STRPSH", 1, false}, STRIST: {"STRIST", 1, false},
	STRERS: {"STRERS", 1, false}, STRERS2: {"STRERS2", 2, false},
	STRRPLC: {"STRRPLC", 2, false}, STRSWP: {"STRSWP", 0, false},
	STRSUB: {"STRSUB", 1, false}, STRSUB2: {"STRSUB2", 2, false},
	STRFND: {"STRFND", 0, false}, STRFND2: {"STRFND2", 1, false},
	STRRFND: {"STRRFND", 0, false}, STRRFND2: {"STRRFND2", 1, false},
	STRCMP: {"STRCMP", 0, false},

	// Array
	ARYLEN: {"ARYLEN", 0, false}, ARYEMP: {"ARYEMP", 0, false},
	ARYAT: {"ARYAT", 1, false}, ARYFRT: {"ARYFRT", 0, false},
	ARYBAK: {"ARYBAK", 0, false}, ARYPUT: {"ARYPUT", 1, false},
	ARYAPND: {"ARYAPND", 0, false}, ARYERS: {"ARYERS", 1, false},
	ARYPOP: {"ARYPOP", 0, false}, ARYSWP: {"ARYSWP", 0, false},
	ARYCLR: {"ARYCLR", 0, false},

	// Map
	MAPLEN: {"MAPLEN", 0, false}, MAPEMP: {"MAPEMP", 0, false},
	MAPFIND: {"MAPFIND", 1, false}, MAPAT: {"MAPAT", 1, false},
	MAPPUT: {"MAPPUT", 1, false}, MAPERS: {"MAPERS", 1, false},
	MAPCLR: {"MAPCLR", 0, false}, MAPSWP: {"MAPSWP", 0, false},
	MAPKEYS: {"MAPKEYS", 0, false}, MAPVALS: {"MAPVALS", 0, false},
}

// Info returns metadata for the instruction code.
func (c InstrCode) Info() (InstrInfo, bool) {
	info, ok := instrInfoTable[c]
	return info, ok
}

func (c InstrCode) String() string {
	if info, ok := instrInfoTable[c]; ok {
		return info.Name
	}
	return fmt.Sprintf("InstrCode(0x%02X)", uint32(c))
}

// LookupInstr returns the code for an instruction name.
func LookupInstr(name string) (InstrCode, bool) {
	for c, info := range instrInfoTable {
		if info.Name == name {
			return c, true
		}
	}
	return 0, false
}
