package image

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/corevm/vm"
)

// ErrSyntax is returned for malformed assembly.
var ErrSyntax = errors.New("image: assembly syntax error")

// Assembly is line oriented. A ';' starts a comment. Directives:
//
//	.string <key> "<text>"     add an encoding map entry
//	.main                      following instructions go to the main block
//	.closure <id> <parent>     start a closure block
//	.signal <sig>              start a signal block
//
// Any other line is an instruction: a mnemonic (or a numeric code) and up
// to two operands. Operands are decimal, 0x-prefixed hex, or negative
// decimals stored in two's complement.

const (
	sectMain = iota
	sectClosure
	sectSignal
)

// Assemble parses assembly text into a program.
func Assemble(r io.Reader) (*Program, error) {
	p := New()
	sect := sectMain

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := commentStart(line); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fail := func(format string, args ...any) error {
			return fmt.Errorf("%w: line %d: %s", ErrSyntax, lineNo, fmt.Sprintf(format, args...))
		}

		if strings.HasPrefix(line, ".") {
			name, rest, _ := strings.Cut(line, " ")
			rest = strings.TrimSpace(rest)
			switch name {
			case ".main":
				sect = sectMain
			case ".closure":
				ops, err := parseOperands(strings.Fields(rest))
				if err != nil || len(ops) != 2 {
					return nil, fail(".closure wants <id> <parent>")
				}
				p.AddClosure(ops[0], ops[1])
				sect = sectClosure
			case ".signal":
				ops, err := parseOperands(strings.Fields(rest))
				if err != nil || len(ops) != 1 || ops[0] > 0xFFFFFFFF {
					return nil, fail(".signal wants <sig>")
				}
				p.AddSignal(vm.Signal(ops[0]))
				sect = sectSignal
			case ".string":
				keyText, quoted, _ := strings.Cut(rest, " ")
				key, err := parseOperand(keyText)
				if err != nil {
					return nil, fail("bad string key %q", keyText)
				}
				s, err := strconv.Unquote(strings.TrimSpace(quoted))
				if err != nil {
					return nil, fail("bad string literal: %v", err)
				}
				p.SetEncoding(key, s)
			default:
				return nil, fail("unknown directive %s", name)
			}
			continue
		}

		in, err := parseInstr(line)
		if err != nil {
			return nil, fail("%v", err)
		}
		w := Instr{Code: uint32(in.Code), Oprd1: in.Oprd1, Oprd2: in.Oprd2}
		switch sect {
		case sectMain:
			p.Main = append(p.Main, w)
		case sectClosure:
			b := &p.Closures[len(p.Closures)-1]
			b.Instrs = append(b.Instrs, w)
		case sectSignal:
			s := &p.Signals[len(p.Signals)-1]
			s.Instrs = append(s.Instrs, w)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return p, nil
}

// commentStart returns the index of the first ';' outside a string
// literal, or -1.
func commentStart(line string) int {
	inStr, esc := false, false
	for i, r := range line {
		switch {
		case esc:
			esc = false
		case inStr && r == '\\':
			esc = true
		case r == '"':
			inStr = !inStr
		case r == ';' && !inStr:
			return i
		}
	}
	return -1
}

func parseInstr(line string) (vm.Instr, error) {
	fields := strings.Fields(line)
	var in vm.Instr

	if code, ok := vm.LookupInstr(strings.ToUpper(fields[0])); ok {
		in.Code = code
	} else if n, err := strconv.ParseUint(fields[0], 0, 32); err == nil {
		in.Code = vm.InstrCode(n)
	} else {
		return in, fmt.Errorf("unknown instruction %s", fields[0])
	}

	ops, err := parseOperands(fields[1:])
	if err != nil {
		return in, err
	}
	if len(ops) > 2 {
		return in, fmt.Errorf("%s takes at most two operands", fields[0])
	}
	if len(ops) > 0 {
		in.Oprd1 = ops[0]
	}
	if len(ops) > 1 {
		in.Oprd2 = ops[1]
	}
	return in, nil
}

func parseOperands(fields []string) ([]uint64, error) {
	ops := make([]uint64, 0, len(fields))
	for _, f := range fields {
		n, err := parseOperand(f)
		if err != nil {
			return nil, err
		}
		ops = append(ops, n)
	}
	return ops, nil
}

func parseOperand(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("bad operand %q", s)
		}
		return uint64(n), nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad operand %q", s)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble writes p as assembly that Assemble reads back to an equal
// program. Each instruction is annotated with the address it gets when the
// program is loaded into an empty process.
func Disassemble(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	pc := 0

	keys := make([]uint64, 0, len(p.Encodings))
	for k := range p.Encodings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(bw, ".string %d %s\n", k, strconv.Quote(p.Encodings[k]))
	}
	if len(keys) > 0 {
		bw.WriteString("\n")
	}

	bw.WriteString(".main\n")
	pc = writeInstrs(bw, p.Main, pc)
	for _, b := range p.Closures {
		fmt.Fprintf(bw, "\n.closure %d %d\n", b.ID, b.ParentID)
		pc = writeInstrs(bw, b.Instrs, pc)
	}
	for _, s := range p.Signals {
		fmt.Fprintf(bw, "\n.signal %d\n", s.Signal)
		pc = writeInstrs(bw, s.Instrs, pc)
	}
	return bw.Flush()
}

func writeInstrs(w *bufio.Writer, instrs []Instr, pc int) int {
	for _, in := range instrs {
		code := vm.InstrCode(in.Code)
		name := code.String()
		info, known := code.Info()
		if !known {
			name = fmt.Sprintf("0x%02X", in.Code)
		}

		text := name
		switch {
		case in.Oprd2 != 0 || info.Operands >= 2:
			text = fmt.Sprintf("%s %d %d", name, in.Oprd1, in.Oprd2)
		case in.Oprd1 != 0 || info.Operands == 1:
			text = fmt.Sprintf("%s %d", name, in.Oprd1)
		}
		fmt.Fprintf(w, "\t%-24s; %d\n", text, pc)
		pc++
	}
	return pc
}
