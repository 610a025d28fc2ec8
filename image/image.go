// Package image stores coreVM programs as CBOR images: the main block,
// closure blocks, signal blocks and the string encoding map of a process.
package image

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/chazu/corevm/vm"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

// Magic identifies a coreVM image.
const Magic = "CVMI"

// Version is the image format version written by Marshal.
const Version uint16 = 1

var (
	ErrBadMagic           = errors.New("image: not a coreVM image")
	ErrUnsupportedVersion = errors.New("image: unsupported version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Instr is the wire form of vm.Instr, encoded as a three-element array.
type Instr struct {
	_     struct{} `cbor:",toarray"`
	Code  uint32
	Oprd1 uint64
	Oprd2 uint64
}

// Block is a closure block.
type Block struct {
	ID       uint64  `cbor:"1,keyasint"`
	ParentID uint64  `cbor:"2,keyasint"`
	Instrs   []Instr `cbor:"3,keyasint"`
}

// SignalBlock is the instruction block run for a signal.
type SignalBlock struct {
	Signal uint32  `cbor:"1,keyasint"`
	Instrs []Instr `cbor:"2,keyasint"`
}

// Program is a complete image.
type Program struct {
	Magic     string            `cbor:"1,keyasint"`
	Version   uint16            `cbor:"2,keyasint"`
	Main      []Instr           `cbor:"3,keyasint"`
	Closures  []Block           `cbor:"4,keyasint,omitempty"`
	Encodings map[uint64]string `cbor:"5,keyasint,omitempty"`
	Signals   []SignalBlock     `cbor:"6,keyasint,omitempty"`
}

// New returns a program whose main block is main.
func New(main ...vm.Instr) *Program {
	return &Program{
		Magic:   Magic,
		Version: Version,
		Main:    toWire(main),
	}
}

// AddClosure appends a closure block.
func (p *Program) AddClosure(id, parent uint64, instrs ...vm.Instr) *Program {
	p.Closures = append(p.Closures, Block{ID: id, ParentID: parent, Instrs: toWire(instrs)})
	return p
}

// AddSignal appends a signal block.
func (p *Program) AddSignal(sig vm.Signal, instrs ...vm.Instr) *Program {
	p.Signals = append(p.Signals, SignalBlock{Signal: uint32(sig), Instrs: toWire(instrs)})
	return p
}

// SetEncoding registers an encoded string.
func (p *Program) SetEncoding(key uint64, s string) *Program {
	if p.Encodings == nil {
		p.Encodings = make(map[uint64]string)
	}
	p.Encodings[key] = s
	return p
}

// Len returns the total number of instructions in the image.
func (p *Program) Len() int {
	n := len(p.Main)
	for _, b := range p.Closures {
		n += len(b.Instrs)
	}
	for _, s := range p.Signals {
		n += len(s.Instrs)
	}
	return n
}

// Load installs the program into proc. Closure blocks are appended in the
// order they appear in the image.
func (p *Program) Load(proc *vm.Process) error {
	proc.AppendInstrs(fromWire(p.Main)...)
	for _, b := range p.Closures {
		c := vm.Closure{ID: b.ID, ParentID: b.ParentID}
		if err := proc.AppendInstrBlock(c, fromWire(b.Instrs)); err != nil {
			return fmt.Errorf("image: closure %d: %w", b.ID, err)
		}
	}
	for _, s := range p.Signals {
		if err := proc.SetSigInstrBlock(vm.Signal(s.Signal), fromWire(s.Instrs)); err != nil {
			return fmt.Errorf("image: %w", err)
		}
	}
	proc.SetEncodingMap(p.Encodings)
	return nil
}

// MainInstrs returns the main block as VM instructions.
func (p *Program) MainInstrs() []vm.Instr { return fromWire(p.Main) }

// ClosureInstrs returns a closure block as VM instructions.
func (b Block) ClosureInstrs() []vm.Instr { return fromWire(b.Instrs) }

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Marshal serializes p to canonical CBOR.
func Marshal(p *Program) ([]byte, error) {
	out := *p
	out.Magic = Magic
	out.Version = Version
	data, err := cborEncMode.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and checks an image.
func Unmarshal(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if p.Magic != Magic {
		return nil, ErrBadMagic
	}
	if p.Version == 0 || p.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	return &p, nil
}

// Digest returns the xxh3 hash of the canonical encoding of p. Equal
// programs have equal digests.
func Digest(p *Program) (uint64, error) {
	data, err := Marshal(p)
	if err != nil {
		return 0, err
	}
	return xxh3.Hash(data), nil
}

// ReadFile loads an image from path.
func ReadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return Unmarshal(data)
}

// WriteFile stores p at path.
func WriteFile(path string, p *Program) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	return nil
}

func toWire(instrs []vm.Instr) []Instr {
	out := make([]Instr, len(instrs))
	for i, in := range instrs {
		out[i] = Instr{Code: uint32(in.Code), Oprd1: in.Oprd1, Oprd2: in.Oprd2}
	}
	return out
}

func fromWire(instrs []Instr) []vm.Instr {
	out := make([]vm.Instr, len(instrs))
	for i, in := range instrs {
		out[i] = vm.Instr{Code: vm.InstrCode(in.Code), Oprd1: in.Oprd1, Oprd2: in.Oprd2}
	}
	return slices.Clip(out)
}
