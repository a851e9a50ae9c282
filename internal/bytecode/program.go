package bytecode

import (
	"encoding/binary"

	"seni/internal/value"
	"seni/internal/words"
)

// DebugInfo records the source location each instruction was emitted from,
// one entry per opcode byte (operand bytes share their opcode's entry).
type DebugInfo struct {
	Line int
	Col  int
}

// FnInfo is a top-level function's compiled metadata: its name, its formal
// parameters (iname + default-value address is baked into ArgAddress's
// code, not stored per-arg), and the two entry points the two-step
// CALL/CALL_0 convention jumps to.
type FnInfo struct {
	Active      bool
	Index       int
	Iname       words.Iname
	ArgInames   []words.Iname
	ArgAddress  int
	BodyAddress int
}

// HasArg reports whether iname names one of this function's formals, and if
// so its slot index — used by the compiler to decide STORE ARGUMENT vs
// STORE VOID for an actual-argument override whose label doesn't match.
func (f *FnInfo) HasArg(iname words.Iname) (int, bool) {
	for i, a := range f.ArgInames {
		if a == iname {
			return i, true
		}
	}
	return 0, false
}

// Program is the compiler's output: a flat bytecode stream, a constant
// pool, per-function metadata and a global-name table, mirroring the
// teacher's Chunk (Code/Constants/Debug) generalised with fn_info.
type Program struct {
	Code      []byte
	Debug     []DebugInfo
	Constants []value.Value
	Fns       []*FnInfo
	// GlobalNames maps a global's iname to its storage slot.
	GlobalNames map[words.Iname]int
	NumGlobals  int
}

func NewProgram() *Program {
	return &Program{GlobalNames: make(map[words.Iname]int)}
}

func (p *Program) here() int { return len(p.Code) }

// Here returns the current end of the code stream, i.e. the address the
// next WriteOp will be placed at.
func (p *Program) Here() int { return p.here() }

// WriteOp appends a single opcode byte.
func (p *Program) WriteOp(op OpCode, d DebugInfo) int {
	at := p.here()
	p.Code = append(p.Code, byte(op))
	p.Debug = append(p.Debug, d)
	return at
}

// WriteOperand appends a 4-byte little-endian operand word following an
// opcode (used for jump offsets, segment/slot pairs, constant indices).
func (p *Program) WriteOperand(v int32, d DebugInfo) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	p.Code = append(p.Code, buf[:]...)
	for range buf {
		p.Debug = append(p.Debug, d)
	}
}

// PatchOperand overwrites the 4-byte operand starting at byte offset at.
func (p *Program) PatchOperand(at int, v int32) {
	binary.LittleEndian.PutUint32(p.Code[at:at+4], uint32(v))
}

// ReadOperand reads the 4-byte operand starting at byte offset at.
func (p *Program) ReadOperand(at int) int32 {
	return int32(binary.LittleEndian.Uint32(p.Code[at : at+4]))
}

// AddConstant appends v to the constant pool (equal values are not
// deduplicated) and returns its index.
func (p *Program) AddConstant(v value.Value) int {
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// DebugAt returns the debug info for the instruction at byte offset ip.
func (p *Program) DebugAt(ip int) DebugInfo {
	if ip >= 0 && ip < len(p.Debug) {
		return p.Debug[ip]
	}
	return DebugInfo{}
}

// AllocFn reserves a new FnInfo slot (Pass 1 registration); ArgAddress and
// BodyAddress are filled in once Pass 2 emits the function's bytecode.
func (p *Program) AllocFn(iname words.Iname, argInames []words.Iname) *FnInfo {
	fi := &FnInfo{Active: true, Index: len(p.Fns), Iname: iname, ArgInames: argInames}
	p.Fns = append(p.Fns, fi)
	return fi
}

// FnByName finds a top-level function by its name iname.
func (p *Program) FnByName(iname words.Iname) (*FnInfo, bool) {
	for _, fi := range p.Fns {
		if fi.Active && fi.Iname == iname {
			return fi, true
		}
	}
	return nil, false
}

// AllocGlobal reserves a global slot for iname, idempotently.
func (p *Program) AllocGlobal(iname words.Iname) int {
	if slot, ok := p.GlobalNames[iname]; ok {
		return slot
	}
	slot := p.NumGlobals
	p.GlobalNames[iname] = slot
	p.NumGlobals++
	return slot
}
