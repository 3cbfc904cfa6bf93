// Copyright (c) 2024 The Cwerg-Go Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package isax64 is the x86-64 opcode table and single-instruction
// assemble/disassemble engine. Unlike the two fixed-width RISC tables,
// an entry here is a variable-length byte template: optional legacy
// prefixes, an optional REX byte, one or two opcode bytes, then ModRM,
// SIB, displacement and immediate fields whose presence depends on the
// addressing mode. Every base instruction is expanded at init time into
// one concrete Opcode per (format, operand width, ModRM mode) so that
// matching during decode is a single linear probe within a fingerprint
// bucket.
package isax64

import "strconv"

// Format is the operand-encoding shape of an instruction, following the
// usual opcode-map vocabulary: which operand lives in ModRM.reg, which in
// ModRM.rm, and whether a trailing immediate or displacement exists.
type Format string

const (
	FormatMI   Format = "MI"  // r/m  <- imm       (ModRM.reg is an extension digit)
	FormatMR   Format = "MR"  // r/m  <- reg
	FormatRM   Format = "RM"  // reg  <- r/m
	FormatMRI  Format = "MRI" // reg  <- r/m, imm  (three-operand imul)
	FormatD    Format = "D"   // rel32 branch target
	FormatM    Format = "M"   // single r/m operand (push/pop/neg/call-indirect...)
	FormatI    Format = "I"   // immediate only
	FormatO    Format = "O"   // register in the low 3 bits of the opcode byte
	FormatOI   Format = "OI"  // opcode+reg, trailing immediate
	FormatNone Format = ""    // no operands
)

// Mode is the concrete ModRM/SIB shape a memory (or register) operand was
// expanded into. Each mode fixes different ModRM bits and consumes a
// different number of trailing bytes, which is why every mode is a
// separate table entry.
type Mode int

const (
	ModeNone       Mode = iota // no ModRM byte at all
	ModeReg                    // mod=3: operand is a register
	ModeBase                   // mod=0: [base], base not rsp/rbp
	ModeBaseDisp8              // mod=1: [base+disp8], base not rsp
	ModeBaseDisp32             // mod=2: [base+disp32], base not rsp
	ModeSIB                    // mod=0, rm=100: [base+index*scale], base not rbp
	ModeSIBDisp8               // mod=1, rm=100: [base+index*scale+disp8]
	ModeSIBDisp32              // mod=2, rm=100: [base+index*scale+disp32]
	ModeRIP                    // mod=0, rm=101: [rip+disp32]
)

// suffix is the name-mangling particle for each mode; concrete opcode
// names are base_width_format[_imm8][_mode] and must be globally unique.
func (m Mode) suffix() string {
	switch m {
	case ModeReg:
		return "_r"
	case ModeBase:
		return "_mB"
	case ModeBaseDisp8:
		return "_mB8"
	case ModeBaseDisp32:
		return "_mB32"
	case ModeSIB:
		return "_mbis"
	case ModeSIBDisp8:
		return "_mbis8"
	case ModeSIBDisp32:
		return "_mbis32"
	case ModeRIP:
		return "_mpc"
	default:
		return ""
	}
}

// OpKind tags one slot of an instruction's operand vector. Immediate
// kinds carry both the encoded width and the effective width after
// sign-extension, so Imm8_64 is one encoded byte that acts on 64 bits.
type OpKind int

const (
	OpReg   OpKind = iota // general-purpose register number 0-15
	OpBase                // memory operand base register
	OpIndex               // SIB index register (not rsp)
	OpScale               // SIB scale: 1, 2, 4 or 8
	OpDisp8
	OpDisp32
	OpImm8
	OpImm16
	OpImm32
	OpImm64
	OpImm8_16 // encoded as 1 byte, sign-extended to 16
	OpImm8_32 // encoded as 1 byte, sign-extended to 32
	OpImm8_64 // encoded as 1 byte, sign-extended to 64
	OpImm32_64
	OpRel32
)

// encodedBytes is the number of instruction-stream bytes the kind
// occupies (0 for the kinds packed into ModRM/SIB/opcode bits).
func (k OpKind) encodedBytes() int {
	switch k {
	case OpDisp8, OpImm8, OpImm8_16, OpImm8_32, OpImm8_64:
		return 1
	case OpImm16:
		return 2
	case OpDisp32, OpImm32, OpImm32_64, OpRel32:
		return 4
	case OpImm64:
		return 8
	default:
		return 0
	}
}

func (k OpKind) isImm() bool {
	switch k {
	case OpImm8, OpImm16, OpImm32, OpImm64, OpImm8_16, OpImm8_32, OpImm8_64, OpImm32_64, OpRel32:
		return true
	}
	return false
}

func (k OpKind) isDisp() bool { return k == OpDisp8 || k == OpDisp32 }

// Opcode is one fully-expanded x86-64 instruction variant. Template/
// TemplateMask describe the opcode byte stream after any prefixes and the
// REX byte: 0xff marks a fixed bit pattern, 0xf8 a "byte plus register in
// the low 3 bits" slot (O/OI formats). ModRM, SIB, displacement and
// immediate bytes are not part of the template; their shape follows from
// Format, Mode and Ops.
type Opcode struct {
	Mnemonic string
	Format   Format
	Mode     Mode

	RexW     bool // 64-bit operand size
	OpSize16 bool // 0x66 operand-size prefix

	Template     []byte
	TemplateMask []byte

	// ModRMReg is the /digit extension for MI/M formats, or -1 when
	// ModRM.reg carries a register operand (MR/RM/MRI).
	ModRMReg int

	// Ops is the operand vector shape, defs first.
	Ops []OpKind

	// Width is the effective operand width in bits (8/16/32/64); 0 for
	// widthless instructions (branches, ret).
	Width int

	NumDefsVal     int
	CallFlag       bool
	ReturnFlag     bool
	SideEffectFlag bool
}

func (o *Opcode) Name() string   { return o.Mnemonic }
func (o *Opcode) NumDefs() int   { return o.NumDefsVal }
func (o *Opcode) IsCall() bool   { return o.CallFlag }
func (o *Opcode) IsReturn() bool { return o.ReturnFlag }
func (o *Opcode) HasSideEffect() bool {
	return o.SideEffectFlag || o.CallFlag || o.ReturnFlag
}

// HasModRM reports whether this variant carries a ModRM byte.
func (o *Opcode) HasModRM() bool { return o.Mode != ModeNone }

func (o *Opcode) hasSIB() bool {
	switch o.Mode {
	case ModeSIB, ModeSIBDisp8, ModeSIBDisp32:
		return true
	}
	return false
}

// modRMConstraint returns the (mod, rm) pattern this variant's mode fixes
// in the ModRM byte; rmAny means the rm field carries an operand.
const rmAny = -1

func (o *Opcode) modRMConstraint() (mod int, rm int) {
	switch o.Mode {
	case ModeReg:
		return 3, rmAny
	case ModeBase:
		return 0, rmAny
	case ModeBaseDisp8:
		return 1, rmAny
	case ModeBaseDisp32:
		return 2, rmAny
	case ModeSIB:
		return 0, 4
	case ModeSIBDisp8:
		return 1, 4
	case ModeSIBDisp32:
		return 2, 4
	case ModeRIP:
		return 0, 5
	default:
		return -1, rmAny
	}
}

// acceptsModRM reports whether a decoded ModRM byte is consistent with
// this variant's mode and /digit.
func (o *Opcode) acceptsModRM(modrm byte) bool {
	mod := int(modrm >> 6)
	reg := int(modrm >> 3 & 7)
	rm := int(modrm & 7)

	wantMod, wantRM := o.modRMConstraint()
	if mod != wantMod {
		return false
	}
	if wantRM != rmAny {
		if rm != wantRM {
			return false
		}
	} else if mod != 3 {
		// Base-register modes must not collide with the SIB escape (rm=4)
		// or, for mod=0, the rip-relative escape (rm=5). In register form
		// (mod=3) every rm value is an ordinary register.
		if rm == 4 {
			return false
		}
		if mod == 0 && rm == 5 {
			return false
		}
	}
	if o.ModRMReg >= 0 && reg != o.ModRMReg {
		return false
	}
	return true
}

func widthSuffix(w int) string {
	if w == 0 {
		return ""
	}
	return "_" + strconv.Itoa(w)
}
