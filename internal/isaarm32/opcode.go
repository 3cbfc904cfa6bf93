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

// Package isaarm32 is the AArch32 (32-bit ARM, A1 encoding space)
// opcode table and assemble/disassemble engine, structurally identical
// to internal/isaarm64's mask/data/bit-field engine.
package isaarm32

import "fmt"

type OperandKind int

const (
	OKReg OperandKind = iota
	OKImmUnsigned
	OKCondCode
	OKShiftKind // 2-bit barrel-shifter selector: LSL/LSR/ASR/ROR
	OKRegList   // 16-bit register-range mask, used by push/pop
	OKPCRelOffsetX4
)

func (k OperandKind) String() string {
	switch k {
	case OKReg:
		return "reg"
	case OKImmUnsigned:
		return "imm"
	case OKCondCode:
		return "cond"
	case OKShiftKind:
		return "shift"
	case OKRegList:
		return "reglist"
	case OKPCRelOffsetX4:
		return "pcrel4"
	default:
		return "?"
	}
}

type Field struct {
	Kind  OperandKind
	Shift uint
	Width uint
}

func (f Field) extract(word uint32) int64 {
	return int64((word >> f.Shift) & (1<<f.Width - 1))
}

func (f Field) pack(value int64) (uint32, error) {
	max := uint32(1)<<f.Width - 1
	u := uint32(value) & max
	if int64(u) != value {
		return 0, fmt.Errorf("value %d does not fit in %d-bit field", value, f.Width)
	}
	return u << f.Shift, nil
}

// Opcode is one AArch32 A1-encoding-space instruction-table entry.
// AliasOf, when non-empty, names the symbolic spelling this entry's
// canonical encoding is rewritten from/to, as with push for stmdb sp.
type Opcode struct {
	Mnemonic   string
	AliasOf    string
	Mask, Data uint32
	Fields     []Field

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

func (o *Opcode) matches(word uint32) bool { return word&o.Mask == o.Data }
