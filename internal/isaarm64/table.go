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
package isaarm64

import "fmt"

// Table is the process-wide, read-only-after-init AArch64 opcode table:
// the arithmetic, logic, move, load/store and branch encodings the
// backend emits, all in the always-executes form.
var Table = []*Opcode{
	{
		// ADD (immediate), 64-bit, no shift: sf=1 op=0 S=0 100010 sh=00.
		// 0x91000421 is add x1, x1, #1.
		Mnemonic:   "add_x_imm",
		Mask:       0xFFC00000,
		Data:       0x91000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},         // Rd (def)
			{OKReg, 5, 5},         // Rn (use)
			{OKImmUnsigned, 10, 12}, // imm12 (use)
		},
	},
	{
		// SUB (immediate), 64-bit, no shift: sf=1 op=1 S=0 100010 sh=00.
		Mnemonic:   "sub_x_imm",
		Mask:       0xFFC00000,
		Data:       0xD1000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKImmUnsigned, 10, 12},
		},
	},
	{
		// ADRP Xd, <page>: immediate is always zero at assemble time and
		// patched in later via an ADR_PREL_PG_HI21 relocation.
		Mnemonic:   "adrp",
		Mask:       0x9F000000,
		Data:       0x90000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
		},
	},
	{
		// ADD (shifted register), 64-bit, LSL #0.
		Mnemonic:   "add_x_reg",
		Mask:       0xFFE0FC00,
		Data:       0x8B000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKReg, 16, 5},
		},
	},
	{
		// SUB (shifted register), 64-bit, LSL #0.
		Mnemonic:   "sub_x_reg",
		Mask:       0xFFE0FC00,
		Data:       0xCB000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKReg, 16, 5},
		},
	},
	{
		// AND (shifted register), 64-bit, LSL #0.
		Mnemonic:   "and_x_reg",
		Mask:       0xFFE0FC00,
		Data:       0x8A000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKReg, 16, 5},
		},
	},
	{
		// ORR (shifted register), 64-bit, LSL #0. orr xd, xzr, xm is the
		// canonical register-to-register move.
		Mnemonic:   "orr_x_reg",
		Mask:       0xFFE0FC00,
		Data:       0xAA000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKReg, 16, 5},
		},
	},
	{
		// EOR (shifted register), 64-bit, LSL #0.
		Mnemonic:   "eor_x_reg",
		Mask:       0xFFE0FC00,
		Data:       0xCA000000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKReg, 16, 5},
		},
	},
	{
		// MOVZ Xd, #imm16 (hw=0).
		Mnemonic:   "movz_x",
		Mask:       0xFFE00000,
		Data:       0xD2800000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKImmUnsigned, 5, 16},
		},
	},
	{
		// MOVK Xd, #imm16 (hw=0): keeps the other 48 bits, so the
		// destination is also a source.
		Mnemonic:   "movk_x",
		Mask:       0xFFE00000,
		Data:       0xF2800000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKImmUnsigned, 5, 16},
		},
	},
	{
		// LDR Xt, [Xn, #imm12*8] (unsigned offset).
		Mnemonic:   "ldr_x_imm",
		Mask:       0xFFC00000,
		Data:       0xF9400000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKImmUnsigned, 10, 12},
		},
	},
	{
		// STR Xt, [Xn, #imm12*8] (unsigned offset).
		Mnemonic:       "str_x_imm",
		Mask:           0xFFC00000,
		Data:           0xF9000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKReg, 5, 5},
			{OKImmUnsigned, 10, 12},
		},
	},
	{
		// CBZ Xt, <label>.
		Mnemonic:       "cbz_x",
		Mask:           0xFF000000,
		Data:           0xB4000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKPCRelOffsetX4, 5, 19},
		},
	},
	{
		// CBNZ Xt, <label>.
		Mnemonic:       "cbnz_x",
		Mask:           0xFF000000,
		Data:           0xB5000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKReg, 0, 5},
			{OKPCRelOffsetX4, 5, 19},
		},
	},
	{
		// RET {Xn}: defaults to X30 when no operand is given by the caller.
		Mnemonic:   "ret",
		Mask:       0xFFFFFC1F,
		Data:       0xD65F0000,
		NumDefsVal: 0,
		ReturnFlag: true,
		Fields: []Field{
			{OKReg, 5, 5},
		},
	},
	{
		// BL <label>: branch-with-link, the one AArch64 call form.
		Mnemonic:   "bl",
		Mask:       0xFC000000,
		Data:       0x94000000,
		NumDefsVal: 0,
		CallFlag:   true,
		Fields: []Field{
			{OKPCRelOffsetX4, 0, 26},
		},
	},
	{
		// B <label>: unconditional branch.
		Mnemonic:       "b",
		Mask:           0xFC000000,
		Data:           0x14000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKPCRelOffsetX4, 0, 26},
		},
	},
	{
		// B.cond <label>: conditional branch.
		Mnemonic:       "b_cond",
		Mask:           0xFF000010,
		Data:           0x54000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKPCRelOffsetX4, 5, 19},
			{OKCondCode, 0, 4},
		},
	},
}

var byName = func() map[string]*Opcode {
	m := make(map[string]*Opcode, len(Table))
	for _, o := range Table {
		m[o.Mnemonic] = o
	}
	return m
}()

func init() {
	if errs := CheckUniqueness(); len(errs) > 0 {
		panic(fmt.Sprintf("isaarm64: opcode table self-test failed: %v", errs[0]))
	}
}

// Lookup returns the opcode table entry named name, or nil.
func Lookup(name string) *Opcode { return byName[name] }

// CheckUniqueness verifies that no two opcodes can accept the same
// 32-bit word. Two entries are ambiguous iff, restricted
// to the bits both masks constrain, their fixed data agrees — meaning some
// word could satisfy both (mask,data) pairs at once.
func CheckUniqueness() []error {
	var errs []error
	for i := 0; i < len(Table); i++ {
		for j := i + 1; j < len(Table); j++ {
			a, b := Table[i], Table[j]
			overlap := a.Mask & b.Mask
			if a.Data&overlap == b.Data&overlap {
				errs = append(errs, fmt.Errorf("isaarm64: opcodes %q and %q are ambiguous (overlapping mask/data)", a.Mnemonic, b.Mnemonic))
			}
		}
	}
	return errs
}
