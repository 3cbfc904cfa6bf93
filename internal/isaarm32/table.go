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
package isaarm32

import "fmt"

// Table is the process-wide AArch32 opcode table, covering the
// data-processing-immediate, data-processing-register, branch,
// branch-and-link, load/store and load/store-multiple instruction
// classes. Always-executes (cond==AL) encoding is assumed throughout.
var Table = []*Opcode{
	{
		// ADD Rd, Rn, #imm12 (data-processing immediate, AL, no flags).
		Mnemonic:   "add_imm",
		Mask:       0xFFF00000,
		Data:       0xE2800000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},          // Rd (def)
			{OKReg, 16, 4},          // Rn (use)
			{OKImmUnsigned, 0, 12}, // imm12 (use)
		},
	},
	{
		// SUB Rd, Rn, #imm12.
		Mnemonic:   "sub_imm",
		Mask:       0xFFF00000,
		Data:       0xE2400000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKReg, 16, 4},
			{OKImmUnsigned, 0, 12},
		},
	},
	{
		// MOV Rd, #imm12 (modified immediate, AL, no flags).
		Mnemonic:   "mov_imm",
		Mask:       0xFFFF0000,
		Data:       0xE3A00000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKImmUnsigned, 0, 12},
		},
	},
	{
		// MOV Rd, Rm, <shift> #imm5 — the one data-processing-register
		// move. The plain "mov" and the shift mnemonics lsl/lsr/asr/ror
		// are all symbolic spellings of this encoding; SymbolicName maps
		// a decoded instruction back to the spelling an assembler would
		// have written.
		Mnemonic:   "mov_regimm",
		Mask:       0xFFF00010,
		Data:       0xE1A00000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},       // Rd (def)
			{OKReg, 0, 4},        // Rm (use)
			{OKShiftKind, 5, 2},  // LSL/LSR/ASR/ROR
			{OKImmUnsigned, 7, 5}, // shift amount
		},
	},
	{
		// ADD Rd, Rn, Rm (register, no shift).
		Mnemonic:   "add_reg",
		Mask:       0xFFF00FF0,
		Data:       0xE0800000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKReg, 16, 4},
			{OKReg, 0, 4},
		},
	},
	{
		// SUB Rd, Rn, Rm (register, no shift).
		Mnemonic:   "sub_reg",
		Mask:       0xFFF00FF0,
		Data:       0xE0400000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKReg, 16, 4},
			{OKReg, 0, 4},
		},
	},
	{
		// CMP Rn, Rm (register, no shift): flags only, no destination.
		Mnemonic:   "cmp_reg",
		Mask:       0xFFF0FFF0,
		Data:       0xE1500000,
		NumDefsVal: 0,
		Fields: []Field{
			{OKReg, 16, 4},
			{OKReg, 0, 4},
		},
	},
	{
		// LDR Rt, [Rn, #imm12].
		Mnemonic:   "ldr_imm",
		Mask:       0xFFF00000,
		Data:       0xE5900000,
		NumDefsVal: 1,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKReg, 16, 4},
			{OKImmUnsigned, 0, 12},
		},
	},
	{
		// STR Rt, [Rn, #imm12].
		Mnemonic:       "str_imm",
		Mask:           0xFFF00000,
		Data:           0xE5800000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKReg, 12, 4},
			{OKReg, 16, 4},
			{OKImmUnsigned, 0, 12},
		},
	},
	{
		// BX Rm — the function-return form when Rm is lr.
		Mnemonic:   "bx",
		Mask:       0xFFFFFFF0,
		Data:       0xE12FFF10,
		NumDefsVal: 0,
		ReturnFlag: true,
		Fields: []Field{
			{OKReg, 0, 4},
		},
	},
	{
		// B <label> (unconditional branch).
		Mnemonic:       "b",
		Mask:           0xFF000000,
		Data:           0xEA000000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKPCRelOffsetX4, 0, 24},
		},
	},
	{
		// BL <label> (branch and link — the one AArch32 call form).
		Mnemonic:   "bl",
		Mask:       0xFF000000,
		Data:       0xEB000000,
		NumDefsVal: 0,
		CallFlag:   true,
		Fields: []Field{
			{OKPCRelOffsetX4, 0, 24},
		},
	},
	{
		// STMDB SP!, {reglist} — the canonical encoding behind the "push"
		// alias.
		Mnemonic:       "stmdb_sp",
		AliasOf:        "push",
		Mask:           0xFFFF0000,
		Data:           0xE92D0000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKRegList, 0, 16},
		},
	},
	{
		// LDMIA SP!, {reglist} — the canonical encoding behind "pop".
		Mnemonic:       "ldmia_sp",
		AliasOf:        "pop",
		Mask:           0xFFFF0000,
		Data:           0xE8BD0000,
		NumDefsVal:     0,
		SideEffectFlag: true,
		Fields: []Field{
			{OKRegList, 0, 16},
		},
	},
}

var byName = func() map[string]*Opcode {
	m := make(map[string]*Opcode, len(Table)*2)
	for _, o := range Table {
		m[o.Mnemonic] = o
		if o.AliasOf != "" {
			m[o.AliasOf] = o
		}
	}
	return m
}()

func init() {
	if errs := CheckUniqueness(); len(errs) > 0 {
		panic(fmt.Sprintf("isaarm32: opcode table self-test failed: %v", errs[0]))
	}
}

// Lookup resolves a mnemonic to its opcode table entry, recognizing both
// the canonical name and any symbolic alias (e.g. "push" for "stmdb_sp").
func Lookup(name string) *Opcode { return byName[name] }

// CanonicalName returns the name assembly output should render for op:
// the alias when one exists (push for stmdb_sp, pop for ldmia_sp),
// otherwise the table mnemonic itself.
func CanonicalName(op *Opcode) string {
	if op.AliasOf != "" {
		return op.AliasOf
	}
	return op.Mnemonic
}

// SymbolicName maps a decoded instruction to the mnemonic an assembler
// writer would have used, resolving the operand-dependent mov aliases:
// a shift amount of zero with the LSL selector renders as mov, any other
// combination as the shift mnemonic selected by the barrel-shifter field.
func SymbolicName(op *Opcode, operands []int64) string {
	if op.Mnemonic != "mov_regimm" || len(operands) != 4 {
		return CanonicalName(op)
	}
	sh, amount := operands[2], operands[3]
	if amount == 0 && sh == 0 {
		return "mov"
	}
	switch sh {
	case 0:
		return "lsl"
	case 1:
		return "lsr"
	case 2:
		return "asr"
	default:
		return "ror"
	}
}

// CheckUniqueness verifies that no two opcodes can accept the same
// 32-bit word (see internal/isaarm64's identical check for the full
// rationale).
func CheckUniqueness() []error {
	var errs []error
	for i := 0; i < len(Table); i++ {
		for j := i + 1; j < len(Table); j++ {
			a, b := Table[i], Table[j]
			overlap := a.Mask & b.Mask
			if a.Data&overlap == b.Data&overlap {
				errs = append(errs, fmt.Errorf("isaarm32: opcodes %q and %q are ambiguous (overlapping mask/data)", a.Mnemonic, b.Mnemonic))
			}
		}
	}
	return errs
}
