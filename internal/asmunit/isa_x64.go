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
package asmunit

import (
	"debug/elf"
	"fmt"

	"github.com/cwerg-go/cwerg/internal/isax64"
)

// X64 adapts internal/isax64's opcode table to the Arch seam.
type X64 struct{}

func (X64) Name() string         { return "x64" }
func (X64) Machine() elf.Machine { return elf.EM_X86_64 }
func (X64) InstrAlign() uint64   { return 1 }

var x64Regs = map[string]int64{
	"rax": 0, "eax": 0, "ax": 0, "al": 0,
	"rcx": 1, "ecx": 1, "cx": 1, "cl": 1,
	"rdx": 2, "edx": 2, "dx": 2, "dl": 2,
	"rbx": 3, "ebx": 3, "bx": 3, "bl": 3,
	"rsp": 4, "esp": 4, "sp": 4, "spl": 4,
	"rbp": 5, "ebp": 5, "bp": 5, "bpl": 5,
	"rsi": 6, "esi": 6, "si": 6, "sil": 6,
	"rdi": 7, "edi": 7, "di": 7, "dil": 7,
	"r8": 8, "r8d": 8, "r9": 9, "r9d": 9,
	"r10": 10, "r10d": 10, "r11": 11, "r11d": 11,
	"r12": 12, "r12d": 12, "r13": 13, "r13d": 13,
	"r14": 14, "r14d": 14, "r15": 15, "r15d": 15,
}

// Encode maps the symbolic operand tokens onto the opcode's flat operand
// vector slot by slot: register-kind slots take a register name, every
// other slot takes a number. A symbol where the final immediate or
// branch displacement belongs encodes as zero plus a pending relocation.
func (a X64) Encode(mnemonic string, operands []Token, pc uint64) (EncodeResult, error) {
	op := isax64.Lookup(mnemonic)
	if op == nil {
		return EncodeResult{}, fmt.Errorf("unknown x64 opcode %q", mnemonic)
	}
	if len(operands) != len(op.Ops) {
		return EncodeResult{}, fmt.Errorf("%s wants %d operands, got %d", mnemonic, len(op.Ops), len(operands))
	}

	vals := make([]int64, len(operands))
	var relocSym string
	relocType := -1
	relocWidth := 0
	for i, k := range op.Ops {
		t := operands[i]
		switch k {
		case isax64.OpReg, isax64.OpBase, isax64.OpIndex:
			n, ok := x64Regs[t.Ident]
			if !ok {
				return EncodeResult{}, fmt.Errorf("%s operand %d: bad register %q", mnemonic, i, t.Raw)
			}
			vals[i] = n
		default:
			if t.IsNum {
				vals[i] = t.Num
				continue
			}
			// Only the trailing immediate/displacement slot may be
			// symbolic.
			if i != len(op.Ops)-1 || t.Ident == "" {
				return EncodeResult{}, fmt.Errorf("%s operand %d: expected a number, got %q", mnemonic, i, t.Raw)
			}
			relocSym = t.Ident
			switch k {
			case isax64.OpRel32:
				relocType = int(isax64.REL32)
				relocWidth = 4
			case isax64.OpImm64:
				relocType = int(isax64.ABS64)
				relocWidth = 8
			case isax64.OpImm32, isax64.OpImm32_64, isax64.OpDisp32:
				relocType = int(isax64.ABS32)
				relocWidth = 4
			default:
				return EncodeResult{}, fmt.Errorf("%s operand %d: %q needs a slot at least 4 bytes wide", mnemonic, i, t.Raw)
			}
			vals[i] = 0
		}
	}

	bytes, err := isax64.Assemble(mnemonic, vals)
	if err != nil {
		return EncodeResult{}, err
	}
	result := EncodeResult{Bytes: bytes, Meta: x64Meta(op)}
	if relocSym != "" {
		result.Relocs = append(result.Relocs, PendingReloc{
			Offset: len(bytes) - relocWidth, Symbol: relocSym, Type: relocType,
		})
	}
	return result, nil
}

func x64Meta(op *isax64.Opcode) OpMeta {
	return OpMeta{NumDefs: op.NumDefs(), IsCall: op.IsCall(), IsReturn: op.IsReturn(), HasSideEffect: op.HasSideEffect()}
}

func (X64) ApplyReloc(typ int, word []byte, pc uint64, symVal uint64, addend int64) error {
	return isax64.ApplyReloc(isax64.RelocType(typ), word, pc, int64(symVal), addend)
}

func (X64) AbsRelocType(width int) int {
	if width == 8 {
		return int(isax64.ABS64)
	}
	return int(isax64.ABS32)
}
