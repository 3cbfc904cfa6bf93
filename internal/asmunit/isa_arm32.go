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
	"strconv"

	"github.com/cwerg-go/cwerg/internal/isaarm32"
)

// Arm32 adapts internal/isaarm32's opcode table to the Arch seam.
type Arm32 struct{}

func (Arm32) Name() string         { return "arm32" }
func (Arm32) Machine() elf.Machine { return elf.EM_ARM }
func (Arm32) InstrAlign() uint64   { return 4 }

func arm32RegNum(ident string) (int64, bool) {
	switch ident {
	case "sp":
		return 13, true
	case "lr":
		return 14, true
	case "pc":
		return 15, true
	}
	if len(ident) < 2 || ident[0] != 'r' {
		return 0, false
	}
	n, err := strconv.Atoi(ident[1:])
	if err != nil || n < 0 || n > 15 {
		return 0, false
	}
	return int64(n), true
}

// movAliasShift maps the shift-mnemonic spellings of the register move
// onto the barrel-shifter selector of the canonical mov_regimm encoding.
var movAliasShift = map[string]int64{"lsl": 0, "lsr": 1, "asr": 2, "ror": 3}

func (a Arm32) Encode(mnemonic string, operands []Token, pc uint64) (EncodeResult, error) {
	// mov rd, rm and the shift mnemonics are spellings of mov_regimm.
	if sh, isShift := movAliasShift[mnemonic]; isShift || mnemonic == "mov" && len(operands) == 2 && operands[1].Ident != "" {
		var rd, rm Token
		amount := Token{IsNum: true}
		switch {
		case isShift && len(operands) == 3:
			rd, rm, amount = operands[0], operands[1], operands[2]
		case !isShift && len(operands) == 2:
			rd, rm = operands[0], operands[1]
		default:
			return EncodeResult{}, fmt.Errorf("%s wants <rd>, <rm>[, <amount>]", mnemonic)
		}
		return a.Encode("mov_regimm", []Token{rd, rm, {IsNum: true, Num: sh}, amount}, pc)
	}
	if mnemonic == "mov" {
		return a.Encode("mov_imm", operands, pc)
	}

	op := isaarm32.Lookup(mnemonic)
	if op == nil {
		return EncodeResult{}, fmt.Errorf("unknown arm32 opcode %q", mnemonic)
	}
	if len(operands) != len(op.Fields) {
		return EncodeResult{}, fmt.Errorf("%s wants %d operands, got %d", mnemonic, len(op.Fields), len(operands))
	}

	vals := make([]int64, len(operands))
	relocFieldIdx := -1
	var relocSym string
	for i, f := range op.Fields {
		t := operands[i]
		switch f.Kind {
		case isaarm32.OKReg:
			n, ok := arm32RegNum(t.Ident)
			if !ok {
				return EncodeResult{}, fmt.Errorf("%s operand %d: bad register %q", mnemonic, i, t.Raw)
			}
			vals[i] = n
		case isaarm32.OKImmUnsigned:
			if !t.IsNum {
				return EncodeResult{}, fmt.Errorf("%s operand %d: expected an immediate, got %q", mnemonic, i, t.Raw)
			}
			vals[i] = t.Num
		case isaarm32.OKShiftKind:
			if !t.IsNum || t.Num < 0 || t.Num > 3 {
				return EncodeResult{}, fmt.Errorf("%s operand %d: bad shift kind %q", mnemonic, i, t.Raw)
			}
			vals[i] = t.Num
		case isaarm32.OKCondCode:
			return EncodeResult{}, fmt.Errorf("%s operand %d: condition codes are not exercised by this table", mnemonic, i)
		case isaarm32.OKRegList:
			if !t.IsList {
				return EncodeResult{}, fmt.Errorf("%s operand %d: expected a bracketed register list, got %q", mnemonic, i, t.Raw)
			}
			var mask int64
			for _, reg := range t.List {
				n, ok := arm32RegNum(reg)
				if !ok {
					return EncodeResult{}, fmt.Errorf("%s operand %d: bad register %q in list", mnemonic, i, reg)
				}
				mask |= 1 << uint(n)
			}
			vals[i] = mask
		case isaarm32.OKPCRelOffsetX4:
			if t.IsNum {
				vals[i] = t.Num
			} else {
				vals[i] = 0
				relocFieldIdx = i
				relocSym = t.Ident
			}
		default:
			return EncodeResult{}, fmt.Errorf("%s operand %d: unhandled field kind %v", mnemonic, i, f.Kind)
		}
	}

	bytes, err := isaarm32.Assemble(mnemonic, vals)
	if err != nil {
		return EncodeResult{}, err
	}
	result := EncodeResult{Bytes: bytes, Meta: arm32Meta(op)}
	if relocFieldIdx >= 0 {
		if mnemonic != "b" && mnemonic != "bl" {
			return EncodeResult{}, fmt.Errorf("%s: symbolic branch target not supported", mnemonic)
		}
		result.Relocs = append(result.Relocs, PendingReloc{Offset: 0, Symbol: relocSym, Type: int(isaarm32.JUMP24)})
	}
	return result, nil
}

func arm32Meta(op *isaarm32.Opcode) OpMeta {
	return OpMeta{NumDefs: op.NumDefs(), IsCall: op.IsCall(), IsReturn: op.IsReturn(), HasSideEffect: op.HasSideEffect()}
}

func (Arm32) ApplyReloc(typ int, word []byte, pc uint64, symVal uint64, addend int64) error {
	return isaarm32.ApplyReloc(isaarm32.RelocType(typ), word, pc, int64(symVal), addend)
}

func (Arm32) AbsRelocType(width int) int {
	return int(isaarm32.ABS32)
}
