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
	"strings"

	"github.com/cwerg-go/cwerg/internal/isaarm64"
)

// Arm64 adapts internal/isaarm64's opcode table to the Arch seam.
type Arm64 struct{}

func (Arm64) Name() string         { return "arm64" }
func (Arm64) Machine() elf.Machine { return elf.EM_AARCH64 }
func (Arm64) InstrAlign() uint64   { return 4 }

func arm64RegNum(ident string) (int64, bool) {
	switch ident {
	case "xzr", "wzr":
		return 31, true
	}
	body := strings.TrimPrefix(strings.TrimPrefix(ident, "x"), "w")
	if body == ident {
		return 0, false
	}
	n, err := strconv.Atoi(body)
	if err != nil || n < 0 || n > 30 {
		return 0, false
	}
	return int64(n), true
}

var arm64CondCodes = map[string]int64{
	"eq": 0, "ne": 1, "cs": 2, "hs": 2, "cc": 3, "lo": 3,
	"mi": 4, "pl": 5, "vs": 6, "vc": 7, "hi": 8, "ls": 9,
	"ge": 10, "lt": 11, "gt": 12, "le": 13, "al": 14, "nv": 15,
}

func (a Arm64) Encode(mnemonic string, operands []Token, pc uint64) (EncodeResult, error) {
	op := isaarm64.Lookup(mnemonic)
	if op == nil {
		return EncodeResult{}, fmt.Errorf("unknown arm64 opcode %q", mnemonic)
	}

	toks := operands
	if mnemonic == "ret" && len(toks) == 0 {
		toks = []Token{{Ident: "x30"}}
	}

	// adrp takes its destination register plus a page-relative symbol that
	// the table's single Rd field doesn't model; the symbol always drives
	// an ADR_PREL_PG_HI21 relocation over the whole instruction.
	if mnemonic == "adrp" {
		if len(toks) != 2 {
			return EncodeResult{}, fmt.Errorf("adrp wants <reg> <symbol>, got %d operands", len(toks))
		}
		rd, ok := arm64RegNum(toks[0].Ident)
		if !ok {
			return EncodeResult{}, fmt.Errorf("adrp operand 0: bad register %q", toks[0].Raw)
		}
		bytes, err := isaarm64.Assemble(mnemonic, []int64{rd})
		if err != nil {
			return EncodeResult{}, err
		}
		return EncodeResult{
			Bytes:  bytes,
			Meta:   arm64Meta(op),
			Relocs: []PendingReloc{{Offset: 0, Symbol: toks[1].Ident, Type: int(isaarm64.ADR_PREL_PG_HI21)}},
		}, nil
	}

	if len(toks) != len(op.Fields) {
		return EncodeResult{}, fmt.Errorf("%s wants %d operands, got %d", mnemonic, len(op.Fields), len(toks))
	}

	vals := make([]int64, len(toks))
	relocFieldIdx := -1
	var relocSym string
	var loReloc *PendingReloc
	for i, f := range op.Fields {
		t := toks[i]
		switch f.Kind {
		case isaarm64.OKReg:
			n, ok := arm64RegNum(t.Ident)
			if !ok {
				return EncodeResult{}, fmt.Errorf("%s operand %d: bad register %q", mnemonic, i, t.Raw)
			}
			vals[i] = n
		case isaarm64.OKCondCode:
			n, ok := arm64CondCodes[t.Ident]
			if !ok {
				return EncodeResult{}, fmt.Errorf("%s operand %d: bad condition code %q", mnemonic, i, t.Raw)
			}
			vals[i] = n
		case isaarm64.OKImmUnsigned:
			if !t.IsNum {
				// add_x_imm with a symbolic immediate is the low-12 half
				// of an adrp/add address pair; the relocation fills in
				// the field once layout has fixed the symbol.
				if mnemonic == "add_x_imm" && t.Ident != "" {
					vals[i] = 0
					loReloc = &PendingReloc{Offset: 0, Symbol: t.Ident, Type: int(isaarm64.ADD_ABS_LO12_NC)}
					continue
				}
				return EncodeResult{}, fmt.Errorf("%s operand %d: expected an immediate, got %q", mnemonic, i, t.Raw)
			}
			vals[i] = t.Num
		case isaarm64.OKPCRelOffsetX4:
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

	bytes, err := isaarm64.Assemble(mnemonic, vals)
	if err != nil {
		return EncodeResult{}, err
	}
	result := EncodeResult{Bytes: bytes, Meta: arm64Meta(op)}
	if loReloc != nil {
		result.Relocs = append(result.Relocs, *loReloc)
	}
	if relocFieldIdx >= 0 {
		var typ isaarm64.RelocType
		switch mnemonic {
		case "bl":
			typ = isaarm64.CALL26
		case "b":
			typ = isaarm64.JUMP26
		case "b_cond", "cbz_x", "cbnz_x":
			typ = isaarm64.CONDBR19
		default:
			return EncodeResult{}, fmt.Errorf("%s: symbolic branch target not supported", mnemonic)
		}
		result.Relocs = append(result.Relocs, PendingReloc{Offset: 0, Symbol: relocSym, Type: int(typ)})
	}
	return result, nil
}

func arm64Meta(op *isaarm64.Opcode) OpMeta {
	return OpMeta{NumDefs: op.NumDefs(), IsCall: op.IsCall(), IsReturn: op.IsReturn(), HasSideEffect: op.HasSideEffect()}
}

func (Arm64) ApplyReloc(typ int, word []byte, pc uint64, symVal uint64, addend int64) error {
	return isaarm64.ApplyReloc(isaarm64.RelocType(typ), word, pc, int64(symVal), addend)
}

func (Arm64) AbsRelocType(width int) int {
	if width == 8 {
		return int(isaarm64.ABS64)
	}
	return int(isaarm64.ABS32)
}
