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

// RelocType enumerates the AArch64 relocation kinds this backend emits,
// named after the ELF AArch64 ABI constants they mirror.
type RelocType int

const (
	ABS32 RelocType = iota
	ABS64
	ADR_PREL_PG_HI21
	ADD_ABS_LO12_NC
	CONDBR19
	JUMP26
	CALL26
)

// ApplyReloc patches word (the raw little-endian bytes of one
// instruction, or of an 8-byte data slot for ABS64) in place given the
// symbol's final value and the relocation's own address, slotting the
// displacement into its bit field without disturbing other bits.
func ApplyReloc(kind RelocType, word []byte, pc uint64, symVal int64, addend int64) error {
	target := symVal + addend
	switch kind {
	case ABS32:
		if len(word) != 4 {
			return fmt.Errorf("ABS32 reloc needs a 4-byte slot, got %d", len(word))
		}
		putU32(word, uint32(target))
		return nil
	case ABS64:
		if len(word) != 8 {
			return fmt.Errorf("ABS64 reloc needs an 8-byte slot, got %d", len(word))
		}
		putU64(word, uint64(target))
		return nil
	case ADR_PREL_PG_HI21:
		if len(word) != 4 {
			return fmt.Errorf("ADR_PREL_PG_HI21 needs a 4-byte instruction, got %d", len(word))
		}
		pageRel := (target >> 12) - int64(pc>>12)
		insn := u32(word)
		insn = patchAdrpImm(insn, pageRel)
		putU32(word, insn)
		return nil
	case ADD_ABS_LO12_NC:
		if len(word) != 4 {
			return fmt.Errorf("ADD_ABS_LO12_NC needs a 4-byte instruction, got %d", len(word))
		}
		lo12 := target & 0xfff
		insn := u32(word)
		insn = (insn &^ (0xfff << 10)) | (uint32(lo12) << 10)
		putU32(word, insn)
		return nil
	case CONDBR19:
		return patchPCRel(word, pc, target, 19, 5)
	case JUMP26, CALL26:
		return patchPCRel(word, pc, target, 26, 0)
	default:
		return fmt.Errorf("unsupported AArch64 relocation kind %d", kind)
	}
}

func patchPCRel(word []byte, pc uint64, target int64, width, shift uint) error {
	if len(word) != 4 {
		return fmt.Errorf("pc-relative reloc needs a 4-byte instruction, got %d", len(word))
	}
	rel := (target - int64(pc)) >> 2
	mask := uint32(1)<<width - 1
	insn := u32(word)
	insn = (insn &^ (mask << shift)) | (uint32(rel)&mask)<<shift
	putU32(word, insn)
	return nil
}

// patchAdrpImm packs ADRP's split 21-bit immediate: immlo (bits 30-29),
// immhi (bits 23-5).
func patchAdrpImm(insn uint32, imm int64) uint32 {
	u := uint32(imm) & (1<<21 - 1)
	immlo := u & 0x3
	immhi := (u >> 2) & 0x7ffff
	insn = insn &^ (0x3 << 29)
	insn = insn &^ (0x7ffff << 5)
	insn |= immlo << 29
	insn |= immhi << 5
	return insn
}

func u32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
