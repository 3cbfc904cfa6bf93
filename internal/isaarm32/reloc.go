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

// RelocType enumerates the AArch32 relocation kinds this backend emits,
// named after the standard ELF ARM ABI constants they mirror.
type RelocType int

const (
	ABS32 RelocType = iota
	JUMP24 // B/BL's 24-bit word-count displacement field
)

// ApplyReloc patches word (the raw little-endian bytes of the 4-byte
// instruction or data slot at the relocation site) in place, given the
// site's own program counter and the symbol's final value.
//
// ARM's B/BL encode a PC-relative word count using the architecturally
// defined PC = instruction address + 8 (the legacy three-stage-pipeline
// offset), not the instruction's own address, which JUMP24 accounts for.
func ApplyReloc(kind RelocType, word []byte, pc uint64, symVal int64, addend int64) error {
	target := symVal + addend
	switch kind {
	case ABS32:
		if len(word) != 4 {
			return fmt.Errorf("ABS32 reloc needs a 4-byte slot, got %d", len(word))
		}
		putU32(word, uint32(target))
		return nil
	case JUMP24:
		if len(word) != 4 {
			return fmt.Errorf("JUMP24 reloc needs a 4-byte instruction, got %d", len(word))
		}
		rel := (target - int64(pc+8)) >> 2
		mask := uint32(1)<<24 - 1
		insn := u32(word)
		insn = (insn &^ mask) | (uint32(rel) & mask)
		putU32(word, insn)
		return nil
	default:
		return fmt.Errorf("unsupported AArch32 relocation kind %d", kind)
	}
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
