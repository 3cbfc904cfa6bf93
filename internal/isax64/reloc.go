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
package isax64

import (
	"encoding/binary"
	"fmt"
)

// RelocType enumerates the x86-64 relocation kinds this backend emits,
// covering the rel32 branch displacements and absolute-immediate
// opcodes the table supports.
type RelocType int

const (
	ABS32 RelocType = iota
	ABS64
	REL32 // call/jmp rel32 displacement, relative to the next instruction
)

// ApplyReloc patches word (the relocation site's raw bytes) in place.
// REL32 is relative to the end of the 4-byte displacement field itself
// (pc here is the start of that field, per how internal/asmunit records
// the site), matching x86's "next instruction" PC-relative convention.
func ApplyReloc(kind RelocType, word []byte, pc uint64, symVal int64, addend int64) error {
	target := symVal + addend
	switch kind {
	case ABS32:
		if len(word) != 4 {
			return fmt.Errorf("ABS32 reloc needs a 4-byte slot, got %d", len(word))
		}
		binary.LittleEndian.PutUint32(word, uint32(target))
		return nil
	case ABS64:
		if len(word) != 8 {
			return fmt.Errorf("ABS64 reloc needs an 8-byte slot, got %d", len(word))
		}
		binary.LittleEndian.PutUint64(word, uint64(target))
		return nil
	case REL32:
		if len(word) != 4 {
			return fmt.Errorf("REL32 reloc needs a 4-byte slot, got %d", len(word))
		}
		rel := target - int64(pc+4)
		binary.LittleEndian.PutUint32(word, uint32(int32(rel)))
		return nil
	default:
		return fmt.Errorf("unsupported x86-64 relocation kind %d", kind)
	}
}
