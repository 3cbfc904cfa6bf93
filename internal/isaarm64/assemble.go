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

import (
	"encoding/binary"
	"fmt"
)

// Assemble packs operands (one int64 per Field, in table order) into the
// named opcode's 32-bit word, little-endian: each operand is packed into
// its bit-field position and OR'd with the opcode data.
func Assemble(name string, operands []int64) ([]byte, error) {
	op := Lookup(name)
	if op == nil {
		return nil, fmt.Errorf("isaarm64: unknown opcode %q", name)
	}
	if len(operands) != len(op.Fields) {
		return nil, fmt.Errorf("isaarm64: %q wants %d operands, got %d", name, len(op.Fields), len(operands))
	}
	word := op.Data
	for i, f := range op.Fields {
		packed, err := f.pack(operands[i])
		if err != nil {
			return nil, fmt.Errorf("isaarm64: %q operand %d: %w", name, i, err)
		}
		word |= packed
	}
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, word)
	return out, nil
}

// Disassemble matches a little-endian 32-bit word against the table,
// first match wins. It returns the opcode entry and the decoded operand
// vector.
func Disassemble(bytes4 []byte) (*Opcode, []int64, error) {
	if len(bytes4) != 4 {
		return nil, nil, fmt.Errorf("isaarm64: Disassemble needs exactly 4 bytes, got %d", len(bytes4))
	}
	word := binary.LittleEndian.Uint32(bytes4)
	for _, op := range Table {
		if !op.matches(word) {
			continue
		}
		operands := make([]int64, len(op.Fields))
		for i, f := range op.Fields {
			operands[i] = f.extract(word)
		}
		return op, operands, nil
	}
	return nil, nil, fmt.Errorf("isaarm64: no opcode matches word 0x%08x", word)
}
