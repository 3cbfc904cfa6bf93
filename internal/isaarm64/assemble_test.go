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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAddImmKnownWord pins the canonical encoding of add x1, x1, #1.
func TestAddImmKnownWord(t *testing.T) {
	word := []byte{0x21, 0x04, 0x00, 0x91} // 0x91000421, little-endian
	op, operands, err := Disassemble(word)
	require.NoError(t, err)
	require.Equal(t, "add_x_imm", op.Name())
	require.Equal(t, []int64{1, 1, 1}, operands) // Rd=X1, Rn=X1, imm12=1

	encoded, err := Assemble("add_x_imm", operands)
	require.NoError(t, err)
	require.Equal(t, word, encoded)
	require.Equal(t, uint32(0x91000421), binary.LittleEndian.Uint32(encoded))
}

func TestTableUniqueness(t *testing.T) {
	require.Empty(t, CheckUniqueness())
}

func TestRoundTripWholeTable(t *testing.T) {
	sample := func(k OperandKind) int64 {
		switch k {
		case OKReg:
			return 7
		case OKImmUnsigned:
			return 1
		case OKCondCode:
			return 1
		case OKPCRelOffsetX4:
			return 0x40
		default:
			return 0
		}
	}
	for _, op := range Table {
		operands := make([]int64, len(op.Fields))
		for i, f := range op.Fields {
			operands[i] = sample(f.Kind)
		}
		encoded, err := Assemble(op.Mnemonic, operands)
		require.NoError(t, err, op.Mnemonic)
		got, gotOps, err := Disassemble(encoded)
		require.NoError(t, err, op.Mnemonic)
		require.Equal(t, op.Mnemonic, got.Mnemonic)
		require.Equal(t, operands, gotOps, op.Mnemonic)
	}
}

func TestDisassembleUnknownWord(t *testing.T) {
	_, _, err := Disassemble([]byte{0, 0, 0, 0})
	require.Error(t, err)
}

func TestRetRoundTrip(t *testing.T) {
	encoded, err := Assemble("ret", []int64{30})
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "ret", op.Name())
	require.Equal(t, []int64{30}, operands)
	require.True(t, op.IsReturn())
}

func TestBlIsCall(t *testing.T) {
	op := Lookup("bl")
	require.True(t, op.IsCall())
	require.True(t, op.HasSideEffect())
}

func TestLoadStoreShape(t *testing.T) {
	// ldr x0, [x1, #16]: the imm12 field holds the offset in 8-byte units.
	encoded, err := Assemble("ldr_x_imm", []int64{0, 1, 2})
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "ldr_x_imm", op.Name())
	require.Equal(t, []int64{0, 1, 2}, operands)
	require.Equal(t, 1, op.NumDefs())

	require.True(t, Lookup("str_x_imm").HasSideEffect())
	require.Equal(t, 0, Lookup("str_x_imm").NumDefs())
}

func TestMovzMovkRoundTrip(t *testing.T) {
	encoded, err := Assemble("movz_x", []int64{5, 0xABCD})
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "movz_x", op.Name())
	require.Equal(t, []int64{5, 0xABCD}, operands)
}
