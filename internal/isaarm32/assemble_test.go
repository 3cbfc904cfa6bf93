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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableUniqueness(t *testing.T) {
	require.Empty(t, CheckUniqueness())
}

func TestRoundTripWholeTable(t *testing.T) {
	sample := func(k OperandKind) int64 {
		switch k {
		case OKReg:
			return 3
		case OKImmUnsigned:
			return 1
		case OKShiftKind:
			return 1
		case OKRegList:
			return 0x4010
		case OKPCRelOffsetX4:
			return 0x20
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

func TestAddImmRoundTrip(t *testing.T) {
	encoded, err := Assemble("add_imm", []int64{1, 1, 1}) // add r1, r1, #1
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "add_imm", op.Name())
	require.Equal(t, []int64{1, 1, 1}, operands)
}

func TestPushAliasResolvesToCanonicalEncoding(t *testing.T) {
	op := Lookup("push")
	require.NotNil(t, op)
	require.Equal(t, "stmdb_sp", op.Name())
	require.Equal(t, "push", CanonicalName(op))
}

func TestPopRoundTrip(t *testing.T) {
	encoded, err := Assemble("ldmia_sp", []int64{0x8030})
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "pop", CanonicalName(op))
	require.Equal(t, []int64{0x8030}, operands)
}

func TestShiftMnemonicsAreMovSpellings(t *testing.T) {
	// mov r1, r2
	encoded, err := Assemble("mov_regimm", []int64{1, 2, 0, 0})
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "mov", SymbolicName(op, operands))

	// lsl r1, r2, #3
	encoded, err = Assemble("mov_regimm", []int64{1, 2, 0, 3})
	require.NoError(t, err)
	op, operands, err = Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "lsl", SymbolicName(op, operands))

	// asr r4, r4, #31
	encoded, err = Assemble("mov_regimm", []int64{4, 4, 2, 31})
	require.NoError(t, err)
	op, operands, err = Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "asr", SymbolicName(op, operands))
}

func TestBxIsReturn(t *testing.T) {
	encoded, err := Assemble("bx", []int64{14}) // bx lr
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "bx", op.Name())
	require.Equal(t, []int64{14}, operands)
	require.True(t, op.IsReturn())
}

func TestLoadStoreRoundTrip(t *testing.T) {
	encoded, err := Assemble("str_imm", []int64{0, 13, 8}) // str r0, [sp, #8]
	require.NoError(t, err)
	op, operands, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "str_imm", op.Name())
	require.Equal(t, []int64{0, 13, 8}, operands)
	require.True(t, op.HasSideEffect())

	require.Equal(t, 1, Lookup("ldr_imm").NumDefs())
}
