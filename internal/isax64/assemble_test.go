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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMovImmEncoding(t *testing.T) {
	encoded32, err := Assemble("mov_32_oi", []int64{0, 0x11223344})
	require.NoError(t, err)
	require.Equal(t, []byte{0xB8, 0x44, 0x33, 0x22, 0x11}, encoded32)

	encoded64, err := Assemble("mov_64_oi", []int64{0, 0x11223344})
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0xB8, 0x44, 0x33, 0x22, 0x11, 0x00, 0x00, 0x00, 0x00}, encoded64)
}

func TestKnownEncodings(t *testing.T) {
	for _, tc := range []struct {
		name     string
		operands []int64
		want     []byte
	}{
		// add ecx, edx
		{"add_32_mr_r", []int64{1, 2}, []byte{0x01, 0xD1}},
		// add rcx, rdx
		{"add_64_mr_r", []int64{1, 2}, []byte{0x48, 0x01, 0xD1}},
		// add dword [rbx], ecx
		{"add_32_mr_mB", []int64{3, 1}, []byte{0x01, 0x0B}},
		// add dword [rbx+0x10], ecx
		{"add_32_mr_mB8", []int64{3, 0x10, 1}, []byte{0x01, 0x4B, 0x10}},
		// sub rax, 1 (sign-extended imm8)
		{"sub_64_mi_imm8_r", []int64{0, 1}, []byte{0x48, 0x83, 0xE8, 0x01}},
		// mov rax, [rbx+rcx*4+8]
		{"mov_64_rm_mbis8", []int64{0, 3, 1, 4, 8}, []byte{0x48, 0x8B, 0x44, 0x8B, 0x08}},
		// mov eax, [rip+0x100]
		{"mov_32_rm_mpc", []int64{0, 0x100}, []byte{0x8B, 0x05, 0x00, 0x01, 0x00, 0x00}},
		// lea rdi, [rsi+0x20]
		{"lea_64_rm_mB8", []int64{7, 6, 0x20}, []byte{0x48, 0x8D, 0x7E, 0x20}},
		// push r12
		{"push_64_o", []int64{12}, []byte{0x41, 0x54}},
		// call rel32 0
		{"call", []int64{0}, []byte{0xE8, 0x00, 0x00, 0x00, 0x00}},
		// xor r8d, r8d
		{"xor_32_mr_r", []int64{8, 8}, []byte{0x45, 0x31, 0xC0}},
		// cmp al, 7
		{"cmp_8_mi_r", []int64{0, 7}, []byte{0x80, 0xF8, 0x07}},
		// mov sil, 1: spl..dil need a bare REX
		{"mov_8_oi", []int64{6, 1}, []byte{0x40, 0xB6, 0x01}},
		{"ret", nil, []byte{0xC3}},
		{"syscall", nil, []byte{0x0F, 0x05}},
	} {
		got, err := Assemble(tc.name, tc.operands)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}
}

// sampleOperands manufactures a representative operand vector for an
// opcode, staying inside every mode's encodability constraints.
func sampleOperands(op *Opcode) []int64 {
	out := make([]int64, 0, len(op.Ops))
	for _, k := range op.Ops {
		switch k {
		case OpReg:
			out = append(out, 3)
		case OpBase:
			out = append(out, 6)
		case OpIndex:
			out = append(out, 2)
		case OpScale:
			out = append(out, 4)
		case OpDisp8:
			out = append(out, -8)
		case OpDisp32:
			out = append(out, 0x1234)
		case OpImm64:
			out = append(out, 0x1122334455)
		case OpRel32:
			out = append(out, 0x100)
		default:
			out = append(out, 5)
		}
	}
	return out
}

// TestRoundTripWholeTable drives every expanded variant through
// assemble-then-disassemble and requires an exact match of opcode,
// operand vector and re-encoded bytes.
func TestRoundTripWholeTable(t *testing.T) {
	for _, op := range Table {
		operands := sampleOperands(op)
		encoded, err := Assemble(op.Mnemonic, operands)
		require.NoError(t, err, op.Mnemonic)

		got, gotOps, consumed, err := Disassemble(encoded)
		require.NoError(t, err, op.Mnemonic)
		require.Equal(t, op.Mnemonic, got.Mnemonic)
		require.Equal(t, operands, gotOps, op.Mnemonic)
		require.Equal(t, len(encoded), consumed, op.Mnemonic)

		reencoded, err := Assemble(got.Mnemonic, gotOps)
		require.NoError(t, err, op.Mnemonic)
		require.Equal(t, encoded, reencoded, op.Mnemonic)
	}
}

func TestRoundTripHighRegisters(t *testing.T) {
	// r13 as a base exercises REX.B together with the disp8 form that
	// rbp-numbered bases require.
	encoded, err := Assemble("mov_64_rm_mB8", []int64{14, 13, 0})
	require.NoError(t, err)
	got, ops, _, err := Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "mov_64_rm_mB8", got.Mnemonic)
	require.Equal(t, []int64{14, 13, 0}, ops)

	// rsp/rbp are ordinary registers in register form.
	encoded, err = Assemble("add_64_mr_r", []int64{4, 5})
	require.NoError(t, err)
	got, ops, _, err = Disassemble(encoded)
	require.NoError(t, err)
	require.Equal(t, "add_64_mr_r", got.Mnemonic)
	require.Equal(t, []int64{4, 5}, ops)
}

func TestTableUniqueness(t *testing.T) {
	require.Empty(t, CheckUniqueness())
}

func TestNameManglingIsUnique(t *testing.T) {
	seen := make(map[string]bool, len(Table))
	for _, op := range Table {
		require.False(t, seen[op.Mnemonic], "duplicate mnemonic %q", op.Mnemonic)
		seen[op.Mnemonic] = true
	}
}

func TestEncodingRejectsUnencodableAddresses(t *testing.T) {
	// [rsp] without SIB, [rbp] without displacement, rsp as index.
	_, err := Assemble("mov_32_rm_mB", []int64{0, 4})
	require.Error(t, err)
	_, err = Assemble("mov_32_rm_mB", []int64{0, 5})
	require.Error(t, err)
	_, err = Assemble("mov_64_rm_mbis", []int64{0, 3, 4, 2})
	require.Error(t, err)
}

func TestCallIsCallAndRetIsReturn(t *testing.T) {
	require.True(t, Lookup("call").IsCall())
	require.True(t, Lookup("call_m_r").IsCall())
	require.True(t, Lookup("ret").IsReturn())
	require.True(t, Lookup("ret").HasSideEffect())
	require.Equal(t, 1, Lookup("mov_64_rm_r").NumDefs())
	require.Equal(t, 0, Lookup("cmp_32_mr_r").NumDefs())
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	_, _, _, err := Disassemble([]byte{0x0F, 0x0B}) // ud2
	require.Error(t, err)
}

func TestDisassembleTruncated(t *testing.T) {
	_, _, _, err := Disassemble([]byte{0x48})
	require.Error(t, err)
	_, _, _, err = Disassemble([]byte{0xB8, 0x01})
	require.Error(t, err)
}
