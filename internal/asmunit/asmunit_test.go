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
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const x64Prog = `
.fun _start 4
mov_32_oi eax, 42
ret
.endfun
`

func TestAssembleX64Program(t *testing.T) {
	data, err := Assemble(X64{}, strings.NewReader(x64Prog))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, elf.ET_EXEC, f.Type)
	require.Equal(t, elf.EM_X86_64, f.Machine)

	text := f.Section(".text")
	require.NotNil(t, text)
	raw, err := text.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}, raw)
	require.Equal(t, text.Addr, f.Entry)
}

const arm64Prog = `
.fun _start 4
add_x_imm x1, x1, 1
ret
.endfun
`

func TestAssembleArm64Program(t *testing.T) {
	data, err := Assemble(Arm64{}, strings.NewReader(arm64Prog))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, elf.EM_AARCH64, f.Machine)
	text := f.Section(".text")
	require.NotNil(t, text)
	raw, err := text.Data()
	require.NoError(t, err)
	require.Len(t, raw, 8)
}

const arm64CallProg = `
.fun _start 4
bl helper
ret
.endfun

.fun helper 4
ret
.endfun
`

func TestAssembleArm64ForwardCall(t *testing.T) {
	data, err := Assemble(Arm64{}, strings.NewReader(arm64CallProg))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, f.Section(".text").Addr, f.Entry)
}

const arm64AddrProg = `
.mem buf 8 RW
.data 8 0 0 0 0 0 0 0 0
.endmem

.fun _start 4
adrp x0, buf
add_x_imm x0, x0, buf
ret
.endfun
`

// TestAssembleArm64AddressPair drives the page-relative adrp plus the
// low-12 add fill-in over a data symbol.
func TestAssembleArm64AddressPair(t *testing.T) {
	data, err := Assemble(Arm64{}, strings.NewReader(arm64AddrProg))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	text := f.Section(".text")
	require.NotNil(t, text)
	raw, err := text.Data()
	require.NoError(t, err)
	require.Len(t, raw, 12)

	// The add instruction's imm12 field holds the low 12 bits of buf.
	dataSec := f.Section(".data")
	require.NotNil(t, dataSec)
	addWord := uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24
	require.Equal(t, uint32(dataSec.Addr&0xfff), addWord>>10&0xfff)
}

const arm32Prog = `
.fun _start 4
mov r0, 1
add_imm r0, r0, 1
lsl r0, r0, 2
bx lr
.endfun
`

func TestAssembleArm32Program(t *testing.T) {
	data, err := Assemble(Arm32{}, strings.NewReader(arm32Prog))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, elf.EM_ARM, f.Machine)
	require.Equal(t, elf.ELFCLASS32, f.Class)
	text := f.Section(".text")
	require.NotNil(t, text)
	raw, err := text.Data()
	require.NoError(t, err)
	require.Len(t, raw, 16)
	require.Equal(t, text.Addr, f.Entry)
}

const x64DataProg = `
.mem counter 8 RW
.data 4 1 2 3 4
.endmem

.fun _start 4
mov_32_oi eax, 42
ret
.endfun
`

func TestAssembleMemDirectives(t *testing.T) {
	data, err := Assemble(X64{}, strings.NewReader(x64DataProg))
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	sec := f.Section(".data")
	require.NotNil(t, sec)
	raw, err := sec.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, raw)
}

func TestLintRejectsUnknownDirective(t *testing.T) {
	err := Lint(X64{}, ".bogus foo\n")
	require.Error(t, err)
}

func TestLintRejectsInstructionOutsideFun(t *testing.T) {
	err := Lint(X64{}, "ret\n")
	require.Error(t, err)
}

func TestRenderListsSymbols(t *testing.T) {
	u := NewUnit(X64{})
	err := u.Parse(strings.NewReader(x64Prog))
	require.NoError(t, err)
	out, err := u.Render()
	require.NoError(t, err)
	require.Contains(t, out, "_start")
}
