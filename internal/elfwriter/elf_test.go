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
package elfwriter

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEntryPointAddress checks that an image whose text section holds a
// single ret with a _start label produces an ELF whose e_entry equals
// the load address of that byte.
func TestEntryPointAddress(t *testing.T) {
	im := NewImage(elf.EM_X86_64)
	text := im.NewSection(".text", SHTProgBits, SHFAlloc|SHFExecInstr, 16)
	off := text.Append([]byte{0xC3}) // ret
	im.NewSymbol("_start", text, off, SymGlobal, SymFunc)

	require.NoError(t, im.Layout())

	data, err := im.Bytes()
	require.NoError(t, err)

	f, err := elf.NewFile(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, elf.ET_EXEC, f.Type)
	require.Equal(t, elf.EM_X86_64, f.Machine)
	require.Equal(t, text.Addr+off, f.Entry)

	sec := f.Section(".text")
	require.NotNil(t, sec)
	raw, err := sec.Data()
	require.NoError(t, err)
	require.Equal(t, []byte{0xC3}, raw)
}

func TestMissingStartIsFatal(t *testing.T) {
	im := NewImage(elf.EM_X86_64)
	im.NewSection(".text", SHTProgBits, SHFAlloc|SHFExecInstr, 16)
	require.NoError(t, im.Layout())
	_, err := im.Bytes()
	require.Error(t, err)
}

func TestAArch32Is32Bit(t *testing.T) {
	im := NewImage(elf.EM_ARM)
	require.False(t, im.Is64())
	im64 := NewImage(elf.EM_AARCH64)
	require.True(t, im64.Is64())
}
