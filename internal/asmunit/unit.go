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
	"fmt"

	"github.com/cwerg-go/cwerg/internal/elfwriter"
)

// parseMode tracks which block-scoped directive, if any, is currently
// open (the ".fun/.endfun" and ".mem|.localmem/.endmem" brackets).
type parseMode int

const (
	modeNone parseMode = iota
	modeFun
	modeMem
)

// pendingInstrReloc defers a PendingReloc's symbol lookup until after the
// whole unit has been parsed, since a forward reference (a branch to a
// block later in the same function, or to another function entirely) is
// legal and common.
type pendingInstrReloc struct {
	sec    *elfwriter.Section
	offset uint64
	symbol string
	addend int64
	typ    int
}

// Unit accumulates one compilation unit's assembler state:
// .text/.rodata/.data/.bss sections, a symbol table with local/global
// scope, and a relocation list tagged by ISA-specific type. It wraps an
// *elfwriter.Image — Unit owns
// the parse-time bookkeeping (current mode, current function/mem name);
// Image owns the sections/symbols/relocs/layout/emission.
type Unit struct {
	Arch  Arch
	Image *elfwriter.Image

	text   *elfwriter.Section
	rodata *elfwriter.Section
	data   *elfwriter.Section
	bss    *elfwriter.Section

	mode        parseMode
	curFunName  string
	curMemName  string
	curMemSec   *elfwriter.Section
	curMemLocal bool

	pendingRelocs []pendingInstrReloc

	// line is the 1-based source line currently being processed, carried
	// into every structural error.
	line int
}

// NewUnit creates an empty assembler unit for arch, with the four
// always-present sections pre-created.
func NewUnit(arch Arch) *Unit {
	im := elfwriter.NewImage(arch.Machine())
	u := &Unit{Arch: arch, Image: im}
	u.text = im.NewSection(".text", elfwriter.SHTProgBits, elfwriter.SHFAlloc|elfwriter.SHFExecInstr, arch.InstrAlign())
	u.rodata = im.NewSection(".rodata", elfwriter.SHTProgBits, elfwriter.SHFAlloc, 8)
	u.data = im.NewSection(".data", elfwriter.SHTProgBits, elfwriter.SHFAlloc|elfwriter.SHFWrite, 8)
	u.bss = im.NewSection(".bss", elfwriter.SHTNoBits, elfwriter.SHFAlloc|elfwriter.SHFWrite, 8)
	return u
}

func (u *Unit) errf(format string, args ...interface{}) error {
	return fmt.Errorf("line %d: "+format, append([]interface{}{u.line}, args...)...)
}

// defineSymbol registers name at sec's current write position, failing
// if name is already defined.
func (u *Unit) defineSymbol(name string, sec *elfwriter.Section, value uint64, bind elfwriter.SymBind, kind elfwriter.SymKind) error {
	if u.Image.Symbol(name) != nil {
		return u.errf("symbol %q redefined", name)
	}
	u.Image.NewSymbol(name, sec, value, bind, kind)
	return nil
}

// pointerWidth is the address size operand.addr.* directives reserve and
// relocate: 8 bytes for the two 64-bit ISAs, 4 for AArch32.
func (u *Unit) pointerWidth() int {
	if u.Image.Is64() {
		return 8
	}
	return 4
}
