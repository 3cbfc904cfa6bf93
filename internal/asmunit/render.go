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
	"strings"

	"github.com/klauspost/asmfmt"
)

// Lint parses src without assembling an ELF image, reporting the first
// structural error it finds.
func Lint(arch Arch, src string) error {
	u := NewUnit(arch)
	return u.Parse(strings.NewReader(src))
}

// Render re-emits a unit's defined symbols as a column-aligned listing,
// one line per symbol in definition order, passed through asmfmt for the
// usual assembly-listing alignment. This is a diagnostic view, not the
// textual form the assembler itself consumes.
func (u *Unit) Render() (string, error) {
	var b strings.Builder
	for _, sym := range u.Image.Symbols {
		secName := "-"
		if sym.Section != nil {
			secName = sym.Section.Name
		}
		fmt.Fprintf(&b, "\t%s\t%s+%#x\tsize=%#x\n", sym.Name, secName, sym.Value, sym.Size)
	}
	out, err := asmfmt.Format(strings.NewReader(b.String()))
	if err != nil {
		return "", fmt.Errorf("asmunit: rendering symbol table: %w", err)
	}
	return string(out), nil
}
