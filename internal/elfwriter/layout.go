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

import "debug/elf"

// segmentClass is the four-way segment split: one executable, one
// read-only, one read-write, one pseudo (non-loaded) group for
// .symtab/.strtab/.shstrtab.
type segmentClass int

const (
	segExec segmentClass = iota
	segRO
	segRW
	segPseudo
	numSegmentClasses
)

// PageAlign is the section/segment alignment granularity: 64 KiB covers
// the largest page size any of the three targets uses.
const PageAlign = 0x10000

// baseAddr is the static load address of the image. Non-PIE static
// executables on every target ISA this writer supports conventionally
// start here, and with no position-independent output a single fixed
// base serves all three ISAs.
const baseAddr = 0x400000

func classOf(s *Section) segmentClass {
	switch s.Type {
	case SHTSymTab, SHTStrTab:
		return segPseudo
	}
	if !s.Flags.Has(SHFAlloc) {
		return segPseudo
	}
	if s.Flags.Has(SHFExecInstr) {
		return segExec
	}
	if s.Flags.Has(SHFWrite) {
		return segRW
	}
	return segRO
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Layout assigns every section's Addr/Offset, grouping sections into the
// ≤4 segment classes in EXEC, RO, RW, PSEUDO order and packing each
// class's sections back to back. baseAddr is chosen so that vaddr and file
// offset stay congruent mod PageAlign for every section without needing a
// per-segment re-derivation (vaddr = baseAddr + offset, and baseAddr is
// itself a PageAlign multiple). The ELF header and program header table
// are reserved at the very front of the first non-empty loadable class so
// they are covered by that class's segment, the conventional placement for
// a minimal static executable.
//
// PSEUDO-class sections (.symtab/.strtab/.shstrtab) are not SHF_ALLOC: they
// get a file Offset for the section header table to point at, but no
// virtual address and no covering program header, since nothing loads
// them at runtime.
func (im *Image) Layout() error {
	byClass := make([][]*Section, numSegmentClasses)
	for _, s := range im.Sections {
		c := classOf(s)
		byClass[c] = append(byClass[c], s)
	}

	numLoadSegs := 0
	for c := segExec; c <= segRW; c++ {
		if len(byClass[c]) > 0 {
			numLoadSegs++
		}
	}
	headerSize := uint64(elfHeaderSize + numLoadSegs*progHeaderSize)

	var offset uint64
	firstLoadablePlaced := false
	for c := segExec; c < numSegmentClasses; c++ {
		secs := byClass[c]
		if len(secs) == 0 {
			continue
		}
		if c != segPseudo {
			offset = alignUp(offset, PageAlign)
		}
		if c != segPseudo && !firstLoadablePlaced {
			offset += headerSize
			firstLoadablePlaced = true
		}
		for _, s := range secs {
			offset = alignUp(offset, s.Align)
			s.Offset = offset
			if c == segPseudo {
				s.Addr = 0
			} else {
				s.Addr = baseAddr + offset
			}
			offset += s.Size()
		}
	}

	for _, sym := range im.Symbols {
		if sym.Section != nil {
			sym.Value = sym.Section.Addr + sym.Value
		}
	}

	im.nextOffset = offset
	im.laidOut = true
	return nil
}

// segments returns the ≤3 loadable PT_LOAD descriptions, in EXEC/RO/RW
// order, built from the sections Layout already placed.
func (im *Image) segments() []progHeader {
	byClass := make([][]*Section, numSegmentClasses)
	for _, s := range im.Sections {
		byClass[classOf(s)] = append(byClass[classOf(s)], s)
	}

	var out []progHeader
	firstLoadableSeen := false
	for c := segExec; c <= segRW; c++ {
		secs := byClass[c]
		if len(secs) == 0 {
			continue
		}
		lo, hi := secs[0].Offset, secs[0].Offset
		// The first loadable segment's range must also cover the ELF/
		// program headers Layout reserved in front of it.
		if !firstLoadableSeen {
			lo = 0
			firstLoadableSeen = true
		}
		for _, s := range secs {
			if s.Offset < lo {
				lo = s.Offset
			}
			if end := s.Offset + s.Size(); end > hi {
				hi = end
			}
		}
		flags := elf.PF_R
		switch c {
		case segExec:
			flags |= elf.PF_X
		case segRW:
			flags |= elf.PF_W
		}
		out = append(out, progHeader{
			offset: lo,
			vaddr:  baseAddr + lo,
			size:   hi - lo,
			flags:  flags,
		})
	}
	return out
}

type progHeader struct {
	offset uint64
	vaddr  uint64
	size   uint64
	flags  elf.ProgFlag
}
