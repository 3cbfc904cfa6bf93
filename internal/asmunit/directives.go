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
	"strconv"

	"github.com/cwerg-go/cwerg/internal/elfwriter"
)

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

// handleDirective dispatches one directive line.
func (u *Unit) handleDirective(name string, args []string) error {
	switch name {
	case ".fun":
		return u.directiveFun(args)
	case ".endfun":
		return u.directiveEndfun(args)
	case ".bbl":
		return u.directiveBbl(args)
	case ".mem":
		return u.directiveMem(args, false)
	case ".localmem":
		return u.directiveMem(args, true)
	case ".endmem":
		return u.directiveEndmem(args)
	case ".data":
		return u.directiveData(args)
	case ".addr.fun", ".addr.bbl", ".addr.mem":
		return u.directiveAddr(name, args)
	default:
		return u.errf("unknown directive %q", name)
	}
}

func (u *Unit) directiveFun(args []string) error {
	if u.mode != modeNone {
		return u.errf(".fun nested inside an open .fun/.mem block")
	}
	if len(args) != 2 {
		return u.errf(".fun wants <name> <align>, got %d args", len(args))
	}
	align, err := parseUint(args[1])
	if err != nil {
		return u.errf(".fun alignment: %w", err)
	}
	off := alignUp(uint64(len(u.text.Bytes())), align)
	for uint64(len(u.text.Bytes())) < off {
		u.text.Append([]byte{0})
	}
	if err := u.defineSymbol(args[0], u.text, off, elfwriter.SymGlobal, elfwriter.SymFunc); err != nil {
		return err
	}
	u.mode = modeFun
	u.curFunName = args[0]
	return nil
}

func (u *Unit) directiveEndfun(args []string) error {
	if u.mode != modeFun {
		return u.errf(".endfun without a matching .fun")
	}
	if len(args) != 0 {
		return u.errf(".endfun takes no arguments")
	}
	u.mode = modeNone
	u.curFunName = ""
	return nil
}

func (u *Unit) directiveBbl(args []string) error {
	if u.mode != modeFun {
		return u.errf(".bbl outside a .fun/.endfun block")
	}
	if len(args) != 2 {
		return u.errf(".bbl wants <name> <align>, got %d args", len(args))
	}
	align, err := parseUint(args[1])
	if err != nil {
		return u.errf(".bbl alignment: %w", err)
	}
	off := alignUp(uint64(len(u.text.Bytes())), align)
	for uint64(len(u.text.Bytes())) < off {
		u.text.Append([]byte{0})
	}
	return u.defineSymbol(args[0], u.text, off, elfwriter.SymLocal, elfwriter.SymNoType)
}

func (u *Unit) directiveMem(args []string, local bool) error {
	if u.mode != modeNone {
		return u.errf(".mem/.localmem nested inside an open .fun/.mem block")
	}
	var name, alignStr, rw string
	switch {
	case local && len(args) == 2:
		name, alignStr, rw = args[0], args[1], "RW"
	case !local && len(args) == 3:
		name, alignStr, rw = args[0], args[1], args[2]
	default:
		return u.errf(".mem/.localmem argument count mismatch")
	}
	align, err := parseUint(alignStr)
	if err != nil {
		return u.errf(".mem alignment: %w", err)
	}

	sec := u.rodata
	if rw == "RW" {
		sec = u.data
	} else if rw != "RO" {
		return u.errf(".mem scope must be RO or RW, got %q", rw)
	}

	off := alignUp(uint64(len(sec.Bytes())), align)
	for uint64(len(sec.Bytes())) < off {
		sec.Append([]byte{0})
	}
	bind := elfwriter.SymGlobal
	if local {
		bind = elfwriter.SymLocal
	}
	if err := u.defineSymbol(name, sec, off, bind, elfwriter.SymObject); err != nil {
		return err
	}
	u.mode = modeMem
	u.curMemName = name
	u.curMemSec = sec
	u.curMemLocal = local
	return nil
}

func (u *Unit) directiveEndmem(args []string) error {
	if u.mode != modeMem {
		return u.errf(".endmem without a matching .mem/.localmem")
	}
	if len(args) != 0 {
		return u.errf(".endmem takes no arguments")
	}
	sym := u.Image.Symbol(u.curMemName)
	sym.Size = uint64(len(u.curMemSec.Bytes())) - sym.Value
	u.mode = modeNone
	u.curMemName = ""
	u.curMemSec = nil
	return nil
}

func (u *Unit) directiveData(args []string) error {
	if u.mode != modeMem {
		return u.errf(".data outside a .mem/.localmem block")
	}
	if len(args) < 1 {
		return u.errf(".data wants <size> [bytes...]")
	}
	size, err := parseUint(args[0])
	if err != nil {
		return u.errf(".data size: %w", err)
	}
	vals := args[1:]
	if uint64(len(vals)) != size {
		return u.errf(".data declares size %d but lists %d byte values", size, len(vals))
	}
	buf := make([]byte, size)
	for i, v := range vals {
		n, err := parseUint(v)
		if err != nil || n > 0xff {
			return u.errf(".data byte %d: invalid byte value %q", i, v)
		}
		buf[i] = byte(n)
	}
	u.curMemSec.Append(buf)
	return nil
}

func (u *Unit) directiveAddr(name string, args []string) error {
	if u.mode != modeMem {
		return u.errf("%s outside a .mem/.localmem block", name)
	}
	if len(args) != 1 {
		return u.errf("%s wants exactly one symbol name", name)
	}
	width := u.pointerWidth()
	off := u.curMemSec.Append(make([]byte, width))
	typ := u.Arch.AbsRelocType(width)
	u.pendingRelocs = append(u.pendingRelocs, pendingInstrReloc{
		sec: u.curMemSec, offset: off, symbol: args[0], typ: typ,
	})
	return nil
}
