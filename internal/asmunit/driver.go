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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cwerg-go/cwerg/internal/elfwriter"
	"github.com/cwerg-go/cwerg/internal/util"
)

// Parse runs the line-oriented parse over src, driving directive
// handling and instruction assembly. It does not resolve symbols, lay out
// sections or apply relocations — that is Assemble's job once the whole
// stream has been consumed, since forward references are legal.
func (u *Unit) Parse(src io.Reader) error {
	scanner := bufio.NewScanner(src)
	u.line = 0
	for scanner.Scan() {
		u.line++
		raw := scanner.Text()
		if idx := strings.IndexByte(raw, '#'); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := u.parseLine(raw); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("line %d: read error: %w", u.line, err)
	}
	if u.mode != modeNone {
		return u.errf("unterminated .fun or .mem block at end of input")
	}
	return nil
}

func (u *Unit) parseLine(line string) error {
	head, rest, _ := strings.Cut(line, " ")
	head = strings.TrimSpace(head)
	if head == "" {
		return nil
	}
	if strings.HasPrefix(head, ".") {
		args := strings.Fields(rest)
		return u.handleDirective(head, args)
	}
	return u.parseInstruction(head, strings.TrimSpace(rest))
}

// parseInstruction encodes one mnemonic-plus-operands line: any
// non-directive token is an opcode mnemonic followed by symbolic
// operands. Operands referencing a not-yet-seen label are resolved later,
// in Assemble's relocation pass, so encoding never fails merely because a
// forward reference hasn't been defined yet.
func (u *Unit) parseInstruction(mnemonic, operandStr string) error {
	if u.mode != modeFun {
		return u.errf("instruction %q outside a .fun/.endfun block", mnemonic)
	}
	var tokens []Token
	for _, raw := range splitOperands(operandStr) {
		if raw == "" {
			continue
		}
		tokens = append(tokens, parseToken(raw))
	}

	pc := uint64(len(u.text.Bytes()))
	result, err := u.Arch.Encode(mnemonic, tokens, pc)
	if err != nil {
		return u.errf("%s: %w", mnemonic, err)
	}

	base := u.text.Append(result.Bytes)
	for _, r := range result.Relocs {
		u.pendingRelocs = append(u.pendingRelocs, pendingInstrReloc{
			sec: u.text, offset: base + uint64(r.Offset), symbol: r.Symbol, addend: r.Addend, typ: r.Type,
		})
	}
	return nil
}

// Assemble drives the full pipeline: parse, resolve symbols, lay
// out sections and segments, patch every relocation, and return the
// finished ELF image bytes.
func Assemble(arch Arch, src io.Reader) ([]byte, error) {
	u := NewUnit(arch)
	if err := u.Parse(src); err != nil {
		return nil, err
	}
	if err := u.resolveAndLayout(); err != nil {
		return nil, err
	}
	util.Log.Debugw("unit laid out",
		"arch", arch.Name(),
		"text", u.text.Size(),
		"symbols", len(u.Image.Symbols),
		"relocs", len(u.Image.Relocs))
	return u.Image.Bytes()
}

// resolveAndLayout resolves every pending relocation's symbol, lays out
// the image, and patches relocations in place — in that order, since
// patching needs final (post-Layout) addresses.
func (u *Unit) resolveAndLayout() error {
	for _, r := range u.pendingRelocs {
		sym := u.Image.Symbol(r.symbol)
		if sym == nil {
			return fmt.Errorf("undefined symbol %q", r.symbol)
		}
		u.Image.AddReloc(r.sec, r.offset, sym, r.addend, r.typ)
	}
	if err := u.Image.Layout(); err != nil {
		return err
	}
	return u.Image.ApplyRelocs(func(r *elfwriter.Reloc, data []byte, pc uint64, symVal uint64) error {
		// Every relocated instruction field is 4 bytes wide; only a 64-bit
		// absolute slot (.addr.* or an x86-64 imm64) is 8.
		width := uint64(4)
		if u.pointerWidth() == 8 && r.Type == u.Arch.AbsRelocType(8) {
			width = 8
		}
		return u.Arch.ApplyReloc(r.Type, data[r.Offset:r.Offset+width], pc, symVal, r.Addend)
	})
}
