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
package ir

import "fmt"

// Operand is any value an Instruction can reference: a register, an
// immediate, a label, a function symbol or a basic-block reference.
type Operand interface {
	fmt.Stringer
	isOperand()
}

// RegOperand wraps a *Reg so it satisfies Operand; the liveness and
// live-range passes test for this concrete type to find register uses/defs.
type RegOperand struct{ Reg *Reg }

func (RegOperand) isOperand()          {}
func (o RegOperand) String() string    { return o.Reg.String() }

// Imm is a constant operand.
type Imm struct {
	Kind  DataKind
	Value int64
}

func (Imm) isOperand()       {}
func (i Imm) String() string { return fmt.Sprintf("%d", i.Value) }

// Label names a jump target that is not yet a resolved block reference
// (used by the textual assembler before blocks are wired up).
type Label struct{ Name string }

func (Label) isOperand()       {}
func (l Label) String() string { return l.Name }

// FuncRef names a called or referenced function symbol.
type FuncRef struct{ Name string }

func (FuncRef) isOperand()       {}
func (f FuncRef) String() string { return f.Name }

// BlockRef is a resolved reference to a basic block, used by control-flow
// operands (branch targets) once the CFG has been wired up.
type BlockRef struct{ Block *Bbl }

func (BlockRef) isOperand()       {}
func (b BlockRef) String() string { return b.Block.Name }

// Instruction is an opcode plus its ordered operand vector. Operands at
// index < Opcode.NumDefs() are definitions; the rest are uses.
type Instruction struct {
	Op       Opcode
	Operands []Operand

	// Id is a dense, function-unique, monotonically-increasing instruction
	// index assigned at construction time, used by live-range and
	// register-stats passes as a total-order position key.
	Id int

	Comment string
}

// Defs returns the instruction's defined operands as RegOperand (an
// operand kind at a def position that is not a register is a contract
// violation — the caller is responsible for using register-kind defs
// only).
func (in *Instruction) Defs() []*RegOperand {
	n := in.Op.NumDefs()
	out := make([]*RegOperand, 0, n)
	for i := 0; i < n && i < len(in.Operands); i++ {
		if r, ok := in.Operands[i].(RegOperand); ok {
			out = append(out, &r)
		}
	}
	return out
}

// Uses returns the instruction's use operands that are registers.
func (in *Instruction) Uses() []*RegOperand {
	n := in.Op.NumDefs()
	var out []*RegOperand
	for i := n; i < len(in.Operands); i++ {
		if r, ok := in.Operands[i].(RegOperand); ok {
			out = append(out, &r)
		}
	}
	return out
}

func (in *Instruction) String() string {
	s := in.Op.Name()
	for i, o := range in.Operands {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += o.String()
	}
	if in.Comment != "" {
		s += " # " + in.Comment
	}
	return s
}
