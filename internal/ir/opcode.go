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

// Opcode is the contract every ISA package's concrete opcode type must
// satisfy so the IR core, liveness and live-range passes stay
// ISA-agnostic.
type Opcode interface {
	// Name is the canonical mnemonic, e.g. "add_x_imm" or "mov_mr".
	Name() string
	// NumDefs is the count of defined operands: 0 or 1. Defs always
	// precede uses in an Instruction's operand vector.
	NumDefs() int
	// IsCall reports whether this opcode transfers control to a callee
	// and returns, i.e. participates in the call-site liveness rule.
	IsCall() bool
	// IsReturn reports whether this opcode is a function return, which
	// live-range construction treats as a pseudo-call against the
	// function's own CPU live-out set.
	IsReturn() bool
	// HasSideEffect reports whether the instruction must be kept by dead
	// code elimination regardless of whether its defs are live: stores,
	// traps, calls, control flow.
	HasSideEffect() bool
}

// GenericOpcode is a minimal Opcode implementation shared by tests and by
// any caller that doesn't need a full ISA-specific opcode (e.g. the
// assembler unit's directive handling). Concrete ISA opcodes
// (isaarm32.Opcode, isaarm64.Opcode, isax64.Opcode) implement the same
// interface directly instead of embedding this type, since their opcode
// identity also carries encoding metadata.
type GenericOpcode struct {
	OpName     string
	Defs       int
	Call       bool
	Return     bool
	SideEffect bool
}

func (g GenericOpcode) Name() string       { return g.OpName }
func (g GenericOpcode) NumDefs() int       { return g.Defs }
func (g GenericOpcode) IsCall() bool       { return g.Call }
func (g GenericOpcode) IsReturn() bool     { return g.Return }
func (g GenericOpcode) HasSideEffect() bool { return g.SideEffect || g.Call || g.Return }
