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

// RewriteBlocks runs f once per block of fn, in block order, accumulating
// the number of blocks f reported a change for. This is the generic
// block-rewrite combinator used by dead-code elimination, local register
// renaming (SeparateLocalRegUsage) and spill insertion. Callers
// whose rewrite invalidates liveness must call fn.InvalidateLiveness()
// themselves — RewriteBlocks has no opinion on that.
func RewriteBlocks(fn *Fun, f func(*Bbl) bool) int {
	changed := 0
	for _, b := range fn.Blocks {
		if f(b) {
			changed++
		}
	}
	return changed
}

// SpillSlotOperand addresses a spilled register's stack slot.
type SpillSlotOperand struct {
	Reg *Reg
}

func (SpillSlotOperand) isOperand()          {}
func (s SpillSlotOperand) String() string    { return "slot(" + s.Reg.Name + ")" }

// spillLoadOpcode/spillStoreOpcode are architecture-neutral placeholders
// standing in for "load virtual register's value from its spill slot" /
// "store virtual register's value to its spill slot". A lowering pass
// downstream (per ISA) rewrites these into the target's real load/store
// instruction; this package only needs their def/use shape to keep the
// spill helper ISA-agnostic.
var spillLoadOpcode = GenericOpcode{OpName: "spill.load", Defs: 1}
var spillStoreOpcode = GenericOpcode{OpName: "spill.store", Defs: 0, SideEffect: true}

// SpillInsert splits instruction at index idx of block b into a lead of
// loads, the original instruction, and a tail of stores: every
// operand flagged RegSpilled that is a def gets a trailing store into its
// stack slot; every such operand that is a use gets a leading load from
// the slot. The original instruction's operands are left referencing the
// same (spilled) Reg — a downstream lowering pass is expected to replace
// spilled operands with a scratch register, but the load/store pair
// around the instruction is this pass's full responsibility.
func SpillInsert(fn *Fun, b *Bbl, idx int) {
	in := b.Instructions[idx]
	var lead, tail []*Instruction

	for _, u := range in.Uses() {
		if u.Reg.Flags.Has(RegSpilled) {
			lead = append(lead, &Instruction{
				Op:       spillLoadOpcode,
				Operands: []Operand{RegOperand{u.Reg}, SpillSlotOperand{u.Reg}},
				Id:       -1,
			})
		}
	}
	for _, d := range in.Defs() {
		if d.Reg.Flags.Has(RegSpilled) {
			tail = append(tail, &Instruction{
				Op:       spillStoreOpcode,
				Operands: []Operand{SpillSlotOperand{d.Reg}, RegOperand{d.Reg}},
				Id:       -1,
			})
		}
	}

	if len(lead) == 0 && len(tail) == 0 {
		return
	}

	out := make([]*Instruction, 0, len(b.Instructions)+len(lead)+len(tail))
	out = append(out, b.Instructions[:idx]...)
	out = append(out, lead...)
	out = append(out, in)
	out = append(out, tail...)
	out = append(out, b.Instructions[idx+1:]...)
	b.Instructions = out
}
