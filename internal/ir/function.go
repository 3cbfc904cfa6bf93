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

// FunFlags is the bitset of per-function flags, notably
// FunLivenessValid which gates dead-code elimination.
type FunFlags uint8

const (
	FunLivenessValid FunFlags = 1 << iota
)

func (f FunFlags) Has(bit FunFlags) bool { return f&bit != 0 }

// CallContract records a function's CPU register behavior at the point
// it is called, as seen by its callers: which CPU registers are expected
// live on entry, which are live on return, and which are clobbered.
//
// Only CpuLiveOut is consulted by the backward liveness pass. CpuLiveIn
// and CpuClobber are recorded for live-range construction and for a
// future post-regalloc pass, but are never merged into block-level
// live/use sets — when exactly callee clobbers kill liveness is left to
// passes that run after register allocation.
type CallContract struct {
	CpuLiveIn  []*CpuReg
	CpuLiveOut []*CpuReg
	CpuClobber []*CpuReg
}

// Fun is a function: a name, parameter/result kinds, ordered basic
// blocks (the first is the entry block), a register dictionary, and the
// precomputed call contract used when this function appears as a callee
// at a call site in some other function.
type Fun struct {
	Name string

	ParamKinds  []DataKind
	ResultKinds []DataKind

	Blocks []*Bbl

	// Regs is the register dictionary: every Reg belonging to this
	// function, keyed by name.
	Regs map[string]*Reg

	Contract CallContract

	Flags FunFlags

	nextInstrId int
}

func NewFun(name string) *Fun {
	return &Fun{
		Name: name,
		Regs: make(map[string]*Reg),
	}
}

func (f *Fun) Entry() *Bbl {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewReg creates and registers a fresh virtual register of the given kind.
// Used both by the frontend's IR builder (external, via this contract)
// and by SeparateLocalRegUsage when splitting a global-looking register
// into per-block locals.
func (f *Fun) NewReg(name string, kind DataKind) *Reg {
	r := &Reg{Name: name, Kind: kind}
	f.Regs[name] = r
	return r
}

// NewInstr allocates an Instruction with the next dense id in this
// function and appends it to block b.
func (f *Fun) NewInstr(b *Bbl, op Opcode, operands ...Operand) *Instruction {
	in := &Instruction{Op: op, Operands: operands, Id: f.nextInstrId}
	f.nextInstrId++
	b.AddInstr(in)
	return in
}

func (f *Fun) SetFlag(bit FunFlags)   { f.Flags |= bit }
func (f *Fun) ClearFlag(bit FunFlags) { f.Flags &^= bit }

// InvalidateLiveness must be called by any rewrite that changes defs/uses
// or the CFG shape; consumers that require FunLivenessValid will panic
// via util.Assert otherwise.
func (f *Fun) InvalidateLiveness() {
	f.ClearFlag(FunLivenessValid)
}
