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

import "github.com/cwerg-go/cwerg/internal/util"

// Bbl is a basic block: a name, a mutable ordered instruction list,
// CFG edges, and a persisted live_out set computed by the liveness pass.
type Bbl struct {
	Name string

	Instructions []*Instruction

	Preds []*Bbl
	Succs []*Bbl

	// LiveOut is populated by liveness.Compute and consumed by live-range
	// construction and register-stats. Nil until liveness has run at
	// least once.
	LiveOut *util.Set[*Reg]
}

func NewBbl(name string) *Bbl {
	return &Bbl{Name: name}
}

func (b *Bbl) AddInstr(in *Instruction) {
	b.Instructions = append(b.Instructions, in)
}

// AddEdge records a fall-through/branch edge from b to succ.
func AddEdge(b, succ *Bbl) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}

// HasControlFlow reports whether the block's last instruction is a call,
// return, or jump. Every block except unreachable ones must have at
// least one outgoing edge or end in a control-flow instruction.
func (b *Bbl) HasControlFlow() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	last := b.Instructions[len(b.Instructions)-1]
	return last.Op.IsCall() || last.Op.IsReturn() || last.Op.HasSideEffect() && len(b.Succs) == 0
}
