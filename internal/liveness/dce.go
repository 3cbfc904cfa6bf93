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
package liveness

import (
	"github.com/cwerg-go/cwerg/internal/ir"
	"github.com/cwerg-go/cwerg/internal/util"
)

// EliminateDeadCode walks each block in reverse with a working live_out;
// an instruction is kept iff it has a side effect or at least one of its
// defined registers is live. Requires FunLivenessValid — callers must
// recompute liveness via Compute after any rewrite that invalidated it.
// Returns the total number of instructions removed across the function.
func EliminateDeadCode(fn *ir.Fun) int {
	util.Assert(fn.Flags.Has(ir.FunLivenessValid), "EliminateDeadCode requires valid liveness on %q", fn.Name)

	removed := 0
	ir.RewriteBlocks(fn, func(b *ir.Bbl) bool {
		live := toRegSet(b.LiveOut)
		kept := make([]*ir.Instruction, 0, len(b.Instructions))
		changedHere := false

		// Walk in reverse, then re-reverse the kept slice to restore order.
		for i := len(b.Instructions) - 1; i >= 0; i-- {
			in := b.Instructions[i]
			isLive := in.Op.HasSideEffect()
			if !isLive {
				for _, d := range in.Defs() {
					if live.Contains(d.Reg) {
						isLive = true
						break
					}
				}
			}

			for _, d := range in.Defs() {
				live.Remove(d.Reg)
			}
			if isLive {
				for _, u := range in.Uses() {
					live.Add(u.Reg)
				}
				kept = append(kept, in)
			} else {
				removed++
				changedHere = true
			}
		}

		if changedHere {
			for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
				kept[i], kept[j] = kept[j], kept[i]
			}
			b.Instructions = kept
		}
		return changedHere
	})

	if removed > 0 {
		fn.InvalidateLiveness()
	}
	return removed
}
