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
	"fmt"

	"github.com/cwerg-go/cwerg/internal/ir"
	"github.com/cwerg-go/cwerg/internal/util"
)

// CalleeResolver looks up the call contract of the function named by a
// call instruction's callee operand. A nil return means "unknown callee",
// treated as contributing nothing extra to liveness.
type CalleeResolver func(calleeName string) *ir.CallContract

// CalleeName extracts the callee symbol from a call instruction's operand
// vector — by convention the callee is the instruction's sole FuncRef
// operand.
func CalleeName(in *ir.Instruction) (string, bool) {
	for _, o := range in.Operands {
		if f, ok := o.(ir.FuncRef); ok {
			return f.Name, true
		}
	}
	return "", false
}

// Result carries the fixpoint's diagnostics: the number of worklist
// iterations it took to converge.
type Result struct {
	Iterations int
}

// defUse computes a block's local def/use sets: a reverse walk
// where an operand at index < NumDefs is a definition (added to def,
// removed from use), otherwise a use. Call instructions additionally
// define every register whose assigned CPU register appears in the
// callee's cpu_live_out.
func defUse(fn *ir.Fun, b *ir.Bbl, resolve CalleeResolver) (def, use RegSet) {
	def, use = NewRegSet(), NewRegSet()
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		in := b.Instructions[i]

		if in.Op.IsCall() && resolve != nil {
			if name, ok := CalleeName(in); ok {
				if contract := resolve(name); contract != nil {
					applyCalleeLiveOut(fn, contract, def, use)
				}
			}
		}

		ndefs := in.Op.NumDefs()
		for idx, o := range in.Operands {
			ro, ok := o.(ir.RegOperand)
			if !ok || ro.Reg == ir.InvalidReg {
				continue
			}
			if idx < ndefs {
				def.Add(ro.Reg)
				use.Remove(ro.Reg)
			} else {
				use.Add(ro.Reg)
			}
		}
	}
	return def, use
}

// applyCalleeLiveOut implements the call-site special case: every
// virtual register in fn's dictionary that is already assigned a CPU
// register appearing in the callee's cpu_live_out behaves, at this call
// site, as though it were a def operand of the call.
func applyCalleeLiveOut(fn *ir.Fun, contract *ir.CallContract, def, use RegSet) {
	for _, r := range fn.Regs {
		if r.Assigned == nil {
			continue
		}
		for _, cr := range contract.CpuLiveOut {
			if cr == r.Assigned {
				def.Add(r)
				use.Remove(r)
				break
			}
		}
	}
}

// Compute runs the backward-dataflow liveness fixpoint over fn,
// populating every block's LiveOut (reset to empty first) and setting
// FunLivenessValid. The worklist starts with every block enqueued; when a
// block's live_in grows after recomputation, it is unioned into each
// predecessor's live_out, and a predecessor whose live_out grew is
// re-enqueued. Convergence is guaranteed because every update is
// monotone (union-only) in set size; the result is the least fixed point
// regardless of pop order.
func Compute(fn *ir.Fun, resolve CalleeResolver) *Result {
	defs := make(map[*ir.Bbl]RegSet, len(fn.Blocks))
	uses := make(map[*ir.Bbl]RegSet, len(fn.Blocks))
	liveIn := make(map[*ir.Bbl]RegSet, len(fn.Blocks))

	for _, b := range fn.Blocks {
		d, u := defUse(fn, b, resolve)
		defs[b] = d
		uses[b] = u
		liveIn[b] = NewRegSet()
		b.LiveOut = util.NewSet[*ir.Reg]()
	}

	worklist := make([]*ir.Bbl, len(fn.Blocks))
	copy(worklist, fn.Blocks)
	queued := make(map[*ir.Bbl]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		queued[b] = true
	}

	iterations := 0
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		queued[b] = false
		iterations++

		liveOut := toRegSet(b.LiveOut)
		newLiveIn := liveOut.Minus(defs[b]).Union(uses[b])

		if newLiveIn.Equal(liveIn[b]) {
			continue
		}
		liveIn[b] = newLiveIn

		for _, p := range b.Preds {
			grew := false
			for r := range newLiveIn {
				if !p.LiveOut.Contains(r) {
					p.LiveOut.Add(r)
					grew = true
				}
			}
			if grew && !queued[p] {
				worklist = append(worklist, p)
				queued[p] = true
			}
		}
	}

	fn.SetFlag(ir.FunLivenessValid)
	return &Result{Iterations: iterations}
}

// Soundness checks that for every block and every successor,
// live_in(successor) is a subset of live_out(block). Compute must have
// run first; the check itself only reads already-computed sets.
func Soundness(fn *ir.Fun, resolve CalleeResolver) error {
	for _, b := range fn.Blocks {
		for _, s := range b.Succs {
			_, use := defUse(fn, s, resolve)
			liveOutS := toRegSet(s.LiveOut)
			liveInS := liveOutS.Minus(mustDef(fn, s, resolve)).Union(use)
			for r := range liveInS {
				if !b.LiveOut.Contains(r) {
					return fmt.Errorf("unsound liveness: %s live-in to %q not in live-out of %q", r.Name, s.Name, b.Name)
				}
			}
		}
	}
	return nil
}

func mustDef(fn *ir.Fun, b *ir.Bbl, resolve CalleeResolver) RegSet {
	d, _ := defUse(fn, b, resolve)
	return d
}
