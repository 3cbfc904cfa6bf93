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
	"sort"

	"github.com/cwerg-go/cwerg/internal/ir"
)

// ComputeRegStatsExceptLAC recomputes every register's def/read statistics
// from scratch: DefIns/DefBbl point at the first write, MultiDef marks
// later writes, IsRead/MultiRead track reads, and Global marks any
// register whose defs span blocks, that is read outside its defining
// block, or that appears in some block's live-out set.
func ComputeRegStatsExceptLAC(fn *ir.Fun) {
	for _, r := range fn.Regs {
		r.DefIns = nil
		r.DefBbl = nil
		r.Flags &^= ir.RegMultiDef | ir.RegGlobal | ir.RegIsRead | ir.RegMultiRead
	}

	for _, b := range fn.Blocks {
		for _, in := range b.Instructions {
			for _, d := range in.Defs() {
				r := d.Reg
				if r.DefIns == nil {
					r.DefIns = in
					r.DefBbl = b
					continue
				}
				r.Flags |= ir.RegMultiDef
				if r.DefBbl != b {
					r.Flags |= ir.RegGlobal
				}
			}
			for _, u := range in.Uses() {
				r := u.Reg
				if r.Flags.Has(ir.RegIsRead) {
					r.Flags |= ir.RegMultiRead
				}
				r.Flags |= ir.RegIsRead
				if r.DefBbl != nil && r.DefBbl != b {
					r.Flags |= ir.RegGlobal
				}
			}
		}
	}

	for _, b := range fn.Blocks {
		if b.LiveOut == nil {
			continue
		}
		b.LiveOut.ForEach(func(r *ir.Reg) {
			r.Flags |= ir.RegGlobal
		})
	}
}

// ComputeRegStatsLAC walks each block in reverse carrying a running live
// set: every register live across a call instruction gains the LAC flag,
// and every register still live at block entry gains Global.
func ComputeRegStatsLAC(fn *ir.Fun) {
	for _, b := range fn.Blocks {
		live := toRegSet(b.LiveOut)
		for i := len(b.Instructions) - 1; i >= 0; i-- {
			in := b.Instructions[i]
			for _, d := range in.Defs() {
				live.Remove(d.Reg)
			}
			if in.Op.IsCall() {
				for r := range live {
					r.Flags |= ir.RegLAC
				}
			}
			for _, u := range in.Uses() {
				live.Add(u.Reg)
			}
		}
		for r := range live {
			r.Flags |= ir.RegGlobal
		}
	}
}

// SeparateLocalRegUsage splits every redefinition of a block-local
// register into a fresh scratch register of the same kind: the second
// def and all its reads up to the next def are renamed. This turns a
// reused name into independent short ranges so the pressure probe does
// not over-count. Registers that are Global, TwoAddress or already
// carry a CPU assignment are left alone. Returns the number of scratch
// registers introduced.
func SeparateLocalRegUsage(fn *ir.Fun) int {
	split := 0
	ir.RewriteBlocks(fn, func(b *ir.Bbl) bool {
		// rename maps an original register to its current in-block
		// replacement; defsSeen counts defs so only redefinitions split.
		rename := make(map[*ir.Reg]*ir.Reg)
		defsSeen := make(map[*ir.Reg]bool)
		changed := false

		for _, in := range b.Instructions {
			ndefs := in.Op.NumDefs()
			for idx := ndefs; idx < len(in.Operands); idx++ {
				ro, ok := in.Operands[idx].(ir.RegOperand)
				if !ok {
					continue
				}
				if repl := rename[ro.Reg]; repl != nil {
					in.Operands[idx] = ir.RegOperand{Reg: repl}
				}
			}
			for idx := 0; idx < ndefs && idx < len(in.Operands); idx++ {
				ro, ok := in.Operands[idx].(ir.RegOperand)
				if !ok {
					continue
				}
				r := ro.Reg
				if !defsSeen[r] {
					defsSeen[r] = true
					delete(rename, r)
					continue
				}
				if r.Flags.Has(ir.RegGlobal) || r.Flags.Has(ir.RegTwoAddress) || r.Assigned != nil {
					continue
				}
				scratch := fn.NewReg(fmt.Sprintf("%s.%d", r.Name, split), r.Kind)
				in.Operands[idx] = ir.RegOperand{Reg: scratch}
				rename[r] = scratch
				split++
				changed = true
			}
		}
		return changed
	})
	if split > 0 {
		fn.InvalidateLiveness()
	}
	return split
}

// regPool is the synthetic register supply the pressure probe allocates
// from: registers are manufactured on demand and recycled per
// (kind, LAC) class, so the number manufactured is the high-water mark
// of concurrent demand.
type regPool struct {
	available map[poolKey]int
	created   map[poolKey]int
}

type poolKey struct {
	kind ir.DataKind
	lac  bool
}

func newRegPool() *regPool {
	return &regPool{available: make(map[poolKey]int), created: make(map[poolKey]int)}
}

func (p *regPool) acquire(k poolKey) {
	if p.available[k] > 0 {
		p.available[k]--
		return
	}
	p.created[k]++
}

func (p *regPool) release(k poolKey) { p.available[k]++ }

// BblRegUsageStats is the per-block pressure summary from replaying the
// block's live ranges, where each (kind, LAC) class records the most
// registers of that class ever simultaneously live. LACByKind holds the
// LAC class's figure per kind; ByKind holds the sum of the LAC and
// non-LAC figures per kind.
type BblRegUsageStats struct {
	ByKind    map[ir.DataKind]int
	LACByKind map[ir.DataKind]int
}

// ComputeBblRegUsageStats replays a block's live ranges against a fresh
// regPool in canonical scan order: each def-LR acquires a pseudo register
// of its (kind, LAC) class at its start and releases it after its last
// use. The pool's manufacture count per class is the block's worst-case
// demand, the figure an allocator sizes its register file against.
func ComputeBblRegUsageStats(fn *ir.Fun, b *ir.Bbl, resolve CalleeResolver) *BblRegUsageStats {
	lrs := BuildLiveRanges(fn, b, resolve)
	defLRs := make([]*LiveRange, 0, len(lrs))
	for _, lr := range lrs {
		if !lr.IsUseRecord() && !lr.Flags.Has(LRIgnore) {
			defLRs = append(defLRs, lr)
		}
	}
	sortLiveRanges(defLRs)

	type event struct {
		pos     Pos
		acquire bool
		key     poolKey
	}
	events := make([]event, 0, 2*len(defLRs))
	for _, lr := range defLRs {
		k := poolKey{kind: lr.Reg.Kind, lac: lr.Flags.Has(LRLac)}
		events = append(events, event{lr.DefPos, true, k})
		events = append(events, event{lr.LastUsePos, false, k})
	}
	// Acquisitions sort before releases at the same position: the value
	// defined at an instruction coexists with the values it reads.
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].pos.Equal(events[j].pos) {
			return events[i].pos.Less(events[j].pos)
		}
		return events[i].acquire && !events[j].acquire
	})

	pool := newRegPool()
	for _, e := range events {
		if e.acquire {
			pool.acquire(e.key)
		} else {
			pool.release(e.key)
		}
	}

	stats := &BblRegUsageStats{ByKind: make(map[ir.DataKind]int), LACByKind: make(map[ir.DataKind]int)}
	for k, n := range pool.created {
		if k.lac {
			stats.LACByKind[k.kind] += n
		}
		stats.ByKind[k.kind] += n
	}
	return stats
}

// RegPressureReport is the per-function rollup of the per-block pressure
// probe: worst-case concurrent demand per kind plus the count of
// registers already sent to stack slots. This is the hand-off artifact a
// register allocator consumes next.
type RegPressureReport struct {
	MaxByKind    map[ir.DataKind]int
	MaxLACByKind map[ir.DataKind]int
	SpillCount   int
}

func ComputeRegPressureReport(fn *ir.Fun, resolve CalleeResolver) *RegPressureReport {
	report := &RegPressureReport{MaxByKind: make(map[ir.DataKind]int), MaxLACByKind: make(map[ir.DataKind]int)}
	for _, b := range fn.Blocks {
		stats := ComputeBblRegUsageStats(fn, b, resolve)
		for k, v := range stats.ByKind {
			if v > report.MaxByKind[k] {
				report.MaxByKind[k] = v
			}
		}
		for k, v := range stats.LACByKind {
			if v > report.MaxLACByKind[k] {
				report.MaxLACByKind[k] = v
			}
		}
	}
	for _, r := range fn.Regs {
		if r.Flags.Has(ir.RegSpilled) {
			report.SpillCount++
		}
	}
	return report
}
