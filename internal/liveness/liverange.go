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
	"strconv"
	"strings"

	"github.com/cwerg-go/cwerg/internal/ir"
)

// LRFlags is the live-range flag set.
type LRFlags uint8

const (
	// LRLac marks a live range that spans a call instruction: the register
	// must survive the callee's clobber set (live-across-call).
	LRLac LRFlags = 1 << iota
	// LRPreAlloc marks a live range whose register already carries a CPU
	// assignment when the range is built (e.g. a fixed calling-convention
	// register), rather than one regalloc is still free to choose for.
	LRPreAlloc
	// LRIgnore marks a live range regalloc should skip, e.g. one built over
	// a register already spilled.
	LRIgnore
)

func (f LRFlags) Has(bit LRFlags) bool { return f&bit != 0 }

func (f LRFlags) String() string {
	names := []struct {
		bit  LRFlags
		name string
	}{{LRLac, "LAC"}, {LRPreAlloc, "PRE_ALLOC"}, {LRIgnore, "IGNORE"}}
	s := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}

// LiveRange is one live-range record. A def-LR and a use-LR share this
// one tagged struct rather than being distinct types, so a block's
// records form a single sortable sequence: a def-LR has Reg set to a
// real register; a use-LR has Reg == ir.InvalidReg and
// DefPos == LastUsePos, with ConsumedDefs naming the def-LRs it reads
// from.
type LiveRange struct {
	DefPos     Pos
	LastUsePos Pos
	Reg        *ir.Reg
	NumUses    int
	Flags      LRFlags

	// ConsumedDefs is populated only on a use-LR: the (currently open)
	// def-LRs consumed by the reads at this position, in operand order.
	ConsumedDefs []*LiveRange
}

// IsUseRecord reports whether lr is a use-LR.
func (lr *LiveRange) IsUseRecord() bool { return lr.Reg == ir.InvalidReg }

// Render emits the live-range textual form:
//
//	LR <def> - <use> [FLAGS] def:<regname>:<kind>[@<cpu>] [SPILLED]
//	LR <def> - <use> [FLAGS] uses:<n> <regname>:<defpos>,...
func (lr *LiveRange) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LR %s - %s", lr.DefPos, lr.LastUsePos)
	if lr.Flags != 0 {
		fmt.Fprintf(&b, " %s", lr.Flags)
	}
	if lr.IsUseRecord() {
		fmt.Fprintf(&b, " uses:%d", len(lr.ConsumedDefs))
		for i, d := range lr.ConsumedDefs {
			if i == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s:%s", d.Reg.Name, d.DefPos)
		}
	} else {
		fmt.Fprintf(&b, " def:%s:%s", lr.Reg.Name, lr.Reg.Kind)
		if lr.Reg.Assigned != nil {
			fmt.Fprintf(&b, "@%s", lr.Reg.Assigned.Name)
		}
		if lr.Reg.Flags.Has(ir.RegSpilled) {
			b.WriteString(" SPILLED")
		}
	}
	return b.String()
}

func lrFlagsFromString(s string) LRFlags {
	var f LRFlags
	for _, tok := range strings.Split(s, "|") {
		switch tok {
		case "LAC":
			f |= LRLac
		case "PRE_ALLOC":
			f |= LRPreAlloc
		case "IGNORE":
			f |= LRIgnore
		}
	}
	return f
}

// ParseLiveRanges is the inverse of rendering a block's live ranges one
// per line: parsing a rendered set reproduces its positions, flags,
// registers, use-LR counts and use-to-def links. A def-LR's NumUses is not
// part of the textual form and parses as 0. regOf
// resolves a register by name within the owning function — callers pass
// fn.Regs's lookup, i.e. `func(name string) *ir.Reg { return fn.Regs[name] }`.
func ParseLiveRanges(text string, regOf func(name string) *ir.Reg) ([]*LiveRange, error) {
	var result []*LiveRange
	byDefKey := make(map[string]*LiveRange)

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "LR" || fields[2] != "-" {
			return nil, fmt.Errorf("line %d: malformed live range %q", lineNo+1, line)
		}
		defPos, err := ParsePos(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		usePos, err := ParsePos(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}

		rest := fields[4:]
		var flags LRFlags
		if !strings.HasPrefix(rest[0], "def:") && !strings.HasPrefix(rest[0], "uses:") {
			flags = lrFlagsFromString(rest[0])
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return nil, fmt.Errorf("line %d: missing payload", lineNo+1)
		}

		lr := &LiveRange{DefPos: defPos, LastUsePos: usePos, Flags: flags}

		switch {
		case strings.HasPrefix(rest[0], "def:"):
			payload := strings.TrimPrefix(rest[0], "def:")
			parts := strings.SplitN(payload, ":", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("line %d: malformed def payload %q", lineNo+1, payload)
			}
			name := parts[0]
			kindAndCpu := parts[1]
			kindStr := kindAndCpu
			if idx := strings.IndexByte(kindAndCpu, '@'); idx >= 0 {
				kindStr = kindAndCpu[:idx]
			}
			kind, ok := ir.ParseDataKind(kindStr)
			if !ok {
				return nil, fmt.Errorf("line %d: unknown data kind %q", lineNo+1, kindStr)
			}
			reg := regOf(name)
			if reg == nil {
				reg = &ir.Reg{Name: name, Kind: kind}
			}
			lr.Reg = reg
			lr.NumUses = 0
			byDefKey[name+":"+defPos.String()] = lr

		case strings.HasPrefix(rest[0], "uses:"):
			n, err := strconv.Atoi(strings.TrimPrefix(rest[0], "uses:"))
			if err != nil {
				return nil, fmt.Errorf("line %d: malformed uses count: %w", lineNo+1, err)
			}
			lr.Reg = ir.InvalidReg
			lr.NumUses = n
			if len(rest) > 1 {
				for _, tok := range strings.Split(rest[1], ",") {
					parts := strings.SplitN(tok, ":", 2)
					if len(parts) != 2 {
						return nil, fmt.Errorf("line %d: malformed consumed-def reference %q", lineNo+1, tok)
					}
					key := parts[0] + ":" + parts[1]
					def, ok := byDefKey[key]
					if !ok {
						return nil, fmt.Errorf("line %d: consumed def %q not yet parsed", lineNo+1, key)
					}
					lr.ConsumedDefs = append(lr.ConsumedDefs, def)
				}
			}

		default:
			return nil, fmt.Errorf("line %d: unrecognized payload %q", lineNo+1, rest[0])
		}

		result = append(result, lr)
	}
	return result, nil
}

// BuildLiveRanges builds a block's live ranges, walking the block in
// reverse from its (already-computed) LiveOut.
//
//  1. Seed: every non-spilled register in live_out opens an LR with
//     last_use_pos = AFTER_BBL.
//  2. At each instruction p, walked from last to first:
//     - a RET with a non-empty function CPU live-out is treated as a
//       pseudo-call whose live-in is that set, at AFTER_BBL.
//     - a real call closes every open LR whose register's assigned CPU
//       register appears in the callee's cpu_live_out, and records the
//       callee's cpu_live_in/this position as the running call state.
//     - a def operand closes (or, if none was open, immediately opens and
//       closes) the LR for that register; a two-address def is folded into
//       the open LR of its paired use operand instead.
//     - a use operand opens (if not already open) or extends the LR for
//       that register, and is collected into this instruction's use-LR.
//  3. Any LR still open at the top of the block is finalized with
//     def_pos = BEFORE_BBL.
//  4. Whenever an LR is finalized, it is flagged LAC iff the most recent
//     call position passed during the walk lies strictly between its
//     def_pos and last_use_pos.
func BuildLiveRanges(fn *ir.Fun, b *ir.Bbl, resolve CalleeResolver) []*LiveRange {
	var result []*LiveRange
	open := make(map[*ir.Reg]*LiveRange)

	lastCallPos := NoUse // sentinel: no call seen yet in this backward walk
	var lastCallLiveIn []*ir.CpuReg

	finalize := func(lr *LiveRange, defPos Pos) {
		lr.DefPos = defPos
		if lastCallPos.IsIndex() && defPos.Less(lastCallPos) && lastCallPos.Less(lr.LastUsePos) {
			lr.Flags |= LRLac
		}
		result = append(result, lr)
	}

	if b.LiveOut != nil {
		b.LiveOut.ForEach(func(r *ir.Reg) {
			if r.Flags.Has(ir.RegSpilled) {
				return
			}
			flags := LRFlags(0)
			if r.Assigned != nil {
				flags |= LRPreAlloc
			}
			open[r] = &LiveRange{Reg: r, LastUsePos: AfterBbl, Flags: flags}
		})
	}

	for p := len(b.Instructions) - 1; p >= 0; p-- {
		in := b.Instructions[p]
		pos := At(p)

		if in.Op.IsReturn() && len(fn.Contract.CpuLiveOut) > 0 {
			lastCallLiveIn = fn.Contract.CpuLiveOut
			lastCallPos = AfterBbl
		}

		if in.Op.IsCall() {
			var contract *ir.CallContract
			if name, ok := CalleeName(in); ok && resolve != nil {
				contract = resolve(name)
			}
			if contract != nil {
				for r, lr := range open {
					if r.Assigned == nil {
						continue
					}
					for _, cr := range contract.CpuLiveOut {
						if cr == r.Assigned {
							finalize(lr, pos)
							delete(open, r)
							break
						}
					}
				}
				lastCallLiveIn = contract.CpuLiveIn
			}
			lastCallPos = pos
		}

		ndefs := in.Op.NumDefs()

		// A two-address def (operand 0 paired with the first use operand,
		// same register) has no independent LR of its own: it folds into
		// the LR already open for that register.
		var twoAddrReg *ir.Reg
		if ndefs == 1 && len(in.Operands) > ndefs {
			if defRO, ok := in.Operands[0].(ir.RegOperand); ok && defRO.Reg.Flags.Has(ir.RegTwoAddress) {
				if useRO, ok := in.Operands[ndefs].(ir.RegOperand); ok && useRO.Reg == defRO.Reg {
					twoAddrReg = defRO.Reg
				}
			}
		}

		var collected []*LiveRange
		for idx, o := range in.Operands {
			ro, ok := o.(ir.RegOperand)
			if !ok || ro.Reg == ir.InvalidReg || ro.Reg.Flags.Has(ir.RegSpilled) {
				continue
			}
			r := ro.Reg

			if idx < ndefs {
				if r == twoAddrReg {
					continue
				}
				if lr, isOpen := open[r]; isOpen {
					finalize(lr, pos)
					delete(open, r)
					continue
				}
				lastUse := NoUse
				for _, cr := range lastCallLiveIn {
					if r.Assigned != nil && r.Assigned == cr {
						lastUse = lastCallPos
						break
					}
				}
				flags := LRFlags(0)
				if r.Assigned != nil {
					flags |= LRPreAlloc
				}
				finalize(&LiveRange{Reg: r, LastUsePos: lastUse, Flags: flags}, pos)
				continue
			}

			lr, isOpen := open[r]
			if !isOpen {
				flags := LRFlags(0)
				if r.Assigned != nil {
					flags |= LRPreAlloc
				}
				lr = &LiveRange{Reg: r, LastUsePos: pos, NumUses: 0, Flags: flags}
				open[r] = lr
			}
			lr.NumUses++
			collected = append(collected, lr)
		}

		if len(collected) > 0 {
			result = append(result, &LiveRange{
				Reg:          ir.InvalidReg,
				DefPos:       pos,
				LastUsePos:   pos,
				NumUses:      len(collected),
				ConsumedDefs: collected,
			})
		}
	}

	for _, lr := range open {
		finalize(lr, BeforeBbl)
	}

	sortLiveRanges(result)
	return result
}

// sortLiveRanges orders by (def_pos, last_use_pos): a use-LR's key is
// (p, p), which sorts before any def-LR sharing the same def_pos, whose
// last_use_pos always exceeds p.
func sortLiveRanges(lrs []*LiveRange) {
	sort.SliceStable(lrs, func(i, j int) bool {
		a, b := lrs[i], lrs[j]
		if !a.DefPos.Equal(b.DefPos) {
			return a.DefPos.Less(b.DefPos)
		}
		return a.LastUsePos.Less(b.LastUsePos)
	})
}

// RenderAll renders a block's live ranges one per line, in the order
// BuildLiveRanges returns them.
func RenderAll(lrs []*LiveRange) string {
	lines := make([]string, len(lrs))
	for i, lr := range lrs {
		lines[i] = lr.Render()
	}
	return strings.Join(lines, "\n")
}
