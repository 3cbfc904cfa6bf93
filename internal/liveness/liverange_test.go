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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwerg-go/cwerg/internal/ir"
)

// callAcrossFun builds: b0 { r1 = mov 5; call foo; print r1; ret }.
// r1's live range spans the call and must be flagged LAC.
func callAcrossFun() (*ir.Fun, *ir.Bbl, *ir.Reg) {
	fn := ir.NewFun("f")
	r1 := fn.NewReg("r1", ir.KindS32)
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}

	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opCall, ir.FuncRef{Name: "foo"})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opRet)

	return fn, b, r1
}

func TestBuildLiveRangesMarksLiveAcrossCall(t *testing.T) {
	fn, b, r1 := callAcrossFun()
	Compute(fn, nil) // b has no successors; LiveOut is empty, as expected here
	lrs := BuildLiveRanges(fn, b, nil)

	require.Len(t, lrs, 2)

	defLR := lrs[0]
	require.False(t, defLR.IsUseRecord())
	require.Equal(t, r1, defLR.Reg)
	require.True(t, defLR.DefPos.Equal(At(0)))
	require.True(t, defLR.LastUsePos.Equal(At(2)))
	require.True(t, defLR.Flags.Has(LRLac), "r1's live range spans the call at position 1")

	useLR := lrs[1]
	require.True(t, useLR.IsUseRecord())
	require.True(t, useLR.DefPos.Equal(At(2)))
	require.Len(t, useLR.ConsumedDefs, 1)
	require.Same(t, defLR, useLR.ConsumedDefs[0])
}

func TestBuildLiveRangesNoCallNoLac(t *testing.T) {
	fn, r1 := twoBlockFun()
	Compute(fn, nil)
	lrs := BuildLiveRanges(fn, fn.Blocks[1], nil)

	var found bool
	for _, lr := range lrs {
		if !lr.IsUseRecord() && lr.Reg == r1 {
			found = true
			require.False(t, lr.Flags.Has(LRLac))
		}
	}
	require.True(t, found)
}

func TestBuildLiveRangesSeedsFromLiveOut(t *testing.T) {
	fn, r1 := twoBlockFun()
	Compute(fn, nil)
	lrs := BuildLiveRanges(fn, fn.Blocks[0], nil)

	var found bool
	for _, lr := range lrs {
		if !lr.IsUseRecord() && lr.Reg == r1 {
			found = true
			require.True(t, lr.LastUsePos.Equal(AfterBbl), "r1 is live-out of b0, never read within it")
		}
	}
	require.True(t, found)
}

func TestBuildLiveRangesTwoAddressDefFoldsIntoUse(t *testing.T) {
	// add r1 = r1, r2: operand 0 (def) and operand 1 (use) name the same
	// two-address register, so the def must not open or close a separate
	// live range — r1's range flows through the instruction.
	opAdd := ir.GenericOpcode{OpName: "add", Defs: 1}
	fn := ir.NewFun("f")
	r1 := fn.NewReg("r1", ir.KindS32)
	r2 := fn.NewReg("r2", ir.KindS32)
	r1.Flags |= ir.RegTwoAddress
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}

	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opAdd, ir.RegOperand{Reg: r1}, ir.RegOperand{Reg: r1}, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opRet)

	Compute(fn, nil)
	lrs := BuildLiveRanges(fn, b, nil)

	var r1LRs []*LiveRange
	for _, lr := range lrs {
		if !lr.IsUseRecord() && lr.Reg == r1 {
			r1LRs = append(r1LRs, lr)
		}
	}
	require.Len(t, r1LRs, 1, "the two-address def at position 2 must not split r1's range")
	require.True(t, r1LRs[0].DefPos.Equal(At(0)))
	require.True(t, r1LRs[0].LastUsePos.Equal(At(3)))
	require.Equal(t, 2, r1LRs[0].NumUses)
}

func TestLiveRangeRenderParseRoundTrip(t *testing.T) {
	fn, b, _ := callAcrossFun()
	Compute(fn, nil)
	lrs := BuildLiveRanges(fn, b, nil)

	text := RenderAll(lrs)
	parsed, err := ParseLiveRanges(text, func(name string) *ir.Reg { return fn.Regs[name] })
	require.NoError(t, err)
	require.Len(t, parsed, len(lrs))

	for i, lr := range lrs {
		got := parsed[i]
		require.True(t, got.DefPos.Equal(lr.DefPos))
		require.True(t, got.LastUsePos.Equal(lr.LastUsePos))
		require.Equal(t, lr.Flags, got.Flags)
		require.Equal(t, lr.IsUseRecord(), got.IsUseRecord())
		if !lr.IsUseRecord() {
			require.Equal(t, lr.Reg.Name, got.Reg.Name)
		} else {
			require.Len(t, got.ConsumedDefs, len(lr.ConsumedDefs))
		}
	}
}

func TestLiveRangeOrderingUseBeforeDefAtSamePosition(t *testing.T) {
	fn, b, _ := callAcrossFun()
	Compute(fn, nil)
	lrs := BuildLiveRanges(fn, b, nil)
	// Records come out ordered by def_pos.
	require.True(t, lrs[0].DefPos.Less(lrs[1].DefPos) || lrs[0].DefPos.Equal(lrs[1].DefPos))

	// mov rb = ra at position 1 reads ra and defines rb there: the use-LR
	// (1, 1) must sort ahead of rb's def-LR (1, 2).
	fn2 := ir.NewFun("g")
	ra := fn2.NewReg("ra", ir.KindS32)
	rb := fn2.NewReg("rb", ir.KindS32)
	b2 := ir.NewBbl("b0")
	fn2.Blocks = []*ir.Bbl{b2}
	fn2.NewInstr(b2, opMov, ir.RegOperand{Reg: ra})
	fn2.NewInstr(b2, opMov, ir.RegOperand{Reg: rb}, ir.RegOperand{Reg: ra})
	fn2.NewInstr(b2, opPrint, ir.RegOperand{Reg: rb})
	fn2.NewInstr(b2, opRet)
	Compute(fn2, nil)
	lrs2 := BuildLiveRanges(fn2, b2, nil)
	require.Len(t, lrs2, 4)
	require.True(t, lrs2[1].IsUseRecord())
	require.True(t, lrs2[1].DefPos.Equal(At(1)))
	require.Equal(t, rb, lrs2[2].Reg)
	require.True(t, lrs2[2].DefPos.Equal(At(1)))
}
