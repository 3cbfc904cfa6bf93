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

func TestComputeRegStatsExceptLAC(t *testing.T) {
	fn, r1 := twoBlockFun()
	Compute(fn, nil)
	ComputeRegStatsExceptLAC(fn)

	require.True(t, r1.Flags.Has(ir.RegGlobal), "r1 crosses the b0->b1 edge")
	require.False(t, r1.Flags.Has(ir.RegMultiDef), "r1 is defined exactly once")
	require.True(t, r1.Flags.Has(ir.RegIsRead))
	require.False(t, r1.Flags.Has(ir.RegMultiRead))
	require.Equal(t, fn.Blocks[0], r1.DefBbl)
	require.Same(t, fn.Blocks[0].Instructions[0], r1.DefIns)
}

func TestComputeRegStatsExceptLACMultiDef(t *testing.T) {
	fn := ir.NewFun("f")
	r1 := fn.NewReg("r1", ir.KindS32)
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}
	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r1})
	fn.NewInstr(b, opRet)

	Compute(fn, nil)
	ComputeRegStatsExceptLAC(fn)
	require.True(t, r1.Flags.Has(ir.RegMultiDef))
	require.True(t, r1.Flags.Has(ir.RegMultiRead))
	require.False(t, r1.Flags.Has(ir.RegGlobal), "r1 never leaves b0")
	require.Same(t, b.Instructions[0], r1.DefIns, "DefIns is the first write")
}

func TestComputeRegStatsLAC(t *testing.T) {
	fn, _, r1 := callAcrossFun()
	Compute(fn, nil)
	ComputeRegStatsLAC(fn)
	require.True(t, r1.Flags.Has(ir.RegLAC))
}

func TestComputeRegStatsLACMarksLiveInsGlobal(t *testing.T) {
	// b1 reads r1 without defining it, so r1 is still live at b1's entry
	// and the reverse walk must mark it Global.
	fn, r1 := twoBlockFun()
	Compute(fn, nil)
	ComputeRegStatsLAC(fn)
	require.True(t, r1.Flags.Has(ir.RegGlobal))
}

func TestSeparateLocalRegUsageSplitsRedefinition(t *testing.T) {
	// r2 is defined, read, then redefined and read again, all inside b0.
	// The second def must be renamed onto a fresh scratch register.
	fn := ir.NewFun("f")
	r2 := fn.NewReg("r2", ir.KindS32)
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}

	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opMov, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: r2})
	fn.NewInstr(b, opRet)

	Compute(fn, nil)
	ComputeRegStatsExceptLAC(fn)
	split := SeparateLocalRegUsage(fn)
	require.Equal(t, 1, split)
	require.False(t, fn.Flags.Has(ir.FunLivenessValid))

	// The first def/use pair still names r2; the second pair was renamed.
	firstDef := b.Instructions[0].Defs()[0].Reg
	secondDef := b.Instructions[2].Defs()[0].Reg
	require.Same(t, r2, firstDef)
	require.NotSame(t, r2, secondDef)
	require.Equal(t, r2.Kind, secondDef.Kind)
	require.Same(t, secondDef, b.Instructions[3].Uses()[0].Reg, "the read after the redefinition follows the rename")
	require.Same(t, r2, b.Instructions[1].Uses()[0].Reg, "the read before the redefinition is untouched")
}

func TestSeparateLocalRegUsageLeavesGlobalsAlone(t *testing.T) {
	fn, r1 := twoBlockFun()
	b0 := fn.Blocks[0]
	fn.NewInstr(b0, opMov, ir.RegOperand{Reg: r1}) // a redefinition, but r1 is global

	Compute(fn, nil)
	ComputeRegStatsExceptLAC(fn)
	require.True(t, r1.Flags.Has(ir.RegGlobal))
	require.Equal(t, 0, SeparateLocalRegUsage(fn))
}

func TestComputeBblRegUsageStats(t *testing.T) {
	fn, b, _ := callAcrossFun()
	Compute(fn, nil)
	stats := ComputeBblRegUsageStats(fn, b, nil)
	require.Equal(t, 1, stats.ByKind[ir.KindS32])
	require.Equal(t, 1, stats.LACByKind[ir.KindS32])
}

func TestComputeBblRegUsageStatsCountsOverlap(t *testing.T) {
	// Two values of the same kind overlap: both are defined before either
	// is read, so the pool must manufacture two registers.
	fn := ir.NewFun("f")
	ra := fn.NewReg("ra", ir.KindS32)
	rb := fn.NewReg("rb", ir.KindS32)
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}

	fn.NewInstr(b, opMov, ir.RegOperand{Reg: ra})
	fn.NewInstr(b, opMov, ir.RegOperand{Reg: rb})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: ra})
	fn.NewInstr(b, opPrint, ir.RegOperand{Reg: rb})
	fn.NewInstr(b, opRet)

	Compute(fn, nil)
	stats := ComputeBblRegUsageStats(fn, b, nil)
	require.Equal(t, 2, stats.ByKind[ir.KindS32])
}

func TestComputeRegPressureReport(t *testing.T) {
	fn, _, _ := callAcrossFun()
	Compute(fn, nil)
	report := ComputeRegPressureReport(fn, nil)
	require.Equal(t, 1, report.MaxByKind[ir.KindS32])
	require.Equal(t, 0, report.SpillCount)
}
