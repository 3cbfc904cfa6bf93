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

var (
	opMov   = ir.GenericOpcode{OpName: "mov", Defs: 1}
	opPrint = ir.GenericOpcode{OpName: "print", Defs: 0, SideEffect: true}
	opJmp   = ir.GenericOpcode{OpName: "jmp", Defs: 0, SideEffect: true}
	opRet   = ir.GenericOpcode{OpName: "ret", Defs: 0, Return: true, SideEffect: true}
	opCall  = ir.GenericOpcode{OpName: "call", Defs: 0, Call: true}
)

// twoBlockFun builds: b0 { r1 = mov 1; jmp b1 } -> b1 { print r1; ret }.
func twoBlockFun() (*ir.Fun, *ir.Reg) {
	fn := ir.NewFun("f")
	r1 := fn.NewReg("r1", ir.KindS32)
	b0 := ir.NewBbl("b0")
	b1 := ir.NewBbl("b1")
	fn.Blocks = []*ir.Bbl{b0, b1}
	ir.AddEdge(b0, b1)

	fn.NewInstr(b0, opMov, ir.RegOperand{Reg: r1})
	fn.NewInstr(b0, opJmp, ir.BlockRef{Block: b1})
	fn.NewInstr(b1, opPrint, ir.RegOperand{Reg: r1})
	fn.NewInstr(b1, opRet)

	return fn, r1
}

func TestComputeLiveness(t *testing.T) {
	fn, r1 := twoBlockFun()
	res := Compute(fn, nil)
	require.Greater(t, res.Iterations, 0)
	require.True(t, fn.Flags.Has(ir.FunLivenessValid))

	b0, b1 := fn.Blocks[0], fn.Blocks[1]
	require.True(t, b0.LiveOut.Contains(r1), "r1 must be live across the b0->b1 edge")
	require.False(t, b1.LiveOut.Contains(r1), "b1 has no successors, so nothing is live out of it")
}

func TestLivenessSoundness(t *testing.T) {
	fn, _ := twoBlockFun()
	Compute(fn, nil)
	require.NoError(t, Soundness(fn, nil))
}

func TestLivenessFixpointIsPopOrderIndependent(t *testing.T) {
	// The result does not depend on which order blocks are first
	// enqueued in, only on the final fixpoint.
	fn1, r1a := twoBlockFun()
	Compute(fn1, nil)

	fn2, r1b := twoBlockFun()
	fn2.Blocks[0], fn2.Blocks[1] = fn2.Blocks[1], fn2.Blocks[0]
	Compute(fn2, nil)

	require.Equal(t, fn1.Blocks[0].LiveOut.Contains(r1a), fn2.Blocks[1].LiveOut.Contains(r1b))
}

func TestCalleeNameFindsSoleFuncRef(t *testing.T) {
	fn := ir.NewFun("f")
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}
	in := fn.NewInstr(b, opCall, ir.FuncRef{Name: "callee"})
	name, ok := CalleeName(in)
	require.True(t, ok)
	require.Equal(t, "callee", name)
}

func TestCallSiteLivenessHonorsCpuLiveOut(t *testing.T) {
	cpuR0 := &ir.CpuReg{Name: "r0"}
	fn := ir.NewFun("f")
	r1 := fn.NewReg("r1", ir.KindS32)
	r1.Assigned = cpuR0
	b := ir.NewBbl("b0")
	fn.Blocks = []*ir.Bbl{b}

	fn.NewInstr(b, opCall, ir.FuncRef{Name: "callee"})
	fn.NewInstr(b, opRet)

	resolve := func(name string) *ir.CallContract {
		if name == "callee" {
			return &ir.CallContract{CpuLiveOut: []*ir.CpuReg{cpuR0}}
		}
		return nil
	}

	def, use := defUse(fn, b, resolve)
	require.True(t, def.Contains(r1), "r1 is defined by the call per its callee's cpu_live_out")
	require.False(t, use.Contains(r1))
}
