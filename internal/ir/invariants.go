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

import "fmt"

// CheckStructural verifies the structural invariants that hold
// independent of liveness: every reachable block has >=1 outgoing edge
// or ends in control flow, and every def/use operand touches a register
// that belongs to fn's dictionary. It returns every violation found
// rather than failing fast.
func CheckStructural(fn *Fun) []error {
	var errs []error
	reachable := make(map[*Bbl]bool)
	if entry := fn.Entry(); entry != nil {
		reachable[entry] = true
		stack := []*Bbl{entry}
		for len(stack) > 0 {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, s := range b.Succs {
				if !reachable[s] {
					reachable[s] = true
					stack = append(stack, s)
				}
			}
		}
	}
	for _, b := range fn.Blocks {
		if reachable[b] && len(b.Succs) == 0 && !b.HasControlFlow() {
			errs = append(errs, fmt.Errorf("block %q: no outgoing edge and no control-flow terminator", b.Name))
		}
		for _, in := range b.Instructions {
			for i, o := range in.Operands {
				ro, ok := o.(RegOperand)
				if !ok {
					continue
				}
				if ro.Reg == InvalidReg {
					continue
				}
				if _, known := fn.Regs[ro.Reg.Name]; !known {
					errs = append(errs, fmt.Errorf("block %q instr %d operand %d: register %q not in function dictionary", b.Name, in.Id, i, ro.Reg.Name))
				}
			}
		}
	}
	return errs
}
