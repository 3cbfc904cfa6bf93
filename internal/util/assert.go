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
package util

import "fmt"

// Assert panics with a formatted message when cond is false. Used for
// contract violations, such as an operation invoked without its required
// precondition flag, and for invariant failures that should abort the unit of
// compilation rather than propagate as an error value.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// ShouldNotReachHere marks a switch arm or branch the caller believes is
// unreachable under every valid input.
func ShouldNotReachHere(context string) {
	panic("should not reach here: " + context)
}

// Unimplemented marks a deliberately unhandled case (e.g. an ISA operand
// kind not yet wired into the opcode table).
func Unimplemented(what string) {
	panic("not implemented: " + what)
}
