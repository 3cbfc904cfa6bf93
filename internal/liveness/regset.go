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

import "github.com/cwerg-go/cwerg/internal/ir"

// RegSet is the per-instruction/per-block gen/kill/live-in/live-out set
// used while building liveness. It is a map-backed set rather than
// internal/util's bitset-backed BitSet because virtual registers aren't
// densely numbered until a function's dictionary is finalized.
type RegSet map[*ir.Reg]bool

func NewRegSet() RegSet { return make(RegSet) }

func (s RegSet) Add(r *ir.Reg)      { s[r] = true }
func (s RegSet) Remove(r *ir.Reg)   { delete(s, r) }
func (s RegSet) Contains(r *ir.Reg) bool { return s[r] }

func (s RegSet) Copy() RegSet {
	out := make(RegSet, len(s))
	for r := range s {
		out[r] = true
	}
	return out
}

// Union returns the union of s and o as a new set.
func (s RegSet) Union(o RegSet) RegSet {
	out := s.Copy()
	for r := range o {
		out[r] = true
	}
	return out
}

// Minus returns s - o as a new set.
func (s RegSet) Minus(o RegSet) RegSet {
	out := NewRegSet()
	for r := range s {
		if !o[r] {
			out[r] = true
		}
	}
	return out
}

func (s RegSet) Equal(o RegSet) bool {
	if len(s) != len(o) {
		return false
	}
	for r := range s {
		if !o[r] {
			return false
		}
	}
	return true
}

func (s RegSet) Slice() []*ir.Reg {
	out := make([]*ir.Reg, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}

func toRegSet(set interface{ ForEach(func(*ir.Reg)) }) RegSet {
	out := NewRegSet()
	set.ForEach(func(r *ir.Reg) { out.Add(r) })
	return out
}
