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
package elfwriter

// PatchFunc patches one relocation in place. data is the full backing
// buffer of r.Section (so the callback can slice whatever width its
// relocation type needs starting at r.Offset); pc is the relocation
// site's own final address, for PC-relative kinds; symVal is r.Symbol's
// final absolute address. internal/asmunit supplies one PatchFunc that
// cuts the relocation's slot out of data and hands it to its Arch
// adapter's ApplyReloc (isaarm64.ApplyReloc and friends), since
// Reloc.Type is opaque to this package.
type PatchFunc func(r *Reloc, data []byte, pc uint64, symVal uint64) error

// ApplyRelocs must run after Layout, once every Symbol's Value is an
// absolute address. It calls patch once per recorded Reloc, in the order
// they were added.
func (im *Image) ApplyRelocs(patch PatchFunc) error {
	if !im.laidOut {
		return fmtErr("ApplyRelocs called before Layout")
	}
	for _, r := range im.Relocs {
		pc := r.Section.Addr + r.Offset
		symVal := uint64(0)
		if r.Symbol != nil {
			symVal = r.Symbol.Value
		}
		if err := patch(r, r.Section.data, pc, symVal); err != nil {
			return fmtErr("relocation at %s+%#x: %w", r.Section.Name, r.Offset, err)
		}
	}
	return nil
}
