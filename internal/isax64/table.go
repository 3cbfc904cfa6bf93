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
package isax64

import (
	"fmt"
	"strings"
)

// Table is the process-wide x86-64 opcode table, expanded from the base
// instruction descriptions below and frozen after init. Every entry is
// one concrete (format, width, ModRM-mode) variant.
var Table []*Opcode

var byName = make(map[string]*Opcode)

// buckets maps a 14-bit fingerprint (prefix presence bits plus the first
// significant opcode byte) to the candidate opcodes sharing it. An O/OI
// entry registers itself under all 8 values its 0xf8-masked byte can take.
var buckets = make(map[uint16][]*Opcode)

const (
	fp66   = 1 << 8
	fpF0   = 1 << 9
	fpF2   = 1 << 10
	fpF3   = 1 << 11
	fp0F   = 1 << 12
	fpRexW = 1 << 13
)

// fingerprint condenses the decoded prefix state and first significant
// opcode byte into the bucket key.
func fingerprint(has66, hasF0, hasF2, hasF3, has0F, hasRexW bool, firstByte byte) uint16 {
	fp := uint16(firstByte)
	if has66 {
		fp |= fp66
	}
	if hasF0 {
		fp |= fpF0
	}
	if hasF2 {
		fp |= fpF2
	}
	if hasF3 {
		fp |= fpF3
	}
	if has0F {
		fp |= fp0F
	}
	if hasRexW {
		fp |= fpRexW
	}
	return fp
}

// fingerprints lists every bucket key an opcode must be findable under.
func (o *Opcode) fingerprints() []uint16 {
	tmpl := o.Template
	mask := o.TemplateMask
	has0F := false
	if tmpl[0] == 0x0F {
		has0F = true
		tmpl = tmpl[1:]
		mask = mask[1:]
	}
	base := fingerprint(o.OpSize16, false, false, false, has0F, o.RexW, tmpl[0])
	if mask[0] == 0xf8 {
		out := make([]uint16, 8)
		for r := 0; r < 8; r++ {
			out[r] = base&0xff00 | uint16(tmpl[0]|byte(r))
		}
		return out
	}
	return []uint16{base}
}

func Lookup(name string) *Opcode { return byName[name] }

// memOps returns the operand-vector slots a memory/register operand
// contributes for a given mode.
func memOps(m Mode) []OpKind {
	switch m {
	case ModeReg:
		return []OpKind{OpReg}
	case ModeBase:
		return []OpKind{OpBase}
	case ModeBaseDisp8:
		return []OpKind{OpBase, OpDisp8}
	case ModeBaseDisp32:
		return []OpKind{OpBase, OpDisp32}
	case ModeSIB:
		return []OpKind{OpBase, OpIndex, OpScale}
	case ModeSIBDisp8:
		return []OpKind{OpBase, OpIndex, OpScale, OpDisp8}
	case ModeSIBDisp32:
		return []OpKind{OpBase, OpIndex, OpScale, OpDisp32}
	case ModeRIP:
		return []OpKind{OpDisp32}
	default:
		return nil
	}
}

var allModes = []Mode{
	ModeReg, ModeBase, ModeBaseDisp8, ModeBaseDisp32,
	ModeSIB, ModeSIBDisp8, ModeSIBDisp32, ModeRIP,
}

var widths = []int{8, 16, 32, 64}

// immKind returns the immediate operand kind for an effective width, with
// enc8 selecting the sign-extended one-byte encoding.
func immKind(width int, enc8 bool) OpKind {
	if enc8 {
		switch width {
		case 16:
			return OpImm8_16
		case 32:
			return OpImm8_32
		case 64:
			return OpImm8_64
		default:
			return OpImm8
		}
	}
	switch width {
	case 8:
		return OpImm8
	case 16:
		return OpImm16
	case 64:
		return OpImm32_64
	default:
		return OpImm32
	}
}

func register(o *Opcode) {
	if _, dup := byName[o.Mnemonic]; dup {
		panic(fmt.Sprintf("isax64: duplicate opcode name %q", o.Mnemonic))
	}
	byName[o.Mnemonic] = o
	Table = append(Table, o)
	for _, fp := range o.fingerprints() {
		buckets[fp] = append(buckets[fp], o)
	}
}

func variant(name string, format Format, mode Mode, width int, tmpl []byte, digit int, ops []OpKind) *Opcode {
	mask := make([]byte, len(tmpl))
	for i := range mask {
		mask[i] = 0xff
	}
	o := &Opcode{
		Mnemonic:     name,
		Format:       format,
		Mode:         mode,
		RexW:         width == 64,
		OpSize16:     width == 16,
		Template:     tmpl,
		TemplateMask: mask,
		ModRMReg:     digit,
		Ops:          ops,
		Width:        width,
	}
	return o
}

// addModRMFamily expands one (format, width, template) description into a
// table entry per ModRM mode. memWrites marks the memory-destination
// variants as stores (side effects with no register def).
func addModRMFamily(base string, format Format, width int, tmpl []byte, digit int, immEnc8 bool, hasImm bool, regDef bool, memWrites bool, modes []Mode) {
	for _, mode := range modes {
		name := base + widthSuffix(width) + "_" + formatSuffix(format)
		if hasImm && immEnc8 && width != 8 {
			name += "_imm8"
		}
		name += mode.suffix()

		var ops []OpKind
		switch format {
		case FormatMR:
			ops = append(append(ops, memOps(mode)...), OpReg)
		case FormatRM, FormatMRI:
			ops = append([]OpKind{OpReg}, memOps(mode)...)
		case FormatMI, FormatM:
			ops = memOps(mode)
		}
		if hasImm {
			ops = append(ops, immKind(width, immEnc8))
		}

		o := variant(name, format, mode, width, tmpl, digit, ops)
		switch {
		case mode == ModeReg && (regDef || format == FormatRM || format == FormatMRI):
			o.NumDefsVal = 1
		case mode != ModeReg && (format == FormatRM || format == FormatMRI):
			o.NumDefsVal = 1 // destination register, memory is a source
		case mode != ModeReg && memWrites:
			o.SideEffectFlag = true // store
		}
		register(o)
	}
}

func formatSuffix(f Format) string {
	switch f {
	case FormatMI:
		return "mi"
	case FormatMR:
		return "mr"
	case FormatRM:
		return "rm"
	case FormatMRI:
		return "mri"
	case FormatM:
		return "m"
	case FormatO:
		return "o"
	case FormatOI:
		return "oi"
	case FormatI:
		return "i"
	case FormatD:
		return "d"
	default:
		return "x"
	}
}

// addALU wires one classic ALU row of the one-byte opcode map: MR/RM pairs
// (byte and word forms), the 0x80/0x81 /digit immediate forms, and the
// 0x83 sign-extended imm8 form.
func addALU(name string, baseByte byte, digit int, writes bool) {
	for _, w := range widths {
		mrT := []byte{baseByte + 1}
		rmT := []byte{baseByte + 3}
		miT := []byte{0x81}
		if w == 8 {
			mrT = []byte{baseByte}
			rmT = []byte{baseByte + 2}
			miT = []byte{0x80}
		}
		addModRMFamily(name, FormatMR, w, mrT, -1, false, false, writes, writes, allModes)
		addModRMFamily(name, FormatRM, w, rmT, -1, false, false, true, false, allModes)
		addModRMFamily(name, FormatMI, w, miT, digit, false, true, writes, writes, allModes)
		if w != 8 {
			addModRMFamily(name, FormatMI, w, []byte{0x83}, digit, true, true, writes, writes, allModes)
		}
	}
}

func init() {
	// The six one-byte-map ALU rows this backend emits (test has its own
	// rows below). cmp and test write no destination; they only set flags.
	addALU("add", 0x00, 0, true)
	addALU("or", 0x08, 1, true)
	addALU("and", 0x20, 4, true)
	addALU("sub", 0x28, 5, true)
	addALU("xor", 0x30, 6, true)
	addALU("cmp", 0x38, 7, false)

	// mov: MR/RM plus the C6/C7 /0 immediate form.
	for _, w := range widths {
		mrT, rmT, miT := []byte{0x89}, []byte{0x8B}, []byte{0xC7}
		if w == 8 {
			mrT, rmT, miT = []byte{0x88}, []byte{0x8A}, []byte{0xC6}
		}
		addModRMFamily("mov", FormatMR, w, mrT, -1, false, false, true, true, allModes)
		addModRMFamily("mov", FormatRM, w, rmT, -1, false, false, true, false, allModes)
		addModRMFamily("mov", FormatMI, w, miT, 0, false, true, true, true, allModes)
	}

	// mov reg, imm with the register in the low 3 opcode bits. The 64-bit
	// form is the one instruction carrying a full 8-byte immediate.
	for _, w := range widths {
		tmpl, mask := []byte{0xB8}, []byte{0xf8}
		immK := immKind(w, false)
		if w == 8 {
			tmpl = []byte{0xB0}
		}
		if w == 64 {
			immK = OpImm64
		}
		o := &Opcode{
			Mnemonic:     "mov" + widthSuffix(w) + "_oi",
			Format:       FormatOI,
			Mode:         ModeNone,
			RexW:         w == 64,
			OpSize16:     w == 16,
			Template:     tmpl,
			TemplateMask: mask,
			ModRMReg:     -1,
			Ops:          []OpKind{OpReg, immK},
			Width:        w,
			NumDefsVal:   1,
		}
		register(o)
	}

	// test: MR and the F6/F7 /0 immediate form; no sign-extended imm8 row
	// exists for test in the one-byte map.
	for _, w := range widths {
		mrT, miT := []byte{0x85}, []byte{0xF7}
		if w == 8 {
			mrT, miT = []byte{0x84}, []byte{0xF6}
		}
		addModRMFamily("test", FormatMR, w, mrT, -1, false, false, false, false, allModes)
		addModRMFamily("test", FormatMI, w, miT, 0, false, true, false, false, allModes)
	}

	// imul: two-operand RM form (0F AF) and the three-operand
	// immediate forms 0x69/0x6B.
	for _, w := range []int{16, 32, 64} {
		addModRMFamily("imul", FormatRM, w, []byte{0x0F, 0xAF}, -1, false, false, true, false, allModes)
		addModRMFamily("imul", FormatMRI, w, []byte{0x69}, -1, false, true, true, false, allModes)
		addModRMFamily("imul", FormatMRI, w, []byte{0x6B}, -1, true, true, true, false, allModes)
	}

	// lea: memory modes only; a register source has no address to take.
	for _, w := range []int{16, 32, 64} {
		addModRMFamily("lea", FormatRM, w, []byte{0x8D}, -1, false, false, true, false,
			[]Mode{ModeBase, ModeBaseDisp8, ModeBaseDisp32, ModeSIB, ModeSIBDisp8, ModeSIBDisp32, ModeRIP})
	}

	// movsxd: 64 <- 32 sign extension.
	addModRMFamily("movsxd", FormatRM, 64, []byte{0x63}, -1, false, false, true, false, allModes)

	// neg/not: unary r/m.
	for _, w := range widths {
		t := []byte{0xF7}
		if w == 8 {
			t = []byte{0xF6}
		}
		addModRMFamily("neg", FormatM, w, t, 3, false, false, true, true, allModes)
		addModRMFamily("not", FormatM, w, t, 2, false, false, true, true, allModes)
	}

	// shifts by imm8: C0/C1 /digit.
	for _, w := range widths {
		t := []byte{0xC1}
		if w == 8 {
			t = []byte{0xC0}
		}
		addModRMFamily("shl", FormatMI, w, t, 4, false, true, true, true, allModes)
		addModRMFamily("shr", FormatMI, w, t, 5, false, true, true, true, allModes)
		addModRMFamily("sar", FormatMI, w, t, 7, false, true, true, true, allModes)
	}

	// Fix up shift immediates: the count is always one byte regardless of
	// operand width.
	for _, o := range Table {
		if o.Format != FormatMI {
			continue
		}
		if strings.HasPrefix(o.Mnemonic, "shl") || strings.HasPrefix(o.Mnemonic, "shr") || strings.HasPrefix(o.Mnemonic, "sar") {
			o.Ops[len(o.Ops)-1] = OpImm8
		}
	}

	// push/pop: 64-bit stack ops. The 0x50+r/0x58+r short forms need no
	// REX.W (stack width is implicit), so Width stays 64 but RexW is off.
	pushO := &Opcode{
		Mnemonic: "push_64_o", Format: FormatO, Mode: ModeNone,
		Template: []byte{0x50}, TemplateMask: []byte{0xf8}, ModRMReg: -1,
		Ops: []OpKind{OpReg}, Width: 64, SideEffectFlag: true,
	}
	register(pushO)
	popO := &Opcode{
		Mnemonic: "pop_64_o", Format: FormatO, Mode: ModeNone,
		Template: []byte{0x58}, TemplateMask: []byte{0xf8}, ModRMReg: -1,
		Ops: []OpKind{OpReg}, Width: 64, NumDefsVal: 1, SideEffectFlag: true,
	}
	register(popO)
	register(&Opcode{
		Mnemonic: "push_32_i", Format: FormatI, Mode: ModeNone,
		Template: []byte{0x68}, TemplateMask: []byte{0xff}, ModRMReg: -1,
		Ops: []OpKind{OpImm32}, SideEffectFlag: true,
	})
	register(&Opcode{
		Mnemonic: "push_8_i", Format: FormatI, Mode: ModeNone,
		Template: []byte{0x6A}, TemplateMask: []byte{0xff}, ModRMReg: -1,
		Ops: []OpKind{OpImm8}, SideEffectFlag: true,
	})

	// call/jmp: direct rel32 and indirect-through-r/m forms.
	register(&Opcode{
		Mnemonic: "call", Format: FormatD, Mode: ModeNone,
		Template: []byte{0xE8}, TemplateMask: []byte{0xff}, ModRMReg: -1,
		Ops: []OpKind{OpRel32}, CallFlag: true,
	})
	register(&Opcode{
		Mnemonic: "jmp", Format: FormatD, Mode: ModeNone,
		Template: []byte{0xE9}, TemplateMask: []byte{0xff}, ModRMReg: -1,
		Ops: []OpKind{OpRel32}, SideEffectFlag: true,
	})
	for _, mode := range allModes {
		register(&Opcode{
			Mnemonic: "call_m" + mode.suffix(), Format: FormatM, Mode: mode,
			Template: []byte{0xFF}, TemplateMask: []byte{0xff}, ModRMReg: 2,
			Ops: memOps(mode), CallFlag: true,
		})
		register(&Opcode{
			Mnemonic: "jmp_m" + mode.suffix(), Format: FormatM, Mode: mode,
			Template: []byte{0xFF}, TemplateMask: []byte{0xff}, ModRMReg: 4,
			Ops: memOps(mode), SideEffectFlag: true,
		})
	}

	// Conditional branches, rel32 (0F 80+cc).
	ccs := []struct {
		name string
		cc   byte
	}{
		{"jo", 0x0}, {"jno", 0x1}, {"jb", 0x2}, {"jae", 0x3},
		{"je", 0x4}, {"jne", 0x5}, {"jbe", 0x6}, {"ja", 0x7},
		{"js", 0x8}, {"jns", 0x9}, {"jl", 0xC}, {"jge", 0xD},
		{"jle", 0xE}, {"jg", 0xF},
	}
	for _, c := range ccs {
		register(&Opcode{
			Mnemonic: c.name, Format: FormatD, Mode: ModeNone,
			Template: []byte{0x0F, 0x80 + c.cc}, TemplateMask: []byte{0xff, 0xff}, ModRMReg: -1,
			Ops: []OpKind{OpRel32}, SideEffectFlag: true,
		})
	}

	register(&Opcode{
		Mnemonic: "ret", Format: FormatNone, Mode: ModeNone,
		Template: []byte{0xC3}, TemplateMask: []byte{0xff}, ModRMReg: -1,
		ReturnFlag: true,
	})
	register(&Opcode{
		Mnemonic: "nop", Format: FormatNone, Mode: ModeNone,
		Template: []byte{0x90}, TemplateMask: []byte{0xff}, ModRMReg: -1,
	})
	register(&Opcode{
		Mnemonic: "syscall", Format: FormatNone, Mode: ModeNone,
		Template: []byte{0x0F, 0x05}, TemplateMask: []byte{0xff, 0xff}, ModRMReg: -1,
		SideEffectFlag: true,
	})

	if errs := CheckUniqueness(); len(errs) > 0 {
		panic(fmt.Sprintf("isax64: opcode table self-test failed: %v", errs[0]))
	}
}

// CheckUniqueness verifies that no two table entries can decode the same
// byte sequence: entries sharing a fingerprint bucket must differ in
// template bytes (under both masks), in their ModRM mode/digit
// constraints, or in prefix state. Run once at init; table-build bugs
// abort the process rather than silently mis-decoding later.
func CheckUniqueness() []error {
	var errs []error
	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if a == b || !ambiguous(a, b) {
					continue
				}
				errs = append(errs, fmt.Errorf("isax64: opcodes %q and %q are ambiguous", a.Mnemonic, b.Mnemonic))
			}
		}
	}
	return errs
}

func ambiguous(a, b *Opcode) bool {
	if a.RexW != b.RexW || a.OpSize16 != b.OpSize16 {
		return false
	}
	if len(a.Template) != len(b.Template) {
		// A shorter template that is a masked prefix of the longer one
		// would still be ambiguous only if the next byte were
		// unconstrained; all templates here are fully constrained opcode
		// bytes, so differing lengths cannot match the same stream unless
		// the shared prefix agrees AND the shorter entry has no ModRM to
		// disambiguate. Conservatively treat differing lengths with an
		// agreeing prefix as distinct: the longer template's extra byte is
		// matched as an opcode byte, the shorter one's as ModRM, and every
		// shorter entry here carries a ModRM constraint that the longer
		// entry's extra opcode byte never satisfies as a ModRM encoding of
		// the same instruction. The one-byte map has no such collisions.
		return false
	}
	for i := range a.Template {
		m := a.TemplateMask[i] & b.TemplateMask[i]
		if a.Template[i]&m != b.Template[i]&m {
			return false
		}
	}
	// Same template bytes: must be told apart by ModRM.
	if !a.HasModRM() || !b.HasModRM() {
		return true
	}
	aMod, _ := a.modRMConstraint()
	bMod, _ := b.modRMConstraint()
	if aMod != bMod {
		return false
	}
	if !rmSetsIntersect(a, b) {
		return false
	}
	if a.ModRMReg >= 0 && b.ModRMReg >= 0 && a.ModRMReg != b.ModRMReg {
		return false
	}
	return true
}

// rmSetsIntersect reports whether two same-mod variants can accept the
// same ModRM.rm value. An unconstrained rm field still excludes the SIB
// escape (rm=4) and, at mod=0, the rip-relative escape (rm=5).
func rmSetsIntersect(a, b *Opcode) bool {
	set := func(o *Opcode) map[int]bool {
		mod, rm := o.modRMConstraint()
		if rm != rmAny {
			return map[int]bool{rm: true}
		}
		out := make(map[int]bool)
		for v := 0; v < 8; v++ {
			if v == 4 {
				continue
			}
			if mod == 0 && v == 5 {
				continue
			}
			out[v] = true
		}
		return out
	}
	as, bs := set(a), set(b)
	for v := range as {
		if bs[v] {
			return true
		}
	}
	return false
}
