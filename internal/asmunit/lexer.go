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
package asmunit

import (
	"strconv"
	"strings"

	"github.com/cwerg-go/cwerg/internal/ir"
)

// Token is one operand of an instruction or directive line: a plain
// identifier, an integer literal (0x… or decimal), a bracketed list, or
// an identifier with a ":kind" annotation.
type Token struct {
	Raw string

	Ident string       // the bare identifier/register/label text
	Kind  ir.DataKind  // the ":KIND" annotation, KindS64 for an integer literal, else KindInvalid
	IsNum bool
	Num   int64
	IsList bool
	List   []string
}

// splitOperands splits an operand list on top-level commas, i.e. commas
// outside a "[...]" bracketed list.
func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

// parseToken parses one operand string into a Token. ":kind"
// annotations bind to the token's Ident.
func parseToken(raw string) Token {
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		var list []string
		if inner != "" {
			for _, e := range strings.Split(inner, " ") {
				e = strings.TrimSpace(strings.Trim(e, ","))
				if e != "" {
					list = append(list, e)
				}
			}
		}
		return Token{Raw: raw, IsList: true, List: list}
	}

	text := strings.TrimPrefix(raw, "#") // optional immediate sigil
	if kind, num, ok := parseIntLiteral(text); ok {
		return Token{Raw: raw, IsNum: true, Num: num, Kind: kind}
	}

	ident := text
	kind := ir.KindInvalid
	if colon := strings.IndexByte(text, ':'); colon >= 0 {
		ident = text[:colon]
		if k, ok := ir.ParseDataKind(text[colon+1:]); ok {
			kind = k
		}
	}
	return Token{Raw: raw, Ident: ident, Kind: kind}
}

func parseIntLiteral(s string) (ir.DataKind, int64, bool) {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return ir.KindInvalid, 0, false
	}
	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	}
	v, err := strconv.ParseUint(body, base, 64)
	if err != nil {
		return ir.KindInvalid, 0, false
	}
	n := int64(v)
	if neg {
		n = -n
	}
	return ir.KindS64, n, true
}
