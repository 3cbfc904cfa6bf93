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
)

func TestPosOrder(t *testing.T) {
	require.True(t, BeforeBbl.Less(At(0)))
	require.True(t, At(0).Less(At(1)))
	require.True(t, At(5).Less(AfterBbl))
	require.False(t, AfterBbl.Less(NoUse))
	require.False(t, NoUse.Less(AfterBbl))
	require.False(t, At(3).Less(At(3)))
}

func TestPosStringRoundTrip(t *testing.T) {
	cases := []Pos{BeforeBbl, AfterBbl, NoUse, At(0), At(42)}
	for _, p := range cases {
		got, err := ParsePos(p.String())
		require.NoError(t, err)
		require.True(t, got.Equal(p), "round trip of %v produced %v", p, got)
	}
}

func TestParsePosRejectsGarbage(t *testing.T) {
	_, err := ParsePos("not-a-position")
	require.Error(t, err)
}
