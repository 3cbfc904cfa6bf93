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

import "go.uber.org/zap"

// Log is the package-wide diagnostic logger. It starts out a no-op so that
// library packages never panic on a nil logger when used outside cmd/cwerg
// (tests, embedders); the CLI entry point replaces it with a real one via
// SetLogger.
var Log *zap.SugaredLogger = zap.NewNop().Sugar()

// SetLogger installs l as the package-wide logger. cmd/cwerg calls this
// once at startup with a logger configured from its -v/--verbose flag.
func SetLogger(l *zap.Logger) {
	Log = l.Sugar()
}
