// Copyright (c) 2024 The Kestrel Contributors
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
package diag

import (
	"fmt"
	"os"

	"github.com/kr/pretty"
)

// Dump prints a labeled, structured rendering of v to stderr when
// enabled is true, and is otherwise free. This is the one call site the
// IR emitter (step list, FuncInfoTable) and GAS emitter (output lines)
// use instead of ad-hoc %+v formatting.
func Dump(enabled bool, label string, v interface{}) {
	if !enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "--- %s ---\n", label)
	if _, err := pretty.Println(v); err != nil {
		fmt.Fprintf(os.Stderr, "diag: dump of %s failed: %v\n", label, err)
	}
}
