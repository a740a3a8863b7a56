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
package codegen

import (
	"fmt"

	"kestrel/ast"
	"kestrel/internal/diag"
	"kestrel/ir"
)

var calleeSaveRegs = []string{"%r12", "%r13", "%r14", "%r15"}

// widthNames maps a 64-bit register name to its {byte, long, quad}
// forms, so an operand can be rewritten to the width its IR address's
// declared type demands before emission.
var widthNames = map[string][3]string{
	"%rax": {"%al", "%eax", "%rax"},
	"%rbx": {"%bl", "%ebx", "%rbx"},
	"%rcx": {"%cl", "%ecx", "%rcx"},
	"%rdx": {"%dl", "%edx", "%rdx"},
	"%rsi": {"%sil", "%esi", "%rsi"},
	"%rdi": {"%dil", "%edi", "%rdi"},
	"%r8":  {"%r8b", "%r8d", "%r8"},
	"%r9":  {"%r9b", "%r9d", "%r9"},
	"%r10": {"%r10b", "%r10d", "%r10"},
	"%r11": {"%r11b", "%r11d", "%r11"},
	"%r12": {"%r12b", "%r12d", "%r12"},
	"%r13": {"%r13b", "%r13d", "%r13"},
	"%r14": {"%r14b", "%r14d", "%r14"},
	"%r15": {"%r15b", "%r15d", "%r15"},
}

// widthReg rewrites a 64-bit register name to the size-appropriate
// form, e.g. ("%rbx", 1) -> "%bl". Stack-slot operands pass through
// widthNames untouched since they are not keyed there.
func widthReg(reg string, size int) string {
	names, ok := widthNames[reg]
	if !ok {
		return reg
	}
	switch size {
	case 1:
		return names[0]
	case 4:
		return names[1]
	default:
		return names[2]
	}
}

// suffix picks the GAS instruction-size suffix for a byte width: 1 ->
// b, 4 -> l, anything else -> q.
func suffix(size int) string {
	switch size {
	case 1:
		return "b"
	case 4:
		return "l"
	default:
		return "q"
	}
}

// widerOf picks the wider of two operand widths, defaulting to INT's
// width when both sides are untyped (e.g. comparing two immediates).
func widerOf(a, b int) int {
	if a == 0 && b == 0 {
		return ast.Int.Size()
	}
	if a > b {
		return a
	}
	return b
}

// cc renders a comparison Op as the GAS condition-code suffix shared by
// jcc and cmovcc.
func cc(op ir.Op) string {
	switch op {
	case ir.OpCompareEq:
		return "e"
	case ir.OpCompareNeq:
		return "ne"
	case ir.OpCompareLt:
		return "l"
	case ir.OpCompareLte:
		return "le"
	case ir.OpCompareGt:
		return "g"
	case ir.OpCompareGte:
		return "ge"
	default:
		diag.ShouldNotReachHere(fmt.Sprintf("operator %v is not a comparison", op))
		return ""
	}
}
