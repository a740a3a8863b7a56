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
package ast

// DataType is the closed set of scalar integer types this back end knows
// how to lay out. Structures, unions, pointers, and floats are not in
// scope; see Non-goals.
type DataType int

const (
	Unknown DataType = iota
	Void
	Char
	Int
)

// Size returns the data type's width in bytes, per spec.md §3's
// DATATYPE_SIZES table.
func (t DataType) Size() int {
	switch t {
	case Char:
		return 1
	case Int:
		return 4
	default:
		// VOID and UNKNOWN both have no storage
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case Char:
		return "CHAR"
	case Int:
		return "INT"
	case Void:
		return "VOID"
	default:
		return "UNKNOWN"
	}
}

// OpType is the closed set of AST-level operator tags recognized by the
// emitter. It mirrors AST_OP_IR_MATCHES from the reference implementation.
type OpType int

const (
	OpNone OpType = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLogicAnd
	OpLogicOr
	OpAssign
	OpCall
)

func (o OpType) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpNeg:
		return "neg"
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLogicAnd:
		return "&&"
	case OpLogicOr:
		return "||"
	case OpAssign:
		return "="
	case OpCall:
		return "call"
	default:
		return "none"
	}
}

// IsComparison reports whether op is one of the six ordering/equality
// comparators that generate_inverse_jump knows how to invert.
func (o OpType) IsComparison() bool {
	switch o {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Inverse returns the boolean-negated comparator, per AST_OP_IR_INVERSES.
// Only valid for comparison ops; callers must check IsComparison first.
func (o OpType) Inverse() OpType {
	switch o {
	case OpEq:
		return OpNeq
	case OpNeq:
		return OpEq
	case OpLt:
		return OpGte
	case OpLte:
		return OpGt
	case OpGt:
		return OpLte
	case OpGte:
		return OpLt
	default:
		return OpNone
	}
}
