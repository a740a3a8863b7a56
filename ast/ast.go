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

// Package ast defines the data model this back end consumes. Lexing,
// parsing, and semantic analysis all live upstream of this package; nothing
// here constructs a tree from source text, it only describes the shape of
// an already-checked one.
package ast

import "fmt"

// Node is the root of every AST type. Expr and Stmt close the two sub-sets
// the emitter walks.
type Node interface {
	String() string
}

// Expr is any AST node that yields a value. DataType is assumed to already
// be resolved by the (out of scope) semantic analysis pass.
type Expr interface {
	Node
	DataType() DataType
}

// Stmt is any AST node lowered for side effect only.
type Stmt interface {
	Node
	stmtNode()
}

// -----------------------------------------------------------------------------
// Expressions

// IntLit is an integer literal, e.g. `42`.
type IntLit struct {
	Value int
	Typ   DataType // normally Int
}

func (e *IntLit) DataType() DataType { return e.Typ }
func (e *IntLit) String() string     { return fmt.Sprintf("IntLit(%d)", e.Value) }

// CharLit is a single-byte character literal, e.g. `'a'`. Multi-byte escape
// sequences are a lexer concern and out of scope here (spec.md §9 Open
// Question 2).
type CharLit struct {
	Value int32
	Typ   DataType // normally Char
}

func (e *CharLit) DataType() DataType { return e.Typ }
func (e *CharLit) String() string     { return fmt.Sprintf("CharLit(%q)", rune(e.Value)) }

// Ident is a reference to a local, a parameter, or a global. It is the
// emitter's job to resolve the name to a pseudo-address via its
// name-to-addr table; Ident carries only the resolved type for sizing.
type Ident struct {
	Name string
	Typ  DataType
}

func (e *Ident) DataType() DataType { return e.Typ }
func (e *Ident) String() string     { return fmt.Sprintf("Ident(%s)", e.Name) }

// Unary is a single-operand expression. The only supported operator is
// OpNeg; anything else is a no-op pass-through at lowering time.
type Unary struct {
	Op    OpType
	Inner Expr
	Typ   DataType
}

func (e *Unary) DataType() DataType { return e.Typ }
func (e *Unary) String() string     { return fmt.Sprintf("Unary(%s %v)", e.Op, e.Inner) }

// Binary covers arithmetic, comparison, the short-circuit logical
// operators, and plain assignment — OpAssign binds Left as an lvalue
// (typically an *Ident) and Right as the value expression, exactly as the
// reference implementation folds ASSIGN into its binary-expression node.
type Binary struct {
	Op    OpType
	Left  Expr
	Right Expr
	Typ   DataType
}

func (e *Binary) DataType() DataType { return e.Typ }
func (e *Binary) String() string     { return fmt.Sprintf("Binary(%v %s %v)", e.Left, e.Op, e.Right) }

// Call is a function call with a bounded argument list. More than 6
// arguments is a hard error at lowering time (stack-passed args are a
// Non-goal).
type Call struct {
	Name string
	Args []Expr
	Typ  DataType // the callee's return type, looked up via SemanticsTable
}

func (e *Call) DataType() DataType { return e.Typ }
func (e *Call) String() string     { return fmt.Sprintf("Call(%s, %d args)", e.Name, len(e.Args)) }

// -----------------------------------------------------------------------------
// Statements

type VarDecl struct {
	Name string
	Typ  DataType
	Init Expr
}

func (*VarDecl) stmtNode() {}
func (s *VarDecl) String() string {
	return fmt.Sprintf("VarDecl(%s %s = %v)", s.Typ, s.Name, s.Init)
}

type Block struct {
	Stmts []Stmt
}

func (*Block) stmtNode() {}
func (s *Block) String() string {
	return fmt.Sprintf("Block(%d stmts)", len(s.Stmts))
}

// ExprStmt wraps an expression evaluated for its side effect only. Per
// spec.md §4.1 the emitter only lowers the inner expression when it is a
// Call or an assignment; any other inner expression is dropped silently
// since it has no observable effect.
type ExprStmt struct {
	Inner Expr
}

func (*ExprStmt) stmtNode() {}
func (s *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%v)", s.Inner)
}

type If struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil when there is no else-branch
}

func (*If) stmtNode() {}
func (s *If) String() string {
	return fmt.Sprintf("If(%v)", s.Cond)
}

type Return struct {
	Result Expr
}

func (*Return) stmtNode() {}
func (s *Return) String() string {
	return fmt.Sprintf("Return(%v)", s.Result)
}

// Param is a single function parameter declaration.
type Param struct {
	Name string
	Typ  DataType
}

// FuncDecl is a top-level function declaration. Parameters are loaded in
// declaration order; the emitter requires len(Params) <= 6 (spec.md §3 arg
// register pool size).
type FuncDecl struct {
	Name    string
	Params  []Param
	RetType DataType
	Body    *Block
}

func (*FuncDecl) stmtNode() {}
func (s *FuncDecl) String() string {
	return fmt.Sprintf("FuncDecl(%s, %d params)", s.Name, len(s.Params))
}
