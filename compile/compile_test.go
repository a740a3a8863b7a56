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
package compile

import (
	"strings"
	"testing"

	"kestrel/ast"
)

// (a) a simple function: params in, arithmetic, a single return.
func TestCompileAddFunction(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:    "add",
		Params:  []ast.Param{{Name: "a", Typ: ast.Int}, {Name: "b", Typ: ast.Int}},
		RetType: ast.Int,
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.Return{Result: &ast.Binary{
				Op:    ast.OpAdd,
				Left:  &ast.Ident{Name: "a", Typ: ast.Int},
				Right: &ast.Ident{Name: "b", Typ: ast.Int},
				Typ:   ast.Int,
			}},
		}},
	}

	text, err := CompileText([]ast.Stmt{fn}, ast.SemanticsTable{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, ".global add") {
		t.Fatalf("expected a global symbol for add, got:\n%s", text)
	}
	if !strings.Contains(text, "addl") {
		t.Fatalf("expected an add instruction, got:\n%s", text)
	}
	if !strings.Contains(text, "ret") {
		t.Fatalf("expected a ret, got:\n%s", text)
	}
}

// (e) calling a function with more than 6 arguments is a hard,
// recoverable error rather than a panic escaping Compile.
func TestCompileTooManyArgumentsReturnsError(t *testing.T) {
	args := make([]ast.Expr, 7)
	for i := range args {
		args[i] = &ast.IntLit{Value: i, Typ: ast.Int}
	}
	fn := &ast.FuncDecl{
		Name:    "caller",
		RetType: ast.Void,
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{Inner: &ast.Call{Name: "sink", Args: args, Typ: ast.Void}},
			&ast.Return{Result: &ast.IntLit{Value: 0, Typ: ast.Int}},
		}},
	}

	_, err := Compile([]ast.Stmt{fn}, ast.SemanticsTable{}, false)
	if err == nil {
		t.Fatal("expected an error for a call with more than 6 arguments")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected the unsupported diagnostic kind to surface in the error, got: %v", err)
	}
}

// (f) a function calling another function: arguments flow through the
// ABI argument registers and the call site is stack-aligned.
func TestCompileCallerCallee(t *testing.T) {
	callee := &ast.FuncDecl{
		Name:    "square",
		Params:  []ast.Param{{Name: "x", Typ: ast.Int}},
		RetType: ast.Int,
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.Return{Result: &ast.Binary{
				Op:    ast.OpMul,
				Left:  &ast.Ident{Name: "x", Typ: ast.Int},
				Right: &ast.Ident{Name: "x", Typ: ast.Int},
				Typ:   ast.Int,
			}},
		}},
	}
	caller := &ast.FuncDecl{
		Name:    "quad",
		Params:  []ast.Param{{Name: "x", Typ: ast.Int}},
		RetType: ast.Int,
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.Return{Result: &ast.Call{
				Name: "square",
				Args: []ast.Expr{&ast.Call{Name: "square", Args: []ast.Expr{&ast.Ident{Name: "x", Typ: ast.Int}}, Typ: ast.Int}},
				Typ:  ast.Int,
			}},
		}},
	}

	text, err := CompileText([]ast.Stmt{callee, caller}, ast.SemanticsTable{}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, ".global square") || !strings.Contains(text, ".global quad") {
		t.Fatalf("expected both functions emitted, got:\n%s", text)
	}
	if strings.Count(text, "call square") != 2 {
		t.Fatalf("expected quad to call square twice, got:\n%s", text)
	}
}
