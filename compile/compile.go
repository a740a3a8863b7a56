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

// Package compile wires the IR emitter and the GAS code generator
// together behind a single entry point. It owns no lexer, parser,
// semantic analysis, or file I/O: callers hand it an already
// type-checked AST and a populated SemanticsTable, and get back
// assembly text or a diagnostic error.
package compile

import (
	"github.com/pkg/errors"

	"kestrel/ast"
	"kestrel/codegen"
	"kestrel/internal/diag"
	"kestrel/ir"
)

// Compile lowers a whole-program list of function declarations to GNU
// assembler text. decls must all be *ast.FuncDecl; sem must already
// hold every symbol's resolved DataType. debug turns on the
// ir.steps/ir.funcs/codegen.lines dumps via internal/diag.
//
// Any internal inconsistency or unsupported-construct error raised
// during emission or code generation surfaces here as a returned
// error rather than a panic: diag.Recover is the single recovery
// point for the *diag.Error panics every stage in this module uses to
// report a fatal condition.
func Compile(decls []ast.Stmt, sem ast.SemanticsTable, debug bool) (lines []string, err error) {
	defer diag.Recover(&err, "compile")

	steps, funcs := ir.Emit(decls, sem, debug)
	lines = codegen.Generate(steps, funcs, debug)
	return lines, nil
}

// CompileText joins Compile's output lines into a single assembly
// source string, for callers that want a complete .s file body rather
// than a line slice.
func CompileText(decls []ast.Stmt, sem ast.SemanticsTable, debug bool) (string, error) {
	lines, err := Compile(decls, sem, debug)
	if err != nil {
		return "", errors.Wrap(err, "compile text")
	}
	var out string
	for _, l := range lines {
		out += l
	}
	return out, nil
}
