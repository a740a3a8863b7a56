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
package ir

import (
	"fmt"

	"kestrel/ast"
	"kestrel/internal/diag"
)

// Emitter lowers a checked AST into a flat Step list plus a
// FuncInfoTable. Per-function state (pseudo-address usage, the
// name-to-address table, the exit-label and return-temp stacks) lives
// in funcCtx, a value constructed fresh for each FuncDecl and discarded
// at its end — not as long-lived fields mutated across calls, per the
// "per-function global state" redesign.
type Emitter struct {
	sem      ast.SemanticsTable
	debug    bool
	labelSeq int
	funcs    FuncInfoTable
}

// funcCtx bundles everything the original emitter kept as session
// fields reused (and reset) across function boundaries.
type funcCtx struct {
	name       string
	addrInUse  map[Addr]bool
	nextTemp   int
	nameToAddr map[string]Addr
	locals     []LocalRecord
	exitStack  []string
	returnTemp []Addr
}

func newFuncCtx(name string) *funcCtx {
	return &funcCtx{
		name: name,
		addrInUse: map[Addr]bool{
			"A": false,
			"B": false,
			"C": false,
		},
		nameToAddr: map[string]Addr{},
	}
}

// allocAddr mirrors IREmitter.allocate_addr: prefer a free reserved
// slot (A/B/C) that is not currently pinned as a pending return value,
// otherwise mint a fresh a<n> temporary. a<n> temporaries are
// append-only and never renumbered within a function.
func (c *funcCtx) allocAddr() Addr {
	for _, reserved := range [...]Addr{"A", "B", "C"} {
		if !c.addrInUse[reserved] && !c.isPendingReturn(reserved) {
			c.addrInUse[reserved] = true
			return reserved
		}
	}
	addr := Addr(fmt.Sprintf("a%d", c.nextTemp))
	c.nextTemp++
	c.addrInUse[addr] = true
	return addr
}

func (c *funcCtx) isPendingReturn(addr Addr) bool {
	for _, a := range c.returnTemp {
		if a == addr {
			return true
		}
	}
	return false
}

// release frees addr for reuse. Idempotent: releasing an address that
// is already free, or one the reserved-slot table never allocated, is
// a no-op.
func (c *funcCtx) release(addr Addr) {
	c.addrInUse[addr] = false
}

func (c *funcCtx) registerLocal(typ ast.DataType, addr Addr, isParam bool) {
	if typ == ast.Unknown {
		return
	}
	c.locals = append(c.locals, LocalRecord{Type: typ, Addr: addr, IsParam: isParam})
}

func (e *Emitter) nextLabel() string {
	l := fmt.Sprintf("L%d", e.labelSeq)
	e.labelSeq++
	return l
}

// Emit lowers a list of top-level function declarations into a single
// ordered Step list and a FuncInfoTable recording each function's
// locals. decls is expected to contain only *ast.FuncDecl values; any
// other top-level declaration kind is a Non-goal this pipeline never
// receives from a checked program.
func Emit(decls []ast.Stmt, sem ast.SemanticsTable, debug bool) ([]Step, FuncInfoTable) {
	e := &Emitter{sem: sem, debug: debug, funcs: FuncInfoTable{}}

	var steps []Step
	for _, d := range decls {
		fn, ok := d.(*ast.FuncDecl)
		diag.Assert(ok, "top-level declaration %T is not a function", d)
		steps = append(steps, e.lowerFunc(fn)...)
	}

	diag.Dump(debug, "ir.steps", steps)
	diag.Dump(debug, "ir.funcs", e.funcs)
	return steps, e.funcs
}

func (e *Emitter) lowerFunc(fn *ast.FuncDecl) []Step {
	c := newFuncCtx(fn.Name)
	var out []Step

	out = append(out, NewLabel(fn.Name))

	for _, p := range fn.Params {
		addr := c.allocAddr()
		c.registerLocal(p.Typ, addr, true)
		c.nameToAddr[p.Name] = addr
		out = append(out, NewLoadParam(addr))
	}

	exitLabel := e.nextLabel()
	c.exitStack = append(c.exitStack, exitLabel)

	out = append(out, e.lowerStmt(c, fn.Body)...)

	c.exitStack = c.exitStack[:len(c.exitStack)-1]
	out = append(out, NewLabel(exitLabel))

	diag.Assert(len(c.returnTemp) > 0, "function %s has no return statement", fn.Name)
	out = append(out, NewReturn(c.returnTemp[len(c.returnTemp)-1]))

	e.funcs[fn.Name] = c.locals
	return out
}

func (e *Emitter) lowerStmt(c *funcCtx, s ast.Stmt) []Step {
	switch st := s.(type) {
	case *ast.VarDecl:
		return e.lowerVarDecl(c, st)
	case *ast.Block:
		var out []Step
		for _, inner := range st.Stmts {
			out = append(out, e.lowerStmt(c, inner)...)
		}
		return out
	case *ast.ExprStmt:
		return e.lowerExprStmt(c, st)
	case *ast.If:
		return e.lowerIf(c, st)
	case *ast.Return:
		return e.lowerReturn(c, st)
	default:
		diag.Unimplement(fmt.Sprintf("statement kind %T", s))
		return nil
	}
}

func (e *Emitter) lowerVarDecl(c *funcCtx, s *ast.VarDecl) []Step {
	addr := c.allocAddr()
	c.registerLocal(s.Typ, addr, false)
	c.nameToAddr[s.Name] = addr

	var out []Step
	rhs, rhsSteps := e.lowerExpr(c, s.Init)
	out = append(out, rhsSteps...)
	out = append(out, NewAssign(addr, OpMove, rhs, nil))
	e.releaseOperand(c, rhs)
	return out
}

// lowerExprStmt only lowers the inner expression when it is a call or
// an assignment: anything else has no observable effect and is
// dropped, per spec.md §4.1.
func (e *Emitter) lowerExprStmt(c *funcCtx, s *ast.ExprStmt) []Step {
	switch inner := s.Inner.(type) {
	case *ast.Call:
		_, steps := e.lowerExpr(c, inner)
		return steps
	case *ast.Binary:
		if inner.Op == ast.OpAssign {
			_, steps := e.lowerExpr(c, inner)
			return steps
		}
	}
	return nil
}

func (e *Emitter) lowerIf(c *funcCtx, s *ast.If) []Step {
	falseLabel := e.nextLabel()

	var out []Step
	cond, condSteps := e.lowerExpr(c, s.Cond)
	out = append(out, condSteps...)
	out = append(out, NewJumpIf(falseLabel, OpCompareEq, Imm(0), cond))
	e.releaseOperand(c, cond)

	out = append(out, e.lowerStmt(c, s.Then)...)

	if s.Else != nil {
		endLabel := e.nextLabel()
		out = append(out, NewJump(endLabel))
		out = append(out, NewLabel(falseLabel))
		out = append(out, e.lowerStmt(c, s.Else)...)
		out = append(out, NewLabel(endLabel))
	} else {
		out = append(out, NewLabel(falseLabel))
	}
	return out
}

func (e *Emitter) lowerReturn(c *funcCtx, s *ast.Return) []Step {
	dest := c.allocAddr()
	src, srcSteps := e.lowerExpr(c, s.Result)

	c.returnTemp = append(c.returnTemp, dest)

	var out []Step
	out = append(out, srcSteps...)
	out = append(out, NewAssign(dest, OpMove, src, nil))

	resultType := s.Result.DataType()
	if resultType == ast.Unknown {
		if call, ok := s.Result.(*ast.Call); ok {
			if sym := e.sem.Lookup(ast.GlobalScope, call.Name); sym != nil {
				resultType = sym.DataType
			}
		}
	}
	c.registerLocal(resultType, dest, false)

	out = append(out, NewJump(c.exitStack[0]))
	return out
}

// lowerExpr lowers an expression and returns the operand holding its
// value plus any Steps needed to compute it. Literals that never need
// a pseudo-address of their own fold straight to an Imm.
func (e *Emitter) lowerExpr(c *funcCtx, expr ast.Expr) (Operand, []Step) {
	switch ex := expr.(type) {
	case *ast.IntLit:
		return Imm(ex.Value), nil
	case *ast.CharLit:
		return Imm(int(ex.Value)), nil
	case *ast.Ident:
		addr, ok := c.nameToAddr[ex.Name]
		diag.Assert(ok, "identifier %q has no recorded address", ex.Name)
		return addr, nil
	case *ast.Unary:
		return e.lowerUnary(c, ex)
	case *ast.Binary:
		return e.lowerBinary(c, ex)
	case *ast.Call:
		return e.lowerCall(c, ex)
	default:
		diag.Unimplement(fmt.Sprintf("expression kind %T", expr))
		return nil, nil
	}
}

func (e *Emitter) lowerUnary(c *funcCtx, ex *ast.Unary) (Operand, []Step) {
	inner, steps := e.lowerExpr(c, ex.Inner)

	if ex.Op != ast.OpNeg {
		return inner, steps
	}

	if lit, ok := inner.(Imm); ok {
		return Imm(-int(lit)), steps
	}

	dest := c.allocAddr()
	steps = append(steps, NewAssign(dest, OpNegate, inner, nil))
	e.releaseOperand(c, inner)
	return dest, steps
}

func (e *Emitter) lowerBinary(c *funcCtx, ex *ast.Binary) (Operand, []Step) {
	switch ex.Op {
	case ast.OpLogicAnd:
		return e.lowerLogicAnd(c, ex)
	case ast.OpLogicOr:
		return e.lowerLogicOr(c, ex)
	case ast.OpAssign:
		return e.lowerAssign(c, ex)
	default:
		return e.lowerArithOrCompare(c, ex)
	}
}

func (e *Emitter) lowerArithOrCompare(c *funcCtx, ex *ast.Binary) (Operand, []Step) {
	l, lSteps := e.lowerExpr(c, ex.Left)
	r, rSteps := e.lowerExpr(c, ex.Right)
	dest := c.allocAddr()

	var out []Step
	out = append(out, lSteps...)
	out = append(out, rSteps...)
	out = append(out, NewAssign(dest, FromASTOp(ex.Op), l, r))

	e.releaseOperand(c, r)
	e.releaseOperand(c, l)
	return dest, out
}

func (e *Emitter) lowerAssign(c *funcCtx, ex *ast.Binary) (Operand, []Step) {
	lhs, lSteps := e.lowerExpr(c, ex.Left)
	rhs, rSteps := e.lowerExpr(c, ex.Right)
	lhsAddr, ok := lhs.(Addr)
	diag.Assert(ok, "assignment target %v is not an addressable location", ex.Left)

	var out []Step
	out = append(out, lSteps...)
	out = append(out, rSteps...)
	out = append(out, NewAssign(lhsAddr, OpMove, rhs, nil))
	e.releaseOperand(c, rhs)
	return lhsAddr, out
}

// lowerLogicAnd lowers a short-circuit `&&`: two inverse-condition
// jumps to a shared false label, falling through to dest=1 when both
// operands are truthy.
func (e *Emitter) lowerLogicAnd(c *funcCtx, ex *ast.Binary) (Operand, []Step) {
	falseLabel := e.nextLabel()
	trueLabel := e.nextLabel()
	dest := c.allocAddr()

	var out []Step
	out = append(out, e.generateInverseJump(c, falseLabel, ex.Left)...)
	out = append(out, e.generateInverseJump(c, falseLabel, ex.Right)...)
	out = append(out, NewAssign(dest, OpMove, Imm(1), nil))
	out = append(out, NewJump(trueLabel))
	out = append(out, NewLabel(falseLabel))
	out = append(out, NewAssign(dest, OpMove, Imm(0), nil))
	out = append(out, NewLabel(trueLabel))
	return dest, out
}

// lowerLogicOr lowers a short-circuit `||`: two normal-condition jumps
// to a shared true label, falling through to dest=0 when both operands
// are falsy.
func (e *Emitter) lowerLogicOr(c *funcCtx, ex *ast.Binary) (Operand, []Step) {
	falseLabel := e.nextLabel()
	trueLabel := e.nextLabel()
	skipLabel := e.nextLabel()
	dest := c.allocAddr()

	var out []Step
	out = append(out, e.generateNormalJump(c, trueLabel, ex.Left)...)
	out = append(out, e.generateNormalJump(c, trueLabel, ex.Right)...)
	out = append(out, NewJump(falseLabel))
	out = append(out, NewLabel(trueLabel))
	out = append(out, NewAssign(dest, OpMove, Imm(1), nil))
	out = append(out, NewJump(skipLabel))
	out = append(out, NewLabel(falseLabel))
	out = append(out, NewAssign(dest, OpMove, Imm(0), nil))
	out = append(out, NewLabel(skipLabel))
	return dest, out
}

// generateNormalJump lowers expr and jumps to target when it is
// truthy (nonzero).
func (e *Emitter) generateNormalJump(c *funcCtx, target string, expr ast.Expr) []Step {
	val, steps := e.lowerExpr(c, expr)
	steps = append(steps, NewJumpIf(target, OpCompareNeq, Imm(0), val))
	e.releaseOperand(c, val)
	return steps
}

// generateInverseJump jumps to target when expr is falsy, using the
// boolean inverse of a top-level comparator to avoid materializing the
// boolean into a register before branching; falls back to
// compute-then-compare-against-zero for non-comparison expressions.
func (e *Emitter) generateInverseJump(c *funcCtx, target string, expr ast.Expr) []Step {
	bin, isBinary := expr.(*ast.Binary)
	if isBinary && bin.Op.IsComparison() {
		l, lSteps := e.lowerExpr(c, bin.Left)
		r, rSteps := e.lowerExpr(c, bin.Right)

		var out []Step
		out = append(out, lSteps...)
		out = append(out, rSteps...)
		out = append(out, NewJumpIf(target, InverseOfASTOp(bin.Op), l, r))
		e.releaseOperand(c, r)
		e.releaseOperand(c, l)
		return out
	}

	val, steps := e.lowerExpr(c, expr)
	steps = append(steps, NewJumpIf(target, OpCompareEq, Imm(0), val))
	e.releaseOperand(c, val)
	return steps
}

func (e *Emitter) lowerCall(c *funcCtx, ex *ast.Call) (Operand, []Step) {
	if len(ex.Args) > 6 {
		diag.Bail(diag.Unsupported, "call to %s has %d arguments, more than 6 is unsupported", ex.Name, len(ex.Args))
	}

	var out []Step
	for _, arg := range ex.Args {
		if lit, ok := arg.(*ast.IntLit); ok {
			out = append(out, NewPushArg(Imm(lit.Value), arg.DataType()))
			continue
		}
		if lit, ok := arg.(*ast.CharLit); ok {
			out = append(out, NewPushArg(Imm(int(lit.Value)), arg.DataType()))
			continue
		}
		val, steps := e.lowerExpr(c, arg)
		out = append(out, steps...)
		out = append(out, NewPushArg(val, arg.DataType()))
		e.releaseOperand(c, val)
	}

	out = append(out, NewCallFunc(ex.Name))

	retType := ex.Typ
	if retType == ast.Unknown {
		if sym := e.sem.Lookup(ast.GlobalScope, ex.Name); sym != nil {
			retType = sym.DataType
		}
	}
	if retType == ast.Unknown || retType == ast.Void {
		return nil, out
	}

	dest := c.allocAddr()
	out = append(out, NewStoreYield(dest))
	return dest, out
}

func (e *Emitter) releaseOperand(c *funcCtx, op Operand) {
	if addr, ok := op.(Addr); ok {
		c.release(addr)
	}
}
