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

// Package codegen walks an ir.Step list and a FuncInfoTable and emits
// GNU-assembler text for x86-64 Linux under the System V AMD64 ABI. It
// resolves pseudo-addresses to registers or stack slots, picks
// operand-size suffixes, and writes each function's prologue, body,
// and epilogue in IR step order.
package codegen

import (
	"fmt"

	"kestrel/ast"
	"kestrel/internal/diag"
	"kestrel/ir"
	"kestrel/utils"
)

// Generator walks a Step list exactly once, in order, and accumulates
// GAS text lines. cur holds the frame for whichever function is
// currently being emitted; per the REDESIGN FLAG this is the only
// generator-lifetime state, everything else lives in frame.
type Generator struct {
	debug bool
	lines []string
	funcs ir.FuncInfoTable
	cur   *frame
}

// Generate lowers steps into ordered GAS text lines, one per element,
// each including a trailing newline. funcs supplies each function's
// LocalRecords for frame sizing and operand-width resolution.
func Generate(steps []ir.Step, funcs ir.FuncInfoTable, debug bool) []string {
	g := &Generator{funcs: funcs, debug: debug}
	g.emit("# kestrel generated assembly")
	g.emit(".text")

	for _, s := range steps {
		g.dispatch(s)
	}

	diag.Dump(debug, "codegen.lines", g.lines)
	return g.lines
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.lines = append(g.lines, fmt.Sprintf(format, args...)+"\n")
}

// dispatch is the single exhaustive switch over ir.StepKind the
// REDESIGN FLAG calls for, replacing a StepVisitor interface: one
// unexported method per case.
func (g *Generator) dispatch(s ir.Step) {
	switch s.Kind {
	case ir.KLabel:
		g.label(s)
	case ir.KReturn:
		g.ret(s)
	case ir.KJump:
		g.jump(s)
	case ir.KJumpIf:
		g.jumpIf(s)
	case ir.KPushArg:
		g.pushArg(s)
	case ir.KCallFunc:
		g.callFunc(s)
	case ir.KStoreYield:
		g.storeYield(s)
	case ir.KLoadParam:
		g.loadParam(s)
	case ir.KAssign:
		g.assign(s)
	case ir.KLoadConst:
		g.loadConst(s)
	default:
		diag.ShouldNotReachHere(fmt.Sprintf("unknown step kind %v", s.Kind))
	}
}

// label either starts a new function's prologue (when the name is a
// key in the FuncInfoTable) or emits a bare internal label.
func (g *Generator) label(s ir.Step) {
	locals, isFunc := g.funcs[s.Name]
	if !isFunc {
		g.emit("%s:", s.Name)
		return
	}
	g.beginFunction(s.Name, locals)
}

func (g *Generator) beginFunction(name string, locals []ir.LocalRecord) {
	f := newFrame(name, locals)
	g.cur = f

	g.emit(".global %s", name)
	g.emit("%s:", name)
	g.emit("pushq %%rbp")
	g.emit("movq %%rsp, %%rbp")
	f.rspParity = (f.rspParity + 8) % 16

	for _, l := range locals {
		if l.Type == ast.Unknown {
			break
		}
		if _, ok := f.irToSlot[l.Addr]; ok {
			continue
		}
		slot, ok := f.stack.Allocate(l.Type.Size())
		if !ok {
			diag.Bail(diag.AllocMiss, "could not allocate a stack slot for %s local %s in %s", l.Type, l.Addr, name)
		}
		f.irToSlot[l.Addr] = slot
	}

	// subq $<frame>, %rsp, not %rbp: the prologue bug the redesign
	// corrects. The frame is rounded up to a 16-byte multiple so it never
	// shifts %rsp's alignment parity on its own.
	frameSize := utils.Align16(f.stack.FrameSize())
	g.emit("subq $%d, %%rsp", frameSize)
	f.rspParity = (f.rspParity + frameSize) % 16

	for _, r := range calleeSaveRegs {
		g.pushq(r)
	}
}

func (g *Generator) pushq(reg string) {
	g.emit("pushq %s", reg)
	g.cur.rspParity = (g.cur.rspParity + 8) % 16
}

func (g *Generator) popq(reg string) {
	g.emit("popq %s", reg)
	g.cur.rspParity = (g.cur.rspParity + 8) % 16 // popping is also an 8-byte parity shift
}

func (g *Generator) subqRsp(n int) {
	g.emit("subq $%d, %%rsp", n)
	g.cur.rspParity = (g.cur.rspParity + n) % 16
}

func (g *Generator) addqRsp(n int) {
	g.emit("addq $%d, %%rsp", n)
	g.cur.rspParity = ((g.cur.rspParity-n)%16 + 16) % 16
}

func (g *Generator) jump(s ir.Step) {
	g.emit("jmp %s", s.Name)
}

func (g *Generator) jumpIf(s ir.Step) {
	size := widerOf(g.cur.widthOf(s.Arg0), g.cur.widthOf(s.Arg1))
	a0 := g.operand(s.Arg0, size)
	a1 := g.operand(s.Arg1, size)
	g.emit("cmp%s %s, %s", suffix(size), a1, a0)
	g.emit("j%s %s", cc(s.Op), s.Name)
}

// pushArg loads one actual argument into the next ABI argument
// register. It never touches the generic IR-address bookkeeping: the
// register it returns isn't the home of any pseudo-address, it's a
// transient ABI slot that dies once CallFunc's call returns.
func (g *Generator) pushArg(s ir.Step) {
	size := s.ArgType.Size()
	if size == 0 {
		size = ast.Int.Size()
	}

	reg, victim, salvaged, ok := g.cur.arg.Allocate()
	if !ok {
		diag.Bail(diag.Unsupported, "call has more than 6 arguments, which is unsupported")
	}
	if salvaged && !g.spill(victim) {
		diag.Bail(diag.Internal, "could not spill %s to free argument register %s", victim, reg)
	}

	val := g.operand(s.Arg, size)
	g.emit("mov%s %s, %s", suffix(size), val, widthReg(reg, size))

	if addr, ok := s.Arg.(ir.Addr); ok {
		g.release(addr)
	}
}

// callFunc preserves the two caller-save scratch registers, pads the
// stack to a 16-byte boundary if the running parity demands it, zeroes
// %rax per the variadic-call ABI convention, and resets the argument
// pool once the call returns so the next call site starts at %rdi
// again.
func (g *Generator) callFunc(s ir.Step) {
	g.pushq("%r10")
	g.pushq("%r11")

	pad := (16 - g.cur.rspParity%16) % 16
	if pad != 0 {
		g.subqRsp(pad)
	}

	g.emit("xorl %%eax, %%eax")
	g.emit("call %s", s.Name)

	if pad != 0 {
		g.addqRsp(pad)
	}

	g.popq("%r11")
	g.popq("%r10")

	g.cur.arg.ReleaseAll()
}

func (g *Generator) storeYield(s ir.Step) {
	size := g.cur.widthOf(s.Dest)
	dest := g.destLocation(s.Dest, size)
	g.emit("mov%s %s, %s", suffix(size), widthReg("%rax", size), dest)
}

func (g *Generator) loadParam(s ir.Step) {
	f := g.cur
	size := f.widthOf(s.Dest)

	// params lead the LocalRecords, so this counts the params before s.Dest
	idx := 0
	for _, l := range g.funcs[f.name] {
		if l.Addr == s.Dest {
			break
		}
		if l.IsParam {
			idx++
		}
	}
	if idx >= len(argRegs) {
		diag.Bail(diag.Unsupported, "function %s has more than 6 parameters, which is unsupported", f.name)
	}
	reg := widthReg(argRegs[idx], size)

	slot, ok := f.irToSlot[s.Dest]
	if !ok {
		slot, ok = f.stack.Allocate(size)
		diag.Assert(ok, "no stack slot for parameter %s", s.Dest)
	}
	f.irToSlot[s.Dest] = slot

	g.emit("mov%s %s, %s", suffix(size), reg, slot)
	// the parameter's permanent home is the stack slot; the argument
	// register was only a transient ABI landing pad.
	f.irToSlot[s.Dest] = slot
}

func (g *Generator) assign(s ir.Step) {
	f := g.cur
	size := widerOf(f.widthOf(s.Dest), widerOf(f.widthOf(s.Arg0), f.widthOf(s.Arg1)))
	dest := g.destLocation(s.Dest, size)

	switch s.Op {
	case ir.OpNegate:
		a0 := g.operand(s.Arg0, size)
		g.emit("mov%s %s, %s", suffix(size), a0, dest)
		g.emit("neg%s %s", suffix(size), dest)
	case ir.OpAdd:
		a0 := g.operand(s.Arg0, size)
		a1 := g.operand(s.Arg1, size)
		g.emit("mov%s %s, %s", suffix(size), a0, dest)
		g.emit("add%s %s, %s", suffix(size), a1, dest)
	case ir.OpSubtract:
		a0 := g.operand(s.Arg0, size)
		a1 := g.operand(s.Arg1, size)
		g.emit("mov%s %s, %s", suffix(size), a0, dest)
		g.emit("sub%s %s, %s", suffix(size), a1, dest)
	case ir.OpMultiply:
		a0 := g.operand(s.Arg0, size)
		a1 := g.operand(s.Arg1, size)
		g.emit("mov%s %s, %s", suffix(size), a0, dest)
		g.emit("imul%s %s, %s", suffix(size), a1, dest)
	case ir.OpDivide:
		g.divide(s.Dest, s.Arg0, s.Arg1, size)
	case ir.OpCompareEq, ir.OpCompareNeq, ir.OpCompareLt, ir.OpCompareLte, ir.OpCompareGt, ir.OpCompareGte:
		a0 := g.operand(s.Arg0, size)
		a1 := g.operand(s.Arg1, size)
		g.emit("mov%s $0, %s", suffix(size), dest)
		g.emit("cmp%s %s, %s", suffix(size), a1, a0)
		g.emit("cmov%s $1, %s", cc(s.Op), dest)
	case ir.OpMove:
		a0 := g.operand(s.Arg0, size)
		g.emit("mov%s %s, %s", suffix(size), a0, dest)
	default:
		diag.ShouldNotReachHere(fmt.Sprintf("assign with operator %v", s.Op))
	}

	if addr, ok := s.Arg0.(ir.Addr); ok {
		g.release(addr)
	}
	if addr, ok := s.Arg1.(ir.Addr); ok {
		g.release(addr)
	}
}

// divide implements the corrected DIVIDE lowering: move the dividend
// into %rax (promoting a byte-width operand through INT's width, since
// idiv's 8-bit form uses a different %ax/%al pairing than the
// l/q forms), sign-extend with cltd/cqto, idiv by the divisor, then
// move the quotient out of %rax into dest. %rax and %rdx are pinned
// for the sequence and spilled first if they are already live.
func (g *Generator) divide(dest ir.Addr, a0, a1 ir.Operand, destSize int) {
	cgSize := destSize
	if cgSize == 1 {
		cgSize = ast.Int.Size()
	}

	g.reserveFixed("%rax")
	g.reserveFixed("%rdx")

	dividend := g.operand(a0, cgSize)
	divisor := g.operand(a1, cgSize)

	g.emit("mov%s %s, %s", suffix(cgSize), dividend, widthReg("%rax", cgSize))
	if cgSize == 8 {
		g.emit("cqto")
	} else {
		g.emit("cltd")
	}
	g.emit("idiv%s %s", suffix(cgSize), divisor)

	destLoc := g.destLocation(dest, destSize)
	g.emit("mov%s %s, %s", suffix(destSize), widthReg("%rax", destSize), destLoc)

	g.releaseFixed("%rdx")
	g.releaseFixed("%rax")
}

func (g *Generator) reserveFixed(reg string) {
	if !g.spill(reg) {
		diag.Bail(diag.Internal, "could not free %s", reg)
	}
	g.cur.arg.Reserve(reg)
	g.cur.general.Reserve(reg)
}

func (g *Generator) releaseFixed(reg string) {
	g.cur.arg.Release(reg)
	g.cur.general.Release(reg)
}

func (g *Generator) loadConst(s ir.Step) {
	size := g.cur.widthOf(s.Dest)
	dest := g.destLocationPreferStack(s.Dest, size)
	g.emit("mov%s $%d, %s", suffix(size), s.Value, dest)
}

func (g *Generator) ret(s ir.Step) {
	f := g.cur
	size := f.widthOf(s.Result)
	src := g.location(s.Result, size)
	g.emit("mov%s %s, %s", suffix(size), src, widthReg("%rax", size))

	for i := len(calleeSaveRegs) - 1; i >= 0; i-- {
		g.emit("popq %s", calleeSaveRegs[i])
	}
	g.emit("movq %%rbp, %%rsp")
	g.emit("popq %%rbp")
	g.emit("ret")

	g.cur = nil
}

// destLocation resolves addr's existing location if it has one,
// otherwise allocates a fresh one, preferring a general-purpose
// register and falling back to a stack slot if no register or spill
// candidate is available.
func (g *Generator) destLocation(addr ir.Addr, size int) string {
	f := g.cur
	if reg, ok := f.irToReg[addr]; ok {
		return widthReg(reg, size)
	}
	if slot, ok := f.irToSlot[addr]; ok {
		return slot
	}
	return g.acquireGeneral(addr, size)
}

// destLocationPreferStack is destLocation with the opposite
// preference, used only by LoadConst per spec.
func (g *Generator) destLocationPreferStack(addr ir.Addr, size int) string {
	f := g.cur
	if reg, ok := f.irToReg[addr]; ok {
		return widthReg(reg, size)
	}
	if slot, ok := f.irToSlot[addr]; ok {
		return slot
	}
	if slot, ok := f.stack.Allocate(size); ok {
		f.irToSlot[addr] = slot
		return slot
	}
	return g.acquireGeneral(addr, size)
}

func (g *Generator) acquireGeneral(addr ir.Addr, size int) string {
	f := g.cur
	reg, victim, salvaged, ok := f.general.Allocate()
	if ok {
		if !salvaged || g.spill(victim) {
			f.irToReg[addr] = reg
			f.regOwner[reg] = addr
			return widthReg(reg, size)
		}
		f.general.Release(reg)
	}

	slot, ok := f.stack.Allocate(size)
	diag.Assert(ok, "no register or stack slot available for %s", addr)
	f.irToSlot[addr] = slot
	return slot
}

func (g *Generator) acquireArg(addr ir.Addr, size int) string {
	f := g.cur
	reg, victim, salvaged, ok := f.arg.Allocate()
	if !ok {
		diag.Bail(diag.Unsupported, "call requires more than 6 argument registers")
	}
	if salvaged && !g.spill(victim) {
		diag.Bail(diag.Internal, "could not spill %s to free argument register %s", victim, reg)
	}
	f.irToReg[addr] = reg
	f.regOwner[reg] = addr
	return widthReg(reg, size)
}

// spill moves reg's current owner (if any) out to a freshly allocated
// stack slot and rewrites the location maps before the register is
// handed to a new owner. This is the correctness fix the REDESIGN FLAG
// on register spilling calls for: the prior salvage path reassigned a
// register without ever preserving its victim's value.
func (g *Generator) spill(reg string) bool {
	f := g.cur
	addr, ok := f.regOwner[reg]
	if !ok {
		return true
	}
	size := f.widthOf(addr)
	slot, ok := f.stack.Allocate(size)
	if !ok {
		return false
	}
	g.emit("mov%s %s, %s", suffix(size), widthReg(reg, size), slot)
	delete(f.irToReg, addr)
	f.irToSlot[addr] = slot
	delete(f.regOwner, reg)
	return true
}

// release frees addr's location, whichever pool (or the stack
// allocator) holds it. Idempotent: releasing an address with no
// recorded location is a no-op.
func (g *Generator) release(addr ir.Addr) {
	f := g.cur
	if reg, ok := f.irToReg[addr]; ok {
		f.general.Release(reg)
		f.arg.Release(reg)
		delete(f.regOwner, reg)
		delete(f.irToReg, addr)
		return
	}
	if slot, ok := f.irToSlot[addr]; ok {
		f.stack.Release(slot)
		delete(f.irToSlot, addr)
	}
}

// location resolves an existing, already-allocated address to its
// current operand text. Unlike destLocation it never allocates: a miss
// here is the "Internal inconsistency" error spec's error taxonomy
// names — a use of an IR address with no recorded location indicates a
// bug upstream in the emitter, not a condition to recover from.
func (g *Generator) location(addr ir.Addr, size int) string {
	f := g.cur
	if reg, ok := f.irToReg[addr]; ok {
		return widthReg(reg, size)
	}
	if slot, ok := f.irToSlot[addr]; ok {
		return slot
	}
	diag.Bail(diag.Internal, "no location recorded for address %s", addr)
	return ""
}

func (g *Generator) operand(op ir.Operand, size int) string {
	switch v := op.(type) {
	case ir.Imm:
		return fmt.Sprintf("$%d", int(v))
	case ir.Addr:
		return g.location(v, size)
	default:
		diag.ShouldNotReachHere("operand is neither an Addr nor an Imm")
		return ""
	}
}
