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
	"strings"
	"testing"

	"kestrel/ast"
	"kestrel/ir"
)

func joined(lines []string) string { return strings.Join(lines, "") }

func TestGeneratePrologueAndEpilogueBalance(t *testing.T) {
	funcs := ir.FuncInfoTable{
		"identity": {{Type: ast.Int, Addr: "A", IsParam: true}},
	}
	steps := []ir.Step{
		ir.NewLabel("identity"),
		ir.NewLoadParam("A"),
		ir.NewReturn("A"),
	}
	lines := Generate(steps, funcs, false)
	text := joined(lines)

	if !strings.Contains(text, "pushq %rbp") || !strings.Contains(text, "movq %rsp, %rbp") {
		t.Fatalf("expected a standard prologue, got:\n%s", text)
	}
	// the corrected bug: the frame is carved out of %rsp, not %rbp.
	if !strings.Contains(text, "subq $") || strings.Contains(text, "subq $8, %rbp") {
		t.Fatalf("expected subq against %%rsp in the prologue, got:\n%s", text)
	}
	if !strings.Contains(text, "popq %rbp") || !strings.Contains(text, "ret") {
		t.Fatalf("expected a standard epilogue, got:\n%s", text)
	}

	// the epilogue must pop the callee-saved registers in the reverse
	// order they were pushed.
	pushIdx := map[string]int{}
	popIdx := map[string]int{}
	for i, l := range lines {
		for _, r := range calleeSaveRegs {
			if strings.Contains(l, "pushq "+r) {
				pushIdx[r] = i
			}
			if strings.Contains(l, "popq "+r) {
				popIdx[r] = i
			}
		}
	}
	for i := 0; i < len(calleeSaveRegs)-1; i++ {
		a, b := calleeSaveRegs[i], calleeSaveRegs[i+1]
		if pushIdx[a] >= pushIdx[b] {
			t.Fatalf("expected %s pushed before %s", a, b)
		}
		if popIdx[a] <= popIdx[b] {
			t.Fatalf("expected %s popped after %s (reverse order), got pop indices %v", a, b, popIdx)
		}
	}
}

func TestGenerateAddUsesSizedSuffix(t *testing.T) {
	funcs := ir.FuncInfoTable{
		"add": {
			{Type: ast.Int, Addr: "A", IsParam: true},
			{Type: ast.Int, Addr: "B", IsParam: true},
		},
	}
	steps := []ir.Step{
		ir.NewLabel("add"),
		ir.NewLoadParam("A"),
		ir.NewLoadParam("B"),
		ir.NewAssign("a0", ir.OpAdd, ir.Addr("A"), ir.Addr("B")),
		ir.NewReturn("a0"),
	}
	lines := Generate(steps, funcs, false)
	text := joined(lines)

	if !strings.Contains(text, "addl") {
		t.Fatalf("expected a width-suffixed add for two 4-byte ints, got:\n%s", text)
	}
}

func TestGenerateSubtractOperandOrderMatchesDestMinuend(t *testing.T) {
	// dest = a0 - a1 lowers as: mov a0, dest; sub a1, dest
	funcs := ir.FuncInfoTable{
		"sub": {
			{Type: ast.Int, Addr: "A", IsParam: true},
			{Type: ast.Int, Addr: "B", IsParam: true},
		},
	}
	steps := []ir.Step{
		ir.NewLabel("sub"),
		ir.NewLoadParam("A"),
		ir.NewLoadParam("B"),
		ir.NewAssign("a0", ir.OpSubtract, ir.Addr("A"), ir.Addr("B")),
		ir.NewReturn("a0"),
	}
	lines := Generate(steps, funcs, false)
	foundMov, foundSub := false, false
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "movl") && i+1 < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i+1]), "subl") {
			foundMov, foundSub = true, true
		}
	}
	if !foundMov || !foundSub {
		t.Fatalf("expected a mov immediately followed by a sub, got:\n%s", joined(lines))
	}
}

func TestGenerateComparisonUsesSizedCmp(t *testing.T) {
	funcs := ir.FuncInfoTable{
		"cmp": {
			{Type: ast.Int, Addr: "A", IsParam: true},
			{Type: ast.Int, Addr: "B", IsParam: true},
		},
	}
	steps := []ir.Step{
		ir.NewLabel("cmp"),
		ir.NewLoadParam("A"),
		ir.NewLoadParam("B"),
		ir.NewJumpIf("L1", ir.OpCompareLt, ir.Addr("A"), ir.Addr("B")),
		ir.NewJump("L2"),
		ir.NewLabel("L1"),
		ir.NewLabel("L2"),
		ir.NewReturn("A"),
	}
	lines := Generate(steps, funcs, false)
	text := joined(lines)
	if !strings.Contains(text, "cmpl") {
		t.Fatalf("expected a width-suffixed cmp (the corrected bug), got:\n%s", text)
	}
	if !strings.Contains(text, "jl L1") {
		t.Fatalf("expected a jl to L1, got:\n%s", text)
	}
}

func TestGenerateCallFuncLoadsArgumentAndZeroesEax(t *testing.T) {
	funcs := ir.FuncInfoTable{
		"caller": nil,
	}
	steps := []ir.Step{
		ir.NewLabel("caller"),
		ir.NewPushArg(ir.Imm(1), ast.Int),
		ir.NewCallFunc("helper"),
		ir.NewStoreYield("a0"),
		ir.NewReturn("a0"),
	}
	lines := Generate(steps, funcs, false)
	text := joined(lines)

	if !strings.Contains(text, "call helper") {
		t.Fatalf("expected a call instruction, got:\n%s", text)
	}
	if !strings.Contains(text, "xorl %eax, %eax") {
		t.Fatalf("expected %%eax zeroed before a variadic-safe call, got:\n%s", text)
	}
	if !strings.Contains(text, "movl $1, %edi") {
		t.Fatalf("expected the first argument loaded into %%edi, got:\n%s", text)
	}
}

func TestGenerateDivideUsesCltdAndIdiv(t *testing.T) {
	funcs := ir.FuncInfoTable{
		"divf": {
			{Type: ast.Int, Addr: "A", IsParam: true},
			{Type: ast.Int, Addr: "B", IsParam: true},
		},
	}
	steps := []ir.Step{
		ir.NewLabel("divf"),
		ir.NewLoadParam("A"),
		ir.NewLoadParam("B"),
		ir.NewAssign("a0", ir.OpDivide, ir.Addr("A"), ir.Addr("B")),
		ir.NewReturn("a0"),
	}
	lines := Generate(steps, funcs, false)
	text := joined(lines)
	if !strings.Contains(text, "cltd") {
		t.Fatalf("expected cltd before a 4-byte idiv, got:\n%s", text)
	}
	if !strings.Contains(text, "idivl") {
		t.Fatalf("expected a width-suffixed idiv, got:\n%s", text)
	}
}

func TestPoolSalvagesLRUWhenExhausted(t *testing.T) {
	p := newGeneralPool()
	var last string
	for i := 0; i < len(generalRegs); i++ {
		reg, _, salvaged, ok := p.Allocate()
		if !ok || salvaged {
			t.Fatalf("expected the first %d allocations to be free registers", len(generalRegs))
		}
		last = reg
	}
	_ = last
	reg, victim, salvaged, ok := p.Allocate()
	if !ok || !salvaged {
		t.Fatalf("expected the pool to salvage its LRU victim once exhausted")
	}
	if victim != generalRegs[0] {
		t.Fatalf("expected the oldest-allocated register %s to be salvaged, got %s", generalRegs[0], reg)
	}
}

func TestArgPoolNeverSalvages(t *testing.T) {
	p := newArgPool()
	for range argRegs {
		_, _, _, ok := p.Allocate()
		if !ok {
			t.Fatal("expected all 6 argument registers to be available")
		}
	}
	_, _, salvaged, ok := p.Allocate()
	if ok || salvaged {
		t.Fatal("expected a 7th argument register request to fail outright, not salvage")
	}
}

func TestStackAllocatorNaturalAlignment(t *testing.T) {
	s := NewStackAllocator(4)
	slot1, ok := s.Allocate(1)
	if !ok || slot1 != "-1(%rbp)" {
		t.Fatalf("expected the first byte slot at -1(%%rbp), got %q", slot1)
	}
	slot2, ok := s.Allocate(4)
	if !ok {
		t.Fatal("expected the second slot to allocate")
	}
	if slot2 != "-8(%rbp)" {
		t.Fatalf("expected the 4-byte slot aligned up to -8(%%rbp), got %q", slot2)
	}
}
