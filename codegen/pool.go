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

// Pool is a bounded set of machine registers handed out in declared
// order, with LRU victim selection once it is exhausted. Two instances
// exist per function: the general-purpose pool and the ABI argument
// pool.
type Pool struct {
	regs         []string
	inUse        map[string]bool
	lru          []string
	allowSalvage bool
}

func newPool(regs []string, allowSalvage bool) *Pool {
	return &Pool{regs: regs, inUse: map[string]bool{}, allowSalvage: allowSalvage}
}

var generalRegs = []string{"%r10", "%r11", "%rbx", "%r12", "%r13", "%r14", "%r15"}
var argRegs = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

func newGeneralPool() *Pool { return newPool(generalRegs, true) }
func newArgPool() *Pool     { return newPool(argRegs, false) }

// Allocate scans for a free register in declared order. If none is
// free it salvages the oldest held register instead of failing
// outright (victim, salvaged=true) — except the argument pool, which
// never salvages: a 7th concurrent argument register must fail, not
// spill an ABI argument register out from under a live call sequence
// (stack-passed arguments are unsupported).
//
// Allocate itself never spills the victim's value; the caller — the
// only party that knows the IR-address-to-location mapping — must move
// the victim's contents to a new stack slot and update that mapping
// before treating the register as free.
func (p *Pool) Allocate() (reg, victim string, salvaged, ok bool) {
	for _, r := range p.regs {
		if !p.inUse[r] {
			p.inUse[r] = true
			p.lru = append(p.lru, r)
			return r, "", false, true
		}
	}
	if !p.allowSalvage || len(p.lru) == 0 {
		return "", "", false, false
	}
	victim = p.lru[0]
	p.lru = append(p.lru[1:], victim)
	return victim, victim, true, true
}

// Release clears reg's in-use flag. Idempotent, and a no-op for a name
// this pool never handed out.
func (p *Pool) Release(reg string) {
	if !p.inUse[reg] {
		return
	}
	p.inUse[reg] = false
	for i, r := range p.lru {
		if r == reg {
			p.lru = append(p.lru[:i], p.lru[i+1:]...)
			break
		}
	}
}

// Reserve marks reg in-use without adding it to the LRU list, so it is
// never chosen as a salvage victim while reserved. Used to pin %rdx for
// the duration of a DIVIDE sequence. A no-op for a name this pool does
// not recognize.
func (p *Pool) Reserve(reg string) {
	if !p.contains(reg) {
		return
	}
	p.inUse[reg] = true
}

func (p *Pool) contains(reg string) bool {
	for _, r := range p.regs {
		if r == reg {
			return true
		}
	}
	return false
}

// ReleaseAll clears every in-use flag and the LRU list. Called after
// each CallFunc once the argument registers' values are dead; at
// function exit the pools are discarded along with their frame.
func (p *Pool) ReleaseAll() {
	p.inUse = map[string]bool{}
	p.lru = nil
}
