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

	"kestrel/utils"
)

// StackAllocator hands out negative-offset slots from %rbp, naturally
// aligned to each slot's own size. max_local_count bounds how many
// slots a function may hold at once; it is set from the function's
// declared locals at prologue time.
type StackAllocator struct {
	frameOffset   int
	slots         map[string]bool
	localCount    int
	maxLocalCount int
}

func NewStackAllocator(maxLocalCount int) *StackAllocator {
	return &StackAllocator{slots: map[string]bool{}, maxLocalCount: maxLocalCount}
}

// Allocate assigns a new slot of the given byte size. It rejects a
// size-0 request (an UNKNOWN/VOID-typed local) and a request made once
// local_count has reached max_local_count, both by returning ok=false
// rather than panicking — the caller decides whether a miss is fatal.
func (s *StackAllocator) Allocate(size int) (slot string, ok bool) {
	if size == 0 || s.localCount >= s.maxLocalCount {
		return "", false
	}
	s.frameOffset += size
	s.frameOffset = utils.AlignUp(s.frameOffset, size)
	slot = fmt.Sprintf("-%d(%%rbp)", s.frameOffset)
	s.slots[slot] = true
	s.localCount++
	return slot, true
}

// Release frees slot for reuse. Idempotent: releasing an already-free
// or unrecognized slot is a no-op.
func (s *StackAllocator) Release(slot string) {
	if !s.slots[slot] {
		return
	}
	s.slots[slot] = false
	s.localCount--
}

// FrameSize returns the total bytes the function's stack frame needs,
// subtracted from %rsp in the prologue.
func (s *StackAllocator) FrameSize() int { return s.frameOffset }
