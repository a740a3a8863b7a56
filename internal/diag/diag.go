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

// Package diag implements the fatal-error taxonomy of spec.md §7. Lowering
// and code generation report failures by panicking with an *Error; the
// single recover site is compile.Compile, which turns the panic into a
// wrapped Go error. Anything else that panics (a nil pointer, a slice
// out-of-bounds) is a genuine bug and is left to crash loud, same as the
// teacher's utils.Unimplement/ShouldNotReachHere.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a fatal error into one of the three buckets spec.md §7
// names.
type Kind int

const (
	// Unsupported covers constructs this back end explicitly refuses,
	// e.g. a call with more than 6 arguments.
	Unsupported Kind = iota
	// Internal covers an inconsistency that indicates a bug upstream of
	// this package, e.g. a use of an IR address with no recorded
	// location.
	Internal
	// AllocMiss covers a type-with-size-0 allocation request, which the
	// allocators surface as a miss rather than panicking themselves.
	AllocMiss
)

func (k Kind) String() string {
	switch k {
	case Unsupported:
		return "unsupported"
	case Internal:
		return "internal"
	case AllocMiss:
		return "alloc-miss"
	default:
		return "unknown"
	}
}

// Error is the payload carried by a diag panic.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Bail raises a fatal error of the given kind. It never returns.
func Bail(kind Kind, format string, args ...interface{}) {
	panic(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// Assert panics with an Internal error if cond is false. Used for
// invariants that should be guaranteed by an upstream, type-checked AST.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		Bail(Internal, format, args...)
	}
}

// Unimplement marks a code path that is a known, named gap (e.g. a
// Non-goal deliberately left unlowered). It never returns.
func Unimplement(what string) {
	Bail(Unsupported, "not implemented: %s", what)
}

// ShouldNotReachHere marks a code path the closed IR/AST operator sets
// make unreachable under a type-checked input. It never returns.
func ShouldNotReachHere(context string) {
	Bail(Internal, "should not reach here: %s", context)
}

// Recover turns a panicked *Error raised via Bail into a wrapped error.
// Call it in a deferred function at the single package boundary
// (compile.Compile). Panics that are not *Error continue unwinding.
func Recover(errp *error, stage string) {
	r := recover()
	if r == nil {
		return
	}
	de, ok := r.(*Error)
	if !ok {
		panic(r)
	}
	*errp = errors.Wrapf(de, "kestrel: %s failed", stage)
}
