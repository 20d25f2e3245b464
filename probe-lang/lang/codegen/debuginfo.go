// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Debug metadata emitted alongside bytecode: source line boundaries and
// register-to-name bindings. Consumed by the debugger's Frame Inspector
// (probe-lang/debug/dbgframe) to answer "what line is this", "what is this
// register called" without re-parsing source at pause time.
package codegen

import "sort"

// LineEntry maps a byte offset into Bytecode.Code to the source line that
// produced the instruction at that offset.
type LineEntry struct {
	Offset int
	Line   int
}

// Var names a register binding visible within a function: a parameter or a
// local declared by `let`.
type Var struct {
	Name string
	Reg  uint8
	Line int // declaration line, 0 if unknown
}

// DebugInfo is the per-Bytecode debug sidecar. It is produced by Generate
// whenever the originating ir.Instruction values carry non-zero Line fields;
// it is always safe to consult (nil/empty fields just mean "no info").
type DebugInfo struct {
	Lines []LineEntry // sorted by Offset, ascending
}

// LineAt returns the source line active at the given code offset, or 0 if
// no line information covers it. It is the last LineEntry whose Offset is
// <= pc.
func (d *DebugInfo) LineAt(pc int) int {
	if d == nil || len(d.Lines) == 0 {
		return 0
	}
	i := sort.Search(len(d.Lines), func(i int) bool { return d.Lines[i].Offset > pc })
	if i == 0 {
		return 0
	}
	return d.Lines[i-1].Line
}

// FunctionAt returns the FuncEntry whose [Offset, End) range contains pc, or
// nil if pc falls outside every known function (e.g. top-level script code
// emitted before any `fn` declaration).
func FunctionAt(functions []FuncEntry, pc int) *FuncEntry {
	var best *FuncEntry
	for i := range functions {
		fn := &functions[i]
		if pc >= fn.Offset && (fn.End == 0 || pc < fn.End) {
			if best == nil || fn.Offset > best.Offset {
				best = fn
			}
		}
	}
	return best
}

// addLine records a line-table entry if line is known and distinct from the
// most recently recorded line (the VM only needs boundaries, not a
// one-entry-per-instruction table).
func (g *Generator) addLine(line int) {
	if line == 0 {
		return
	}
	n := len(g.debugInfo.Lines)
	if n > 0 && g.debugInfo.Lines[n-1].Line == line {
		return
	}
	g.debugInfo.Lines = append(g.debugInfo.Lines, LineEntry{Offset: len(g.code), Line: line})
}
