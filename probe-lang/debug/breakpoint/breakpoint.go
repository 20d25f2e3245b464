// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package breakpoint is the debugger's Breakpoint Table (spec component C):
// it stores line breakpoints keyed by source file and line, with optional
// conditions and hit-count gating, and resolves path equivalence the way a
// client's "./foo.probe" and the VM's "foo.probe" should still match.
package breakpoint

import (
	"sort"
	"strings"
)

// Descriptor is one registered breakpoint, mirroring LRDB's break_point
// record (spec §4's "set_breakpoint" / original_source/'s break_point.h)
// plus the supplemented per-breakpoint Enabled flag.
type Descriptor struct {
	ID            int
	File          string
	Line          int
	Func          string // optional: function name the breakpoint targets, "" if line-only
	Condition     string // optional boolean expression; empty means unconditional
	HitCondition  string // optional comparison against HitCount, e.g. ">= 3"
	HitCount      int    // number of times Hit was called: arrivals while enabled with Condition true (running total)
	Enabled       bool
}

// Table holds every registered breakpoint for one debug session.
type Table struct {
	nextID int
	byFile map[string][]*Descriptor

	// WorkingDir, if set, is prepended to a relative file path at insertion
	// and used to absolutize the VM-reported source path at lookup time
	// (spec §4.3), so a client registering "main.probe" while attached from
	// a different cwd than the VM still resolves to the same key.
	WorkingDir string
}

// NewTable creates an empty breakpoint table.
func NewTable() *Table {
	return &Table{byFile: make(map[string][]*Descriptor)}
}

// Add registers a new breakpoint and returns its Descriptor. The file path
// is resolved against WorkingDir (if relative) and normalized before
// insertion so later lookups by the VM's own source name (a raw filename
// with no leading "./") still find it.
func (t *Table) Add(file string, line int, fn, condition, hitCondition string) *Descriptor {
	t.nextID++
	d := &Descriptor{
		ID:           t.nextID,
		File:         normalizePath(t.resolve(file)),
		Line:         line,
		Func:         fn,
		Condition:    condition,
		HitCondition: hitCondition,
		Enabled:      true,
	}
	key := d.File
	t.byFile[key] = append(t.byFile[key], d)
	return d
}

// AtLine returns every enabled breakpoint matching file/line, in
// registration order. A disabled breakpoint is never returned: the
// controller treats "disabled" as "doesn't exist" for pause purposes.
//
// file is first stripped of the VM's leading "@" source-name sigil (see
// probe-lang/lang/vm/activation.go's SetSourceName), then resolved against
// WorkingDir if relative, matching the insertion-side resolution in Add.
func (t *Table) AtLine(file string, line int) []*Descriptor {
	var out []*Descriptor
	file = strings.TrimPrefix(file, "@")
	key := normalizePath(t.resolve(file))
	for _, d := range t.byFile[key] {
		if d.Line == line && d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// resolve prepends WorkingDir to file if file is relative and a working
// directory is configured; otherwise file is returned unchanged.
func (t *Table) resolve(file string) string {
	if t.WorkingDir == "" || isAbsPath(file) {
		return file
	}
	return strings.TrimRight(t.WorkingDir, "/\\") + "/" + file
}

// isAbsPath reports whether p looks absolute under either a POSIX ("/...")
// or Windows ("C:\...") path convention, without depending on the host
// OS's own path.IsAbs (the VM's source paths are not necessarily native to
// the host this debugger runs on).
func isAbsPath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	return len(p) >= 2 && p[1] == ':'
}

// All returns every breakpoint across every file, in a stable order (file,
// then registration order), for the get_breakpoints dispatcher method.
func (t *Table) All() []*Descriptor {
	files := make([]string, 0, len(t.byFile))
	for f := range t.byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	var out []*Descriptor
	for _, f := range files {
		out = append(out, t.byFile[f]...)
	}
	return out
}

// SetEnabled toggles a breakpoint by ID. Returns false if id is unknown —
// the supplemented set_breakpoint_enabled method (see DESIGN.md).
func (t *Table) SetEnabled(id int, enabled bool) bool {
	for _, list := range t.byFile {
		for _, d := range list {
			if d.ID == id {
				d.Enabled = enabled
				return true
			}
		}
	}
	return false
}

// ClearFile removes every breakpoint registered against file.
func (t *Table) ClearFile(file string) {
	delete(t.byFile, normalizePath(t.resolve(file)))
}

// ClearLine removes every breakpoint at file:line.
func (t *Table) ClearLine(file string, line int) {
	key := normalizePath(t.resolve(file))
	list := t.byFile[key]
	kept := list[:0]
	for _, d := range list {
		if d.Line != line {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		delete(t.byFile, key)
	} else {
		t.byFile[key] = kept
	}
}

// ClearAll removes every breakpoint in the table.
func (t *Table) ClearAll() {
	t.byFile = make(map[string][]*Descriptor)
}

// Hit increments a breakpoint's running hit count and reports whether
// the hit_condition (if any) is satisfied — the controller only pauses
// execution when Hit returns true.
func (d *Descriptor) Hit() bool {
	d.HitCount++
	if d.HitCondition == "" {
		return true
	}
	return evalHitCondition(d.HitCondition, d.HitCount)
}

// evalHitCondition supports the small comparison grammar LRDB's
// hit_condition uses: an optional operator (">=", ">", "==", "!=", "<",
// "<=", "%") followed by an integer, e.g. ">= 3" or "% 2". A bare integer (or an
// empty condition once HitCondition != "" is already established by the
// caller) is treated as ">=", matching "break after N hits" semantics.
func evalHitCondition(cond string, count int) bool {
	cond = strings.TrimSpace(cond)
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<", "%"} {
		if strings.HasPrefix(cond, op) {
			n, ok := parseInt(strings.TrimSpace(cond[len(op):]))
			if !ok {
				return true
			}
			switch op {
			case ">=":
				return count >= n
			case "<=":
				return count <= n
			case "==":
				return count == n
			case "!=":
				return count != n
			case ">":
				return count > n
			case "<":
				return count < n
			case "%":
				return n != 0 && count%n == 0
			}
		}
	}
	n, ok := parseInt(cond)
	if !ok {
		return true
	}
	return count >= n
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// normalizePath makes file path comparisons resilient to the "./foo.probe"
// vs "foo.probe" vs "foo\\bar.probe" forms a client and the VM's own
// sourceName may each use.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return p
}
