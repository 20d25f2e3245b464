// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package dbgframe is the debugger's Frame Inspector (spec component B): it
// enumerates locals/upvalues for a paused call-stack level and evaluates
// watch expressions against a synthesized environment layering locals over
// upvalues over globals.
package dbgframe

import (
	"fmt"

	"github.com/probechain/go-probe/probe-lang/debug/dbgvalue"
	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// defaultDepth is the protocol's default inspection depth (spec §4.1, the
// wire contract's depth?=1 default) applied whenever a caller doesn't
// override it.
const defaultDepth = 1

// Env is the name resolution environment synthesized for one paused call
// frame, per spec §4.2: locals shadow upvalues shadow globals, each layer
// independently toggleable via IncludeLocal/IncludeUpvalue/IncludeGlobal
// (the eval command's global/upvalue/local flags). Since the current
// probe-lang codegen never emits closures, Upvalues is always empty (see
// probe-lang/lang/vm/activation.go's UpvaluesAt) and Globals holds only
// top-level function names — there is no mutable global-variable store in
// this VM generation, so a name found there resolves to a function
// reference rather than a value.
type Env struct {
	VM      *vm.VM
	Level   int
	Locals  map[string]uint8 // name -> register
	Globals map[string]int   // name -> function byte offset

	Depth int // FromRegister expansion depth for values resolved through this Env

	IncludeLocal   bool
	IncludeUpvalue bool
	IncludeGlobal  bool
}

// NewEnv builds the environment for call-stack level `level` of v, with all
// three name layers enabled and the default marshalling depth.
func NewEnv(v *vm.VM, level int) *Env {
	return NewEvalEnv(v, level, defaultDepth, true, true, true)
}

// NewEvalEnv builds the environment eval uses, where depth and each name
// layer are controlled by the wire request (spec §4.6's eval params).
func NewEvalEnv(v *vm.VM, level, depth int, includeGlobal, includeUpvalue, includeLocal bool) *Env {
	locals := make(map[string]uint8)
	for _, lv := range v.LocalsAt(level) {
		locals[lv.Name] = lv.Reg
	}
	globals := make(map[string]int)
	for _, fn := range v.Functions() {
		globals[fn.Name] = fn.Offset
	}
	return &Env{
		VM:             v,
		Level:          level,
		Locals:         locals,
		Globals:        globals,
		Depth:          depth,
		IncludeLocal:   includeLocal,
		IncludeUpvalue: includeUpvalue,
		IncludeGlobal:  includeGlobal,
	}
}

// Lookup resolves an identifier to a marshalled Value. Returns an error if
// name is not a local or a known top-level function, or if the layer it
// was found in has been disabled for this Env.
func (e *Env) Lookup(name string) (dbgvalue.Value, error) {
	if e.IncludeLocal {
		if reg, ok := e.Locals[name]; ok {
			if e.Level != 0 {
				return dbgvalue.Value{}, fmt.Errorf("dbgframe: cannot read locals of a non-top frame (level %d)", e.Level)
			}
			word := e.VM.Register(reg)
			return dbgvalue.FromRegister(e.VM.Memory(), word, e.Depth, map[uint64]bool{}), nil
		}
	}
	if e.IncludeGlobal {
		if _, ok := e.Globals[name]; ok {
			return dbgvalue.Str("<function " + name + ">"), nil
		}
	}
	return dbgvalue.Value{}, fmt.Errorf("dbgframe: undefined identifier %q", name)
}

// Assign writes a new value into a local binding by name. Returns an error
// if name is not a local of the top frame, or if level != 0 (the VM only
// exposes live registers for the currently executing frame).
func (e *Env) Assign(name string, v dbgvalue.Value) error {
	reg, ok := e.Locals[name]
	if !ok {
		return fmt.Errorf("dbgframe: %q is not a local in this frame", name)
	}
	if e.Level != 0 {
		return fmt.Errorf("dbgframe: cannot assign locals of a non-top frame (level %d)", e.Level)
	}
	word, err := dbgvalue.ToRegister(e.VM.Memory(), v)
	if err != nil {
		return err
	}
	e.VM.SetRegister(reg, word)
	return nil
}

// LocalNames returns local names in declaration order (params first, then
// body locals), matching codegen.FuncEntry's layout.
func LocalNames(v *vm.VM, level int) []string {
	vars := v.LocalsAt(level)
	names := make([]string, len(vars))
	for i, lv := range vars {
		names[i] = lv.Name
	}
	return names
}

// Locals returns the name -> marshalled Value map for call-stack level
// `level` at the given marshalling depth, plus the key list in declaration
// order.
func Locals(v *vm.VM, level, depth int) (keys []string, values map[string]dbgvalue.Value, err error) {
	vars := v.LocalsAt(level)
	values = make(map[string]dbgvalue.Value, len(vars))
	keys = make([]string, 0, len(vars))
	if level != 0 {
		// Only the top frame's registers are live; deeper frames' locals were
		// already spilled to the callStack, which does not retain register
		// contents (see probe-lang/lang/vm/vm.go's frame struct) — report
		// declared names with nil values rather than erroring the whole call.
		for _, lv := range vars {
			keys = append(keys, lv.Name)
			values[lv.Name] = dbgvalue.Nil()
		}
		return keys, values, nil
	}
	for _, lv := range vars {
		word := v.Register(lv.Reg)
		keys = append(keys, lv.Name)
		values[lv.Name] = dbgvalue.FromRegister(v.Memory(), word, depth, map[uint64]bool{})
	}
	return keys, values, nil
}

// Upvalues always returns an empty result: see vm.VM.UpvaluesAt. depth is
// accepted for signature parity with Locals/Globals and a future VM
// generation that actually captures upvalues.
func Upvalues(v *vm.VM, level, depth int) ([]string, map[string]dbgvalue.Value) {
	return nil, map[string]dbgvalue.Value{}
}

// Globals returns the name -> marshalled Value map of top-level function
// references, the closest analog to a Lua global-variable table this VM
// generation offers (see Env's doc comment). depth is accepted for
// signature parity; function references are always a single opaque scalar
// regardless of requested depth.
func Globals(v *vm.VM, depth int) (keys []string, values map[string]dbgvalue.Value) {
	fns := v.Functions()
	keys = make([]string, len(fns))
	values = make(map[string]dbgvalue.Value, len(fns))
	for i, fn := range fns {
		keys[i] = fn.Name
		values[fn.Name] = dbgvalue.Str("<function " + fn.Name + ">")
	}
	return keys, values
}

// SetLocal writes a JSON-decoded value into the named local of the top
// frame. Returns an error if the identifier is unknown or level != 0.
func SetLocal(v *vm.VM, level int, name string, val dbgvalue.Value) error {
	env := NewEnv(v, level)
	return env.Assign(name, val)
}

// FunctionAt is re-exported for dispatch handlers that need a FuncEntry
// without importing codegen directly.
func FunctionAt(v *vm.VM, offset int) *codegen.FuncEntry {
	return codegen.FunctionAt(v.Functions(), offset)
}
