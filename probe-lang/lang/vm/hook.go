// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import "github.com/probechain/go-probe/probe-lang/lang/codegen"

// HookEventKind classifies a debug hook callback.
type HookEventKind int

const (
	// HookLine fires when execution crosses into a new source line.
	HookLine HookEventKind = iota
	// HookCall fires immediately after a CALL instruction transfers control
	// to the callee's first instruction.
	HookCall
	// HookReturn fires immediately after a RETURN instruction transfers
	// control back to the caller.
	HookReturn
)

func (k HookEventKind) String() string {
	switch k {
	case HookLine:
		return "line"
	case HookCall:
		return "call"
	case HookReturn:
		return "return"
	default:
		return "unknown"
	}
}

// HookEvent describes one debug callback invocation.
type HookEvent struct {
	Kind HookEventKind
	Line int // source line active at the time of the event, 0 if unknown
}

// HookFunc is invoked synchronously on the VM's executing goroutine. It must
// not call back into Step/Run — only read-only introspection methods
// (Register, Activation, locals/upvalues) and SetRegister are safe.
type HookFunc func(vm *VM, event HookEvent)

// SetDebugInfo installs the function table and line table produced by
// codegen.Generate, enabling hook firing and Activation(). A VM with no
// debug info installed never fires hooks (fireLineHookIfNeeded is a no-op),
// which keeps plain (non-debugged) execution free of the bookkeeping.
func (vm *VM) SetDebugInfo(functions []codegen.FuncEntry, debug *codegen.DebugInfo) {
	vm.functions = functions
	vm.debug = debug
}

// SetHook installs the debug callback. Pass nil to detach.
func (vm *VM) SetHook(fn HookFunc) {
	vm.hook = fn
	vm.lastLine = 0
}

func (vm *VM) fireLineHookIfNeeded() {
	if vm.hook == nil || vm.debug == nil {
		return
	}
	line := vm.debug.LineAt(int(vm.pc))
	if line == 0 || line == vm.lastLine {
		return
	}
	vm.lastLine = line
	vm.hook(vm, HookEvent{Kind: HookLine, Line: line})
}

func (vm *VM) fireCallHook() {
	if vm.hook == nil {
		return
	}
	vm.hook(vm, HookEvent{Kind: HookCall, Line: vm.lineAtPC()})
}

func (vm *VM) fireReturnHook() {
	if vm.hook == nil {
		return
	}
	vm.hook(vm, HookEvent{Kind: HookReturn, Line: vm.lineAtPC()})
}

func (vm *VM) lineAtPC() int {
	if vm.debug == nil {
		return 0
	}
	return vm.debug.LineAt(int(vm.pc))
}
