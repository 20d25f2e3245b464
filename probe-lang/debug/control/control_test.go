// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package control

import (
	"testing"

	"github.com/probechain/go-probe/probe-lang/debug/breakpoint"
	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

func newTestVM() *vm.VM {
	v := vm.New(nil, nil, 0)
	v.SetDebugInfo([]codegen.FuncEntry{{Name: "main", Offset: 0, End: 1000}},
		&codegen.DebugInfo{Lines: []codegen.LineEntry{{Offset: 0, Line: 1}}})
	v.SetSourceName("main.probe")
	return v
}

func TestStopOnEntry(t *testing.T) {
	v := newTestVM()
	bps := breakpoint.NewTable()
	var paused PauseReason
	c := New(bps, true, nil, func(reason PauseReason, bp *breakpoint.Descriptor) {
		paused = reason
	})
	c.Attach(v)

	c.onHook(v, vm.HookEvent{Kind: vm.HookLine, Line: 1})
	if paused != ReasonEntry {
		t.Fatalf("expected entry pause, got %q", paused)
	}
}

func TestBreakpointPause(t *testing.T) {
	v := newTestVM()
	bps := breakpoint.NewTable()
	bps.Add("main.probe", 5, "", "", "")

	var paused PauseReason
	var hitBP *breakpoint.Descriptor
	c := New(bps, false, nil, func(reason PauseReason, bp *breakpoint.Descriptor) {
		paused = reason
		hitBP = bp
	})
	c.Attach(v)

	c.onHook(v, vm.HookEvent{Kind: vm.HookLine, Line: 5})
	if paused != ReasonBreakpoint || hitBP == nil {
		t.Fatalf("expected a breakpoint pause, got reason=%q bp=%v", paused, hitBP)
	}
}

func TestStepOverDoesNotPauseInDeeperCall(t *testing.T) {
	v := newTestVM()
	bps := breakpoint.NewTable()
	var pauses int
	c := New(bps, false, nil, func(reason PauseReason, bp *breakpoint.Descriptor) {
		pauses++
	})
	c.Attach(v)
	c.StepOver(0)

	// Simulate a call that deepens the stack; the call event must not pause
	// or clear step-over.
	c.onHook(v, vm.HookEvent{Kind: vm.HookCall, Line: 2})
	if c.Mode() != StepOver {
		t.Fatalf("expected StepOver mode to persist across a nested call, got %v", c.Mode())
	}
	// onHook reads depth from v.CallDepth(), which this VM cannot raise
	// without executing a call, so the depth-1 line event is checked through
	// shouldStepPause directly: step-over must not pause there.
	if c.shouldStepPause(1) {
		t.Fatal("step-over paused on a line inside a deeper call")
	}
}

func TestContinueClearsStepMode(t *testing.T) {
	c := New(breakpoint.NewTable(), false, nil, nil)
	c.StepInto(0)
	c.Continue()
	if c.Mode() != StepNone {
		t.Fatalf("expected StepNone after Continue, got %v", c.Mode())
	}
}

func TestUnconditionalBreakpointHitCountIncrements(t *testing.T) {
	v := newTestVM()
	bps := breakpoint.NewTable()
	bp := bps.Add("main.probe", 5, "", "", "")

	pauses := 0
	c := New(bps, false, nil, func(reason PauseReason, got *breakpoint.Descriptor) {
		pauses++
	})
	c.Attach(v)

	c.onHook(v, vm.HookEvent{Kind: vm.HookLine, Line: 5})
	if bp.HitCount != 1 {
		t.Errorf("expected HitCount 1, got %d", bp.HitCount)
	}
	if pauses != 1 {
		t.Errorf("expected exactly one pause, got %d", pauses)
	}
}
