// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package control is the debugger's Execution Controller (spec component
// D): a small state machine driven by VM hook callbacks that decides when
// to pause execution for stepping and breakpoints, mirroring LRDB's
// debugger_interface step bookkeeping (original_source/'s debugger.cpp).
package control

import (
	"github.com/probechain/go-probe/probe-lang/debug/breakpoint"
	"github.com/probechain/go-probe/probe-lang/debug/dbgframe"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// StepMode is the controller's current stepping intent.
type StepMode int

const (
	StepNone StepMode = iota // run freely until a breakpoint or pause() request
	StepInto                 // pause at the next line, any call depth
	StepOver                 // pause at the next line at the same or shallower call depth
	StepOut                  // pause at the next line shallower than the step's starting depth
)

// PauseReason is reported to the client alongside the paused notification,
// matching LRDB's pause reason strings (spec §5.2).
type PauseReason string

const (
	ReasonEntry      PauseReason = "entry"
	ReasonStep       PauseReason = "step"
	ReasonBreakpoint PauseReason = "breakpoint"
	ReasonPause      PauseReason = "pause"
	ReasonExit       PauseReason = "exit"
)

// TickFunc is invoked once per hook event while the controller is not
// paused; PauseFunc is invoked once when the controller decides to pause
// and blocks until the caller resumes it by changing mode via Continue/Step*.
// Both are injected rather than referenced via a back-pointer to the server
// (spec §9 design note), keeping Controller testable without a live
// transport or VM.
type TickFunc func()
type PauseFunc func(reason PauseReason, bp *breakpoint.Descriptor)

// Controller is the per-session execution state machine. It is installed as
// a vm.HookFunc via Attach.
type Controller struct {
	bps   *breakpoint.Table
	mode  StepMode
	depth int // call depth captured when a step began; meaning depends on mode

	onTick  TickFunc
	onPause PauseFunc

	entryPending bool // true until the first line hook fires (stop-on-entry)
}

// New creates a Controller bound to the given breakpoint table. stopOnEntry
// causes the very first line event to pause with ReasonEntry, matching
// LRDB's default "break immediately" behavior when a client attaches before
// the script runs.
func New(bps *breakpoint.Table, stopOnEntry bool, onTick TickFunc, onPause PauseFunc) *Controller {
	return &Controller{
		bps:          bps,
		mode:         StepNone,
		onTick:       onTick,
		onPause:      onPause,
		entryPending: stopOnEntry,
	}
}

// Attach installs the controller as v's debug hook.
func (c *Controller) Attach(v *vm.VM) {
	v.SetHook(c.onHook)
}

func (c *Controller) onHook(v *vm.VM, ev vm.HookEvent) {
	switch ev.Kind {
	case vm.HookCall:
		// A call deepens the stack; step-over/step-out pauses are gated on
		// depth in shouldStepPause, so no action is needed here beyond the
		// tick callback.
		if c.onTick != nil {
			c.onTick()
		}
		return
	case vm.HookReturn:
		if c.onTick != nil {
			c.onTick()
		}
		return
	}

	// HookLine.
	if c.entryPending {
		c.entryPending = false
		c.mode = StepNone
		if c.onPause != nil {
			c.onPause(ReasonEntry, nil)
		}
		return
	}

	info, _ := v.Activation(0)
	depth := v.CallDepth()

	if bp := c.matchBreakpoint(v, info.Source, ev.Line); bp != nil {
		c.mode = StepNone
		if c.onPause != nil {
			c.onPause(ReasonBreakpoint, bp)
		}
		return
	}

	if c.shouldStepPause(depth) {
		c.mode = StepNone
		if c.onPause != nil {
			c.onPause(ReasonStep, nil)
		}
		return
	}

	if c.onTick != nil {
		c.onTick()
	}
}

// matchBreakpoint returns the first breakpoint at source:line whose
// Condition (if any) evaluates truthy against the paused top frame and
// whose resulting Hit() (hit_condition gating) passes, per spec §4.4 step
// 4. Condition is evaluated with the Frame Inspector's own Eval against a
// fresh level-0 Env — a condition that fails to parse/evaluate is treated
// as not-true rather than aborting the whole line event, so one broken
// watch expression cannot wedge execution.
func (c *Controller) matchBreakpoint(v *vm.VM, source string, line int) *breakpoint.Descriptor {
	if c.bps == nil {
		return nil
	}
	for _, bp := range c.bps.AtLine(source, line) {
		if bp.Condition != "" && !c.conditionTrue(v, bp.Condition) {
			continue
		}
		if bp.Hit() {
			return bp
		}
	}
	return nil
}

func (c *Controller) conditionTrue(v *vm.VM, expr string) bool {
	env := dbgframe.NewEnv(v, 0)
	val, err := dbgframe.Eval(env, expr)
	if err != nil {
		return false
	}
	return dbgframe.Truthy(val)
}

func (c *Controller) shouldStepPause(depth int) bool {
	switch c.mode {
	case StepInto:
		return true
	case StepOver:
		return depth <= c.depth
	case StepOut:
		return depth < c.depth
	default:
		return false
	}
}

// Continue resumes free execution.
func (c *Controller) Continue() { c.mode = StepNone }

// StepInto arms a pause at the very next line event, regardless of depth.
func (c *Controller) StepInto(currentDepth int) {
	c.mode = StepInto
	c.depth = currentDepth
}

// StepOver arms a pause at the next line at or above the current depth —
// calls made from here run to completion without pausing.
func (c *Controller) StepOver(currentDepth int) {
	c.mode = StepOver
	c.depth = currentDepth
}

// StepOut arms a pause at the next line strictly above the current depth —
// i.e. after the current function returns.
func (c *Controller) StepOut(currentDepth int) {
	c.mode = StepOut
	c.depth = currentDepth
}

// Pause requests an immediate pause at the next line event, independent of
// breakpoints — the controller implements it by escalating to StepInto,
// since "next line, any depth" is exactly pause's semantics.
func (c *Controller) Pause(currentDepth int) {
	c.StepInto(currentDepth)
}

// Mode reports the controller's current step mode, for tests and status
// queries.
func (c *Controller) Mode() StepMode { return c.mode }
