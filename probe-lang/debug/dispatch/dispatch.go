// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package dispatch is the debugger's Command Dispatcher (spec component F):
// a static method table translating decoded protocol.Request values into
// calls against the breakpoint table, execution controller, and frame
// inspector, and marshalling their results back into wire values.
package dispatch

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/probechain/go-probe/probe-lang/debug/breakpoint"
	"github.com/probechain/go-probe/probe-lang/debug/control"
	"github.com/probechain/go-probe/probe-lang/debug/dbgframe"
	"github.com/probechain/go-probe/probe-lang/debug/dbgvalue"
	"github.com/probechain/go-probe/probe-lang/debug/protocol"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// Session bundles the per-connection state a dispatcher method needs: the
// paused VM, its breakpoint table, and its execution controller. The
// dispatcher never blocks inside a handler — pausing/resuming happens via
// the controller, which the server loop drives separately.
type Session struct {
	VM   *vm.VM
	BPs  *breakpoint.Table
	Ctrl *control.Controller
}

// Handler processes one decoded request's params and returns the JSON
// result payload (already dbgvalue-marshalled where applicable) or an error.
type Handler func(s *Session, params json.RawMessage) (interface{}, error)

// Table is the static method name -> Handler registry.
var Table = map[string]Handler{
	"step":                   handleStep,
	"step_in":                handleStepIn,
	"step_out":               handleStepOut,
	"continue":               handleContinue,
	"pause":                  handlePause,
	"add_breakpoint":         handleAddBreakpoint,
	"clear_breakpoints":      handleClearBreakpoints,
	"get_breakpoints":        handleGetBreakpoints,
	"set_breakpoint_enabled": handleSetBreakpointEnabled,
	"get_source":             handleGetSource,
	"get_stacktrace":         handleGetStacktrace,
	"get_local_variable":     handleGetLocalVariable,
	"get_upvalues":           handleGetUpvalues,
	"get_global":             handleGetGlobal,
	"eval":                   handleEval,
	"set_local":              handleSetLocal,
}

// Dispatch looks up and invokes the handler for req.Method.
func Dispatch(s *Session, req *protocol.Request) (interface{}, error) {
	h, ok := Table[req.Method]
	if !ok {
		return nil, &protocol.ErrorObject{Code: protocol.ErrMethodNotFound, Message: "unknown method: " + req.Method}
	}
	result, err := h(s, req.Params)
	if err != nil {
		if _, ok := err.(*protocol.ErrorObject); ok {
			return nil, err
		}
		return nil, &protocol.ErrorObject{Code: protocol.ErrInternalError, Message: err.Error()}
	}
	return result, nil
}

func handleStep(s *Session, _ json.RawMessage) (interface{}, error) {
	// step is the documented alias for step_over (spec §5.1's "step ==
	// step_over" note, preserved from original_source/'s command table).
	s.Ctrl.StepOver(s.VM.CallDepth())
	return map[string]bool{"ok": true}, nil
}

func handleStepIn(s *Session, _ json.RawMessage) (interface{}, error) {
	s.Ctrl.StepInto(s.VM.CallDepth())
	return map[string]bool{"ok": true}, nil
}

func handleStepOut(s *Session, _ json.RawMessage) (interface{}, error) {
	s.Ctrl.StepOut(s.VM.CallDepth())
	return map[string]bool{"ok": true}, nil
}

func handleContinue(s *Session, _ json.RawMessage) (interface{}, error) {
	s.Ctrl.Continue()
	return map[string]bool{"ok": true}, nil
}

func handlePause(s *Session, _ json.RawMessage) (interface{}, error) {
	s.Ctrl.Pause(s.VM.CallDepth())
	return map[string]bool{"ok": true}, nil
}

type addBreakpointParams struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Func         string `json:"func"`
	Condition    string `json:"condition"`
	HitCondition string `json:"hit_condition"`
}

func handleAddBreakpoint(s *Session, params json.RawMessage) (interface{}, error) {
	var p addBreakpointParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	if p.File == "" || p.Line <= 0 {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: "file and line are required"}
	}
	d := s.BPs.Add(p.File, p.Line, p.Func, p.Condition, p.HitCondition)
	return descriptorToJSON(d), nil
}

type fileParams struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func handleClearBreakpoints(s *Session, params json.RawMessage) (interface{}, error) {
	var p fileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	if p.File == "" {
		s.BPs.ClearAll()
	} else if p.Line > 0 {
		s.BPs.ClearLine(p.File, p.Line)
	} else {
		s.BPs.ClearFile(p.File)
	}
	return map[string]bool{"ok": true}, nil
}

func handleGetBreakpoints(s *Session, _ json.RawMessage) (interface{}, error) {
	all := s.BPs.All()
	out := make([]interface{}, len(all))
	for i, d := range all {
		out[i] = descriptorToJSON(d)
	}
	return out, nil
}

type setBreakpointEnabledParams struct {
	ID      int  `json:"id"`
	Enabled bool `json:"enabled"`
}

func handleSetBreakpointEnabled(s *Session, params json.RawMessage) (interface{}, error) {
	var p setBreakpointEnabledParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	if !s.BPs.SetEnabled(p.ID, p.Enabled) {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: fmt.Sprintf("no breakpoint with id %d", p.ID)}
	}
	return map[string]bool{"ok": true}, nil
}

func handleGetSource(s *Session, _ json.RawMessage) (interface{}, error) {
	return map[string]string{"source": s.VM.SourceName()}, nil
}

func handleGetStacktrace(s *Session, _ json.RawMessage) (interface{}, error) {
	var frames []interface{}
	for level := 0; ; level++ {
		info, ok := s.VM.Activation(level)
		if !ok {
			break
		}
		frames = append(frames, map[string]interface{}{
			"id":           level,
			"func":         info.Name,
			"file":         info.Source,
			"short_source": info.ShortSource,
			"line":         info.CurrentLine,
			"first_line":   info.FirstLine,
			"last_line":    info.LastLine,
		})
	}
	return frames, nil
}

// depthOrDefault returns 1 (spec §4.6's documented default) when depth is
// nil, or its dereferenced value otherwise.
func depthOrDefault(depth *int) int {
	if depth == nil {
		return 1
	}
	return *depth
}

type levelParams struct {
	StackNo int  `json:"stack_no"`
	Depth   *int `json:"depth"`
}

func handleGetLocalVariable(s *Session, params json.RawMessage) (interface{}, error) {
	var p levelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	keys, values, err := dbgframe.Locals(s.VM, p.StackNo, depthOrDefault(p.Depth))
	if err != nil {
		return nil, err
	}
	return dbgvalue.ObjectToJSON(keys, values), nil
}

func handleGetUpvalues(s *Session, params json.RawMessage) (interface{}, error) {
	var p levelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	keys, values := dbgframe.Upvalues(s.VM, p.StackNo, depthOrDefault(p.Depth))
	return dbgvalue.ObjectToJSON(keys, values), nil
}

type globalParams struct {
	Depth *int `json:"depth"`
}

func handleGetGlobal(s *Session, params json.RawMessage) (interface{}, error) {
	var p globalParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
		}
	}
	keys, values := dbgframe.Globals(s.VM, depthOrDefault(p.Depth))
	sort.Strings(keys)
	return dbgvalue.ObjectToJSON(keys, values), nil
}

type evalParams struct {
	StackNo int    `json:"stack_no"`
	Chunk   string `json:"chunk"`
	Global  *bool  `json:"global"`
	Upvalue *bool  `json:"upvalue"`
	Local   *bool  `json:"local"`
	Depth   *int   `json:"depth"`
}

// boolOrDefault returns true (spec §4.6's documented default for eval's
// global/upvalue/local flags) when b is nil, or its dereferenced value
// otherwise.
func boolOrDefault(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}

func handleEval(s *Session, params json.RawMessage) (interface{}, error) {
	var p evalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	env := dbgframe.NewEvalEnv(s.VM, p.StackNo, depthOrDefault(p.Depth),
		boolOrDefault(p.Global), boolOrDefault(p.Upvalue), boolOrDefault(p.Local))
	v, err := dbgframe.Eval(env, p.Chunk)
	if err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	return []interface{}{dbgvalue.ToJSON(v)}, nil
}

type setLocalParams struct {
	StackNo int             `json:"stack_no"`
	Name    string          `json:"name"`
	Value   json.RawMessage `json:"value"`
}

func handleSetLocal(s *Session, params json.RawMessage) (interface{}, error) {
	var p setLocalParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	var raw interface{}
	if err := json.Unmarshal(p.Value, &raw); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	v := fromJSONScalar(raw)
	if err := dbgframe.SetLocal(s.VM, p.StackNo, p.Name, v); err != nil {
		return nil, &protocol.ErrorObject{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}
	return map[string]bool{"ok": true}, nil
}

// fromJSONScalar converts a decoded JSON scalar (as produced by
// encoding/json's interface{} unmarshalling) into a dbgvalue.Value. It only
// handles JSON scalars; arrays and objects sent by a client are not
// converted and become Nil.
func fromJSONScalar(raw interface{}) dbgvalue.Value {
	switch v := raw.(type) {
	case nil:
		return dbgvalue.Nil()
	case bool:
		return dbgvalue.Bool(v)
	case float64:
		return dbgvalue.Int(uint64(int64(v)))
	case string:
		return dbgvalue.Str(v)
	default:
		return dbgvalue.Nil()
	}
}

func descriptorToJSON(d *breakpoint.Descriptor) map[string]interface{} {
	return map[string]interface{}{
		"id":            d.ID,
		"file":          d.File,
		"line":          d.Line,
		"func":          d.Func,
		"condition":     d.Condition,
		"hit_condition": d.HitCondition,
		"hit_count":     d.HitCount,
		"enabled":       d.Enabled,
	}
}
