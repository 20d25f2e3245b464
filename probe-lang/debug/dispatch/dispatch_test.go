// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probechain/go-probe/probe-lang/debug/breakpoint"
	"github.com/probechain/go-probe/probe-lang/debug/control"
	"github.com/probechain/go-probe/probe-lang/debug/protocol"
	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	v := vm.New(nil, nil, 0)
	v.SetSourceName("main.probe")
	v.SetDebugInfo([]codegen.FuncEntry{
		{Name: "main", Offset: 0, End: 100, Params: []codegen.Var{{Name: "x", Reg: 1}}},
	}, &codegen.DebugInfo{Lines: []codegen.LineEntry{{Offset: 0, Line: 1}}})
	v.SetRegister(1, 99)

	bps := breakpoint.NewTable()
	ctrl := control.New(bps, false, nil, nil)
	ctrl.Attach(v)

	return &Session{VM: v, BPs: bps, Ctrl: ctrl}
}

func TestDispatchUnknownMethod(t *testing.T) {
	s := newTestSession(t)
	_, err := Dispatch(s, &protocol.Request{Method: "not_a_method"})
	require.Error(t, err)
	eo, ok := err.(*protocol.ErrorObject)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrMethodNotFound, eo.Code)
}

func TestDispatchAddAndGetBreakpoints(t *testing.T) {
	s := newTestSession(t)
	addParams, _ := json.Marshal(addBreakpointParams{File: "main.probe", Line: 3})
	_, err := Dispatch(s, &protocol.Request{Method: "add_breakpoint", Params: addParams})
	require.NoError(t, err)

	result, err := Dispatch(s, &protocol.Request{Method: "get_breakpoints"})
	require.NoError(t, err)
	list, ok := result.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)

	entry := list[0].(map[string]interface{})
	assert.Equal(t, "main.probe", entry["file"])
	assert.Equal(t, 3, entry["line"])
	assert.Equal(t, true, entry["enabled"])
}

func TestDispatchSetBreakpointEnabledUnknownID(t *testing.T) {
	s := newTestSession(t)
	params, _ := json.Marshal(setBreakpointEnabledParams{ID: 42, Enabled: false})
	_, err := Dispatch(s, &protocol.Request{Method: "set_breakpoint_enabled", Params: params})
	require.Error(t, err)
}

func TestDispatchEval(t *testing.T) {
	s := newTestSession(t)
	params, _ := json.Marshal(evalParams{StackNo: 0, Chunk: "x + 1"})
	result, err := Dispatch(s, &protocol.Request{Method: "eval", Params: params})
	require.NoError(t, err)
	arr := result.([]interface{})
	require.Len(t, arr, 1)
	assert.Equal(t, float64(100), arr[0])
}

func TestDispatchGetLocalVariable(t *testing.T) {
	s := newTestSession(t)
	params, _ := json.Marshal(levelParams{StackNo: 0})
	result, err := Dispatch(s, &protocol.Request{Method: "get_local_variable", Params: params})
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.Equal(t, float64(99), m["x"])
}

func TestDispatchStepAliasesStepOver(t *testing.T) {
	s := newTestSession(t)
	_, err := Dispatch(s, &protocol.Request{Method: "step"})
	require.NoError(t, err)
	assert.Equal(t, control.StepOver, s.Ctrl.Mode())
}

func TestDispatchGetStacktrace(t *testing.T) {
	s := newTestSession(t)
	result, err := Dispatch(s, &protocol.Request{Method: "get_stacktrace"})
	require.NoError(t, err)
	frames := result.([]interface{})
	require.Len(t, frames, 1)
	f := frames[0].(map[string]interface{})
	assert.Equal(t, "main", f["func"])
	assert.Equal(t, 0, f["id"])
}
