// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package dbgframe

import (
	"reflect"
	"testing"

	"github.com/probechain/go-probe/probe-lang/debug/dbgvalue"
	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	v := vm.New(nil, nil, 0)
	v.SetRegister(1, 7)
	v.SetRegister(2, 35)
	v.SetDebugInfo([]codegen.FuncEntry{
		{
			Name:   "main",
			Offset: 0,
			End:    100,
			Params: []codegen.Var{{Name: "x", Reg: 1}},
			LocalVars: []codegen.Var{{Name: "y", Reg: 2}},
		},
	}, &codegen.DebugInfo{})
	return v
}

func TestEvalArithmetic(t *testing.T) {
	v := newTestVM(t)
	env := NewEnv(v, 0)

	cases := map[string]dbgvalue.Value{
		"1 + 2":   dbgvalue.Int(3),
		"x + y":   dbgvalue.Int(42),
		"x * 2":   dbgvalue.Int(14),
		"x < y":   dbgvalue.Bool(true),
		"x == 7":  dbgvalue.Bool(true),
		"!(x == 7)": dbgvalue.Bool(false),
	}
	for expr, want := range cases {
		got, err := Eval(env, expr)
		if err != nil {
			t.Fatalf("Eval(%q) error: %v", expr, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Eval(%q) = %+v, want %+v", expr, got, want)
		}
	}
}

func TestEvalUndefinedIdent(t *testing.T) {
	v := newTestVM(t)
	env := NewEnv(v, 0)
	if _, err := Eval(env, "nonexistent"); err == nil {
		t.Fatal("expected an error for an undefined identifier")
	}
}

func TestLocalsOrderAndValues(t *testing.T) {
	v := newTestVM(t)
	keys, values, err := Locals(v, 0, defaultDepth)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Fatalf("expected [x y] in declaration order, got %v", keys)
	}
	if values["x"].Num != 7 || values["y"].Num != 35 {
		t.Errorf("unexpected local values: %+v", values)
	}
}

func TestSetLocal(t *testing.T) {
	v := newTestVM(t)
	if err := SetLocal(v, 0, "x", dbgvalue.Int(100)); err != nil {
		t.Fatal(err)
	}
	if v.Register(1) != 100 {
		t.Errorf("register not updated: got %d", v.Register(1))
	}
}

func TestUpvaluesAlwaysEmpty(t *testing.T) {
	v := newTestVM(t)
	keys, values := Upvalues(v, 0, defaultDepth)
	if len(keys) != 0 || len(values) != 0 {
		t.Errorf("expected no upvalues, got keys=%v values=%v", keys, values)
	}
}
