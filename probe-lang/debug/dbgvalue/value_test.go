// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package dbgvalue

import (
	"reflect"
	"testing"

	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

func TestToJSONScalars(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want interface{}
	}{
		{"nil", Nil(), nil},
		{"bool true", Bool(true), true},
		{"bool false", Bool(false), false},
		{"small int", Int(42), float64(42)},
		{"large int", Int(1 << 60), "1152921504606846976"},
		{"float", Float(3.5), 3.5},
		{"nan", Float(nan()), "NaN"},
		{"+inf", Float(inf(1)), "Infinity"},
		{"-inf", Float(inf(-1)), "Infinity"},
		{"string", Str("hi"), "hi"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ToJSON(c.v)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("ToJSON(%v) = %#v, want %#v", c.v, got, c.want)
			}
		})
	}
}

func TestToJSONOpaque(t *testing.T) {
	got := ToJSON(Opaque("array", 0x1000))
	want := map[string]interface{}{"array": "0x1000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToJSON(opaque) = %#v, want %#v", got, want)
	}
}

func TestClassifyRegisterPlainInt(t *testing.T) {
	mem := vm.NewMemory(0)
	kind, _ := ClassifyRegister(mem, 12345)
	if kind != RegInt {
		t.Fatalf("expected RegInt for a non-allocation word, got %v", kind)
	}
}

func TestFromRegisterArray(t *testing.T) {
	mem := vm.NewMemory(0)
	base, err := mem.Alloc(24) // 3 words
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteUint64(base, 10); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteUint64(base+8, 20); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteUint64(base+16, 30); err != nil {
		t.Fatal(err)
	}

	v := FromRegister(mem, base, 2, map[uint64]bool{})
	if v.Kind != KArray || len(v.Array) != 3 {
		t.Fatalf("expected a 3-element array, got %+v", v)
	}
	for i, want := range []uint64{10, 20, 30} {
		if v.Array[i].Kind != KNumber || v.Array[i].Num != want {
			t.Errorf("element %d = %+v, want number %d", i, v.Array[i], want)
		}
	}
}

func TestFromRegisterDepthLimit(t *testing.T) {
	mem := vm.NewMemory(0)
	inner, err := mem.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := mem.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteUint64(outer, inner); err != nil {
		t.Fatal(err)
	}

	v := FromRegister(mem, outer, 1, map[uint64]bool{})
	if v.Kind != KArray || len(v.Array) != 1 {
		t.Fatalf("expected single-element array, got %+v", v)
	}
	if v.Array[0].Kind != KOpaque {
		t.Errorf("expected nested pointer truncated to opaque at depth limit, got %+v", v.Array[0])
	}
}

func TestFromRegisterSelfReferentialCycle(t *testing.T) {
	mem := vm.NewMemory(0)
	base, err := mem.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteUint64(base, base); err != nil {
		t.Fatal(err)
	}

	v := FromRegister(mem, base, 5, map[uint64]bool{})
	if v.Kind != KArray || len(v.Array) != 1 {
		t.Fatalf("expected single-element array, got %+v", v)
	}
	if v.Array[0].Kind != KOpaque || v.Array[0].OpaqueAddr != base {
		t.Errorf("expected cycle to degrade to opaque(base), got %+v", v.Array[0])
	}
}

func TestToRegisterRoundTrip(t *testing.T) {
	mem := vm.NewMemory(0)
	orig := Array([]Value{Int(1), Int(2), Int(3)})

	word, err := ToRegister(mem, orig)
	if err != nil {
		t.Fatal(err)
	}

	back := FromRegister(mem, word, 2, map[uint64]bool{})
	if !reflect.DeepEqual(back, orig) {
		t.Errorf("round trip mismatch: got %+v, want %+v", back, orig)
	}
}

func TestObjectToJSONRendersListedKeys(t *testing.T) {
	keys := []string{"b", "a", "c"}
	m := map[string]Value{"a": Int(1), "b": Int(2), "c": Int(3)}
	got := ObjectToJSON(keys, m)
	want := map[string]interface{}{"a": float64(1), "b": float64(2), "c": float64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ObjectToJSON = %#v, want %#v", got, want)
	}
}

func nan() float64 {
	var z float64
	return z / z
}

func inf(sign int) float64 {
	one := 1.0
	zero := 0.0
	if sign < 0 {
		one = -1.0
	}
	return one / zero
}
