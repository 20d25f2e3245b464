// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package dbgvalue is the debugger's Value Marshaller (spec component A): it
// converts between VM register words / Memory aggregates and a
// language-neutral JSON tree, with bounded recursion and cycle-safe opaque
// placeholders for values beyond the requested depth.
package dbgvalue

import (
	"fmt"
	"math"
	"sort"

	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// Kind discriminates the shape of a marshalled Value.
type Kind int

const (
	KNil Kind = iota
	KBool
	KNumber
	KFloat
	KString
	KArray
	KOpaque
)

// Value is the debugger's in-memory JSON tree, mirroring spec §3's
// "Marshalled value". Scalars use Num/Str/Bool; KFloat carries an IEEE
// double in Float so NaN/Infinity rendering (§3, an accepted lossy choice) can
// be applied at encode time without losing the distinction between an
// integer register word and a float one.
type Value struct {
	Kind       Kind
	Bool       bool
	Num        uint64  // KNumber: the raw integer value
	Float      float64 // KFloat: the IEEE double value
	Str        string  // KString, and KOpaque's rendered type name
	Array      []Value // KArray
	OpaqueAddr uint64  // KOpaque: the stable identity token (hex-rendered)
}

// Nil, Bool, Int, Float, Str are constructors for scalar Values, used by the
// evaluator (dbgframe) which works with typed results rather than raw VM
// register words.
func Nil() Value                { return Value{Kind: KNil} }
func Bool(b bool) Value         { return Value{Kind: KBool, Bool: b} }
func Int(n uint64) Value        { return Value{Kind: KNumber, Num: n} }
func Float(f float64) Value     { return Value{Kind: KFloat, Float: f} }
func Str(s string) Value        { return Value{Kind: KString, Str: s} }
func Array(vs []Value) Value    { return Value{Kind: KArray, Array: vs} }
func Opaque(typeName string, addr uint64) Value {
	return Value{Kind: KOpaque, Str: typeName, OpaqueAddr: addr}
}

// ToJSON converts a Value tree into the plain interface{} tree the protocol
// codec's encoding/json will serialize, applying §3's scalar rules:
//   - non-finite floats become "NaN" / "Infinity" (both signs of infinity
//     collapse to "Infinity" — a deliberate lossy choice preserved for
//     protocol compatibility, see spec §9 Open Questions).
//   - an opaque placeholder is a single-entry object {typeName: "0x<hex>"}.
func ToJSON(v Value) interface{} {
	switch v.Kind {
	case KNil:
		return nil
	case KBool:
		return v.Bool
	case KNumber:
		// JSON numbers lose precision past 2^53; render larger values as
		// decimal strings rather than silently truncating.
		if v.Num <= 1<<53 {
			return float64(v.Num)
		}
		return fmt.Sprintf("%d", v.Num)
	case KFloat:
		if math.IsNaN(v.Float) {
			return "NaN"
		}
		if math.IsInf(v.Float, 0) {
			return "Infinity"
		}
		return v.Float
	case KString:
		return v.Str
	case KArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = ToJSON(e)
		}
		return out
	case KOpaque:
		typeName := v.Str
		if typeName == "" {
			typeName = "userdata"
		}
		return map[string]interface{}{typeName: fmt.Sprintf("0x%x", v.OpaqueAddr)}
	default:
		return nil
	}
}

// RegisterKind classifies what a raw VM register word means for marshalling
// purposes: the VM has no runtime type tags, so the debugger treats any word
// that is a live Memory allocation base as an aggregate pointer and
// everything else as a plain integer.
type RegisterKind int

const (
	RegInt RegisterKind = iota
	RegPointer
)

// ClassifyRegister reports whether word names a live Memory allocation.
func ClassifyRegister(mem *vm.Memory, word uint64) (RegisterKind, uint64) {
	if mem == nil {
		return RegInt, 0
	}
	if size, ok := mem.AllocationInfo(word); ok {
		return RegPointer, size
	}
	return RegInt, 0
}

// FromRegister marshals the word held in a VM register into a Value,
// expanding at most depth nested aggregate levels. seen tracks allocation
// base addresses already expanded on the current call stack, so a
// self-referential array (one whose elements point back to itself)
// degrades to the opaque placeholder instead of recursing forever — the
// placeholder's OpaqueAddr is the allocation base, so two placeholders for
// the same aggregate within one marshal call compare equal (spec §8).
func FromRegister(mem *vm.Memory, word uint64, depth int, seen map[uint64]bool) Value {
	kind, size := ClassifyRegister(mem, word)
	if kind == RegInt {
		return Int(word)
	}

	if depth <= 0 || seen[word] {
		return Opaque("array", word)
	}

	seen[word] = true
	defer delete(seen, word)

	n := int(size / 8)
	elems := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		w, err := mem.ReadUint64(word + uint64(i)*8)
		if err != nil {
			break
		}
		elems = append(elems, FromRegister(mem, w, depth-1, seen))
	}
	return Array(elems)
}

// ToRegister is the inverse of FromRegister (spec §4.1 push_json): it
// allocates a fresh Memory region for an array Value and returns its base
// address as a register word; scalars return their raw word directly.
// Opaque placeholders are NOT re-hydrated: like an empty array they push as
// a fresh one-word allocation (Memory.Alloc rejects size 0).
func ToRegister(mem *vm.Memory, v Value) (uint64, error) {
	switch v.Kind {
	case KNil:
		return 0, nil
	case KBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case KNumber:
		return v.Num, nil
	case KFloat:
		return math.Float64bits(v.Float), nil
	case KString:
		// No string registers in this VM generation; represent as length
		// for truthiness/compat rather than erroring out.
		return uint64(len(v.Str)), nil
	case KOpaque:
		return emptyArray(mem)
	case KArray:
		return writeArray(mem, v.Array)
	default:
		return 0, fmt.Errorf("dbgvalue: unknown value kind %d", v.Kind)
	}
}

func emptyArray(mem *vm.Memory) (uint64, error) {
	return writeArray(mem, nil)
}

func writeArray(mem *vm.Memory, elems []Value) (uint64, error) {
	n := len(elems)
	if n == 0 {
		n = 1 // Memory.Alloc rejects size 0; allocate one placeholder word
	}
	base, err := mem.Alloc(uint64(n) * 8)
	if err != nil {
		return 0, err
	}
	for i, e := range elems {
		w, err := ToRegister(mem, e)
		if err != nil {
			return 0, err
		}
		if err := mem.WriteUint64(base+uint64(i)*8, w); err != nil {
			return 0, err
		}
	}
	return base, nil
}

// SortedKeys is a helper for callers (dispatch handlers) that build
// name→Value maps and need deterministic iteration order for the JSON
// object they emit.
func SortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ObjectToJSON renders the entries of a name→Value map (locals, upvalues,
// globals) named in keys as the JSON object the dispatcher returns. The
// result is a Go map, so the caller's key order is not kept: encoding/json
// writes the object's keys in sorted order.
func ObjectToJSON(keys []string, m map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = ToJSON(m[k])
	}
	return out
}
