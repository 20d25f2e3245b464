// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package breakpoint

import "testing"

func TestAddAndAtLinePathEquivalence(t *testing.T) {
	tbl := NewTable()
	tbl.Add("./scripts/main.probe", 10, "", "", "")

	got := tbl.AtLine("scripts/main.probe", 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 breakpoint, got %d", len(got))
	}
}

func TestDisabledBreakpointNotReturned(t *testing.T) {
	tbl := NewTable()
	d := tbl.Add("main.probe", 5, "", "", "")
	tbl.SetEnabled(d.ID, false)

	if got := tbl.AtLine("main.probe", 5); len(got) != 0 {
		t.Fatalf("expected disabled breakpoint to be excluded, got %v", got)
	}
}

func TestSetEnabledUnknownID(t *testing.T) {
	tbl := NewTable()
	if tbl.SetEnabled(999, false) {
		t.Fatal("expected false for an unknown breakpoint ID")
	}
}

func TestClearLine(t *testing.T) {
	tbl := NewTable()
	tbl.Add("a.probe", 1, "", "", "")
	tbl.Add("a.probe", 2, "", "", "")
	tbl.ClearLine("a.probe", 1)

	if got := tbl.AtLine("a.probe", 1); len(got) != 0 {
		t.Errorf("expected line 1 cleared, got %v", got)
	}
	if got := tbl.AtLine("a.probe", 2); len(got) != 1 {
		t.Errorf("expected line 2 to remain, got %v", got)
	}
}

func TestHitConditionGating(t *testing.T) {
	d := &Descriptor{HitCondition: ">= 3"}
	var hits []bool
	for i := 0; i < 4; i++ {
		hits = append(hits, d.Hit())
	}
	want := []bool{false, false, true, true}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d = %v, want %v", i, hits[i], want[i])
		}
	}
}

func TestHitConditionModulo(t *testing.T) {
	d := &Descriptor{HitCondition: "% 2"}
	var got []bool
	for i := 0; i < 4; i++ {
		got = append(got, d.Hit())
	}
	want := []bool{false, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hit %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestUnconditionalAlwaysHits(t *testing.T) {
	d := &Descriptor{}
	if !d.Hit() {
		t.Fatal("expected an unconditional breakpoint to always report hit")
	}
}
