package model

import "testing"

func TestRangeContains(t *testing.T) {
	outer := Range{Start: Position{Line: 1, Character: 0}, End: Position{Line: 10, Character: 0}}
	inner := Range{Start: Position{Line: 2, Character: 3}, End: Position{Line: 4, Character: 0}}
	if !outer.Contains(inner) {
		t.Fatalf("expected outer to contain inner")
	}
	if inner.Contains(outer) {
		t.Fatalf("did not expect inner to contain outer")
	}
}

func TestRangeEqual(t *testing.T) {
	a := Range{Start: Position{Line: 1, Character: 2}, End: Position{Line: 1, Character: 9}}
	b := Range{Start: Position{Line: 1, Character: 2}, End: Position{Line: 1, Character: 9}}
	if !a.Equal(b) {
		t.Fatalf("expected equal ranges")
	}
}

func TestQualifiedName(t *testing.T) {
	parent := &Symbol{Name: "Server"}
	child := &Symbol{Name: "handleMessage", Parent: parent}
	if got := child.QualifiedName(); got != "Server.handleMessage" {
		t.Fatalf("got %q", got)
	}
}

func TestSessionStateTransitions(t *testing.T) {
	if !StateUninitialized.CanTransition(StateStarting) {
		t.Fatalf("expected Uninitialized -> Starting to be legal")
	}
	if StateStopped.CanTransition(StateOperating) {
		t.Fatalf("did not expect transitions out of a terminal state")
	}
	if !StateOperating.CanTransition(StateFailed) {
		t.Fatalf("expected Failed to be reachable from Operating")
	}
	if StateUninitialized.CanTransition(StateOperating) {
		t.Fatalf("did not expect skipping Starting/Initialized")
	}
}
