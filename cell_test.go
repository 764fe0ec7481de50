package cdrc

import (
	"testing"

	"github.com/agilira/cdrc/smr/epoch"
)

func TestStrongCellSingleThreadLifecycle(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()

	disposed := 0
	cell := NewStrongCell(42, b, func(int) { disposed++ }, nil)

	snap := cell.Load(g)
	if snap.IsNull() {
		t.Fatal("load on a freshly-created cell must not be null")
	}
	if got := snap.Deref(); got != 42 {
		t.Fatalf("Deref() = %d, want 42", got)
	}

	strong := cell.LoadStrong(g)
	if strong.RefCount() != 2 {
		t.Fatalf("RefCount() = %d, want 2 (cell + loaded strong)", strong.RefCount())
	}

	g.Release()
	strong.Drop(b.UnprotectedGuard())
	cell.Drop()
	b.Drain()

	if disposed != 1 {
		t.Fatalf("disposed = %d, want 1", disposed)
	}
}

func TestStrongCellStoreSchedulesPreviousDecrement(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()

	firstDisposed := 0
	secondDisposed := 0
	cell := NewStrongCell("hello", b, func(string) { firstDisposed++ }, nil)

	secondCell := NewStrongCell("world", b, func(string) { secondDisposed++ }, nil)
	second := secondCell.LoadStrong(g)
	secondCell.Drop()

	cell.Store(second, g)
	g.Release()
	b.Drain()

	if firstDisposed != 1 {
		t.Fatalf("firstDisposed = %d, want 1 (displaced value must be disposed)", firstDisposed)
	}
	if secondDisposed != 0 {
		t.Fatal("second value must not be disposed while still owned by the cell")
	}

	g2 := h.Pin()
	if got := cell.Load(g2).Deref(); got != "world" {
		t.Fatalf("cell now holds %q, want \"world\"", got)
	}
	g2.Release()
}

func TestStrongCellSwapReturnsOwnedPrevious(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()

	cell := NewStrongCell(1, b, nil, nil)
	replacement := NewStrongCell(2, b, nil, nil).LoadStrong(g)

	previous := cell.Swap(replacement, g)
	if previous.IsNull() || previous.Deref() != 1 {
		t.Fatalf("Swap displaced value = %v, want a strong wrapping 1", previous)
	}
	if got := cell.Load(g).Deref(); got != 2 {
		t.Fatalf("cell now holds %d, want 2", got)
	}
	previous.Drop(g)
	g.Release()
	b.Drain()
}

func TestStrongCellCompareExchange(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()

	cell := NewStrongCell(1, b, nil, nil)
	expected := cell.Load(g)
	desired := NewStrongCell(2, b, nil, nil).LoadStrong(g)

	if _, ok := cell.CompareExchange(Snapshot[int]{}, desired, g); ok {
		t.Fatal("compare-exchange against a mismatched expected value must fail")
	}

	displaced, ok := cell.CompareExchange(expected, desired, g)
	if !ok {
		t.Fatal("compare-exchange against the current value should succeed")
	}
	if displaced.Deref() != 1 {
		t.Fatalf("displaced = %d, want 1", displaced.Deref())
	}
	displaced.Drop(g)
	if got := cell.Load(g).Deref(); got != 2 {
		t.Fatalf("cell now holds %d, want 2", got)
	}
	g.Release()
	b.Drain()
}

func TestStrongCellCompareExchangeProtectPopulatesOutSnapOnFailure(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()
	defer g.Release()

	cell := NewStrongCell(1, b, nil, nil)
	desired := NewStrongCell(2, b, nil, nil).LoadStrong(g)

	var outSnap Snapshot[int]
	displaced, ok := cell.CompareExchangeProtect(Snapshot[int]{}, desired, &outSnap, g)
	if ok {
		t.Fatal("compare-exchange-protect against a mismatched expected value must fail")
	}
	if !displaced.IsNull() {
		t.Fatal("a failed compare-exchange-protect must not return an owned reference")
	}
	if outSnap.IsNull() {
		t.Fatal("a failed compare-exchange-protect must populate outSnap with the cell's current value")
	}
	if got := outSnap.Deref(); got != 1 {
		t.Fatalf("outSnap.Deref() = %d, want 1 (the cell's unchanged current value)", got)
	}

	if got := cell.Load(g).Deref(); got != 1 {
		t.Fatalf("cell still holds %d, want 1 (untouched by the failed attempt)", got)
	}
	desired.Drop(g)
	b.Drain()
}

func TestStrongCellFetchOrPreservesIdentity(t *testing.T) {
	b := epoch.NewBackend(1)
	h := b.Register()
	g := h.Pin()
	defer g.Release()

	cell := NewStrongCell(7, b, nil, nil)
	before := cell.Load(g)

	prev := cell.FetchOr(1, g)
	if prev.Tag() != 0 {
		t.Fatalf("FetchOr previous tag = %d, want 0", prev.Tag())
	}

	after := cell.Load(g)
	if after.Tag() != 1 {
		t.Fatalf("tag after FetchOr(1) = %d, want 1", after.Tag())
	}
	if after.Deref() != before.Deref() {
		t.Fatal("FetchOr must never change the pointer identity stored in the cell (P7)")
	}
}
