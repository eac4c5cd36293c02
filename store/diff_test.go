package store

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type testEntry struct{ hash []byte }

func (e testEntry) Hash() []byte { return e.hash }

func sortedChanges(d Diff) Diff {
	out := append(Diff(nil), d...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func TestCalculateDiffCreatedUpdatedRemoved(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})
	snap.store("b", testEntry{hash: []byte("h2")})
	snap.store("c", testEntry{hash: nil})
	snap.store("e", testEntry{hash: []byte("h5")})

	listing := []Listed{
		{Key: "a", Hash: []byte("h1")},        // unchanged
		{Key: "b", Hash: []byte("h2-changed")}, // updated
		{Key: "c", Hash: nil},                 // both-nil, unchanged
		{Key: "d", Hash: []byte("h4")},        // created
	}

	got := sortedChanges(CalculateDiff(&snap, listing))
	want := sortedChanges(Diff{
		{Kind: Updated, Key: "b"},
		{Kind: Created, Key: "d"},
		{Kind: Removed, Key: "e"},
	})

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestCalculateDiffEmptyOnIdenticalListing(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})

	listing := []Listed{{Key: "a", Hash: []byte("h1")}}

	if got := CalculateDiff(&snap, listing); len(got) != 0 {
		t.Fatalf("expected empty diff, got %v", got)
	}
}

func TestCalculateDiffRemovedWhenMissingFromListing(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})

	got := CalculateDiff(&snap, nil)
	want := Diff{{Kind: Removed, Key: "a"}}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", diff)
	}
}

func TestApplyIdempotent(t *testing.T) {
	var snap Snapshot
	diff := Diff{{Kind: Created, Key: "a"}}
	fetched := map[string]Entry{"a": testEntry{hash: []byte("h1")}}

	first := Apply(&snap, diff, fetched)
	if len(first) != 1 {
		t.Fatalf("expected one applied change, got %d", len(first))
	}

	second := CalculateDiff(&snap, []Listed{{Key: "a", Hash: []byte("h1")}})
	if len(second) != 0 {
		t.Fatalf("expected no-op diff after apply, got %v", second)
	}
}

func TestApplyDropsFailedFetch(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})

	diff := Diff{{Kind: Updated, Key: "a"}}
	applied := Apply(&snap, diff, map[string]Entry{})

	want := Diff{{Kind: Removed, Key: "a"}}
	if d := cmp.Diff(want, applied, cmpopts.EquateEmpty()); d != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", d)
	}
	if _, ok := snap.Load("a"); ok {
		t.Fatalf("expected key a to be removed after failed fetch")
	}
}

func TestApplyRemoved(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})

	applied := Apply(&snap, Diff{{Kind: Removed, Key: "a"}}, nil)
	if len(applied) != 1 {
		t.Fatalf("expected one applied change, got %d", len(applied))
	}
	if _, ok := snap.Load("a"); ok {
		t.Fatalf("expected key a to be removed")
	}
}

func TestSnapshotReadDuringApply(t *testing.T) {
	var snap Snapshot
	snap.store("a", testEntry{hash: []byte("h1")})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			snap.Load("a")
		}
	}()

	Apply(&snap, Diff{{Kind: Updated, Key: "a"}}, map[string]Entry{
		"a": testEntry{hash: []byte("h2")},
	})
	<-done
}
