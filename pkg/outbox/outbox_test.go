package outbox

import "testing"

func TestSettleDiscardsUnconditionally(t *testing.T) {
	box := New()

	entry := box.Add(7, "hello")
	if len(box.Pending()) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(box.Pending()))
	}

	// Success and failure look the same: the local copy is dropped.
	box.Settle(entry.TempID)
	if len(box.Pending()) != 0 {
		t.Fatalf("expected no pending after settle, got %d", len(box.Pending()))
	}
}

func TestCompletedRefreshSuppressesOlderEntries(t *testing.T) {
	box := New()

	stale := box.Add(7, "sent before refresh")
	token := box.BeginRefresh()
	fresh := box.Add(7, "sent during refresh")
	box.CompleteRefresh(token)

	pending := box.Pending()
	if len(pending) != 1 || pending[0].TempID != fresh.TempID {
		t.Fatalf("expected only the in-flight entry to survive, got %+v", pending)
	}
	for _, entry := range pending {
		if entry.TempID == stale.TempID {
			t.Fatal("entry issued before the refresh must not be shown again")
		}
	}
}

func TestRefreshWithIdenticalBodyNeverDuplicates(t *testing.T) {
	box := New()

	// Two optimistic sends with the same sender and body; the refresh that
	// completes afterwards carries the authoritative copies, so both locals
	// go away regardless of content similarity.
	box.Add(7, "ok")
	box.Add(7, "ok")
	token := box.BeginRefresh()
	box.CompleteRefresh(token)

	if len(box.Pending()) != 0 {
		t.Fatalf("expected no pending after refresh, got %d", len(box.Pending()))
	}
}

func TestPendingReturnsOldestFirst(t *testing.T) {
	box := New()

	first := box.Add(7, "one")
	second := box.Add(7, "two")
	third := box.Add(7, "three")

	pending := box.Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	order := []string{first.TempID, second.TempID, third.TempID}
	for i, entry := range pending {
		if entry.TempID != order[i] {
			t.Fatalf("unexpected order at %d: %+v", i, pending)
		}
	}
}
