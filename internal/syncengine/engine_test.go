package syncengine_test

import (
	"testing"

	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/statetree"
	"github.com/gmliao/landsync/internal/syncengine"
)

// table is a minimal fixture exercising broadcast, server_only, and
// per_player_slice fields through a real statetree.Node.
type table struct {
	*statetree.Node
	pot      int64
	deckSeed int64
	hands    *statetree.ReactiveMap[int64]
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func newTable() *table {
	tb := &table{Node: statetree.NewNode()}
	must(tb.RegisterLeaf("pot", policy.Broadcast(), func() (snapshot.Value, error) {
		return snapshot.Int(tb.pot), nil
	}))
	must(tb.RegisterLeaf("deck_seed", policy.ServerOnly(), func() (snapshot.Value, error) {
		return snapshot.Int(tb.deckSeed), nil
	}))
	tb.hands = statetree.NewLeafMap(func(v int64) (snapshot.Value, error) { return snapshot.Int(v), nil })
	must(tb.RegisterMapping("hands", policy.PerPlayerSlice(), func() statetree.MappingView { return tb.hands }))
	tb.hands.Bind(tb.Node, "hands")
	return tb
}

func (tb *table) setPot(v int64) {
	tb.pot = v
	tb.MarkDirty("pot")
}

func TestGenerateDiffFirstSyncThenNoChange(t *testing.T) {
	tb := newTable()
	tb.setPot(10)
	e := syncengine.New()

	upd, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd.Kind != syncengine.KindFirstSync {
		t.Fatalf("expected first_sync, got %s", upd.Kind)
	}

	upd2, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd2.Kind != syncengine.KindNoChange {
		t.Fatalf("expected no_change with no mutation, got %s: %+v", upd2.Kind, upd2.Patches)
	}
	if upd2.Patches != nil {
		t.Fatal("no_change must never carry a non-nil Patches slice")
	}
}

// TestPerPlayerIsolationAliceDiffsBobNoChange is spec scenario S5: a mutation
// visible only to alice must not produce any update for bob.
func TestPerPlayerIsolationAliceDiffsBobNoChange(t *testing.T) {
	tb := newTable()
	tb.hands.Set("alice", 1)
	tb.hands.Set("bob", 2)
	e := syncengine.New()

	if _, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{}); err != nil {
		t.Fatalf("GenerateDiff(alice): %v", err)
	}
	if _, err := e.GenerateDiff(tb.Node, "bob", syncengine.Options{}); err != nil {
		t.Fatalf("GenerateDiff(bob): %v", err)
	}

	tb.hands.Set("alice", 5)

	updAlice, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff(alice): %v", err)
	}
	if updAlice.Kind != syncengine.KindDiff {
		t.Fatalf("alice should see a diff after her own hand changed, got %s", updAlice.Kind)
	}

	updBob, err := e.GenerateDiff(tb.Node, "bob", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff(bob): %v", err)
	}
	if updBob.Kind != syncengine.KindNoChange {
		t.Fatalf("bob must see no_change when only alice's hand changed, got %s: %+v", updBob.Kind, updBob.Patches)
	}
}

func TestGenerateDiffServerOnlyNeverEmitted(t *testing.T) {
	tb := newTable()
	tb.deckSeed = 777
	e := syncengine.New()

	upd, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	for _, p := range upd.Patches {
		if p.Path.String() == "/deck_seed" {
			t.Fatal("server_only field must never appear in a viewer's update")
		}
	}
}

func TestApplyEquivalenceAcrossFirstSyncAndDiff(t *testing.T) {
	tb := newTable()
	tb.setPot(10)
	tb.hands.Set("alice", 1)
	e := syncengine.New()

	upd, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	state := snapshot.Apply(snapshot.Object(nil), upd.Patches)

	tb.setPot(20)
	upd2, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd2.Kind != syncengine.KindDiff {
		t.Fatalf("expected diff after pot change, got %s", upd2.Kind)
	}
	state = snapshot.Apply(state, upd2.Patches)

	want, err := e.ExtractPerPlayerSnapshot(tb.Node, "alice")
	if err != nil {
		t.Fatalf("ExtractPerPlayerSnapshot: %v", err)
	}
	broadcast, err := e.ExtractBroadcastSnapshot(tb.Node)
	if err != nil {
		t.Fatalf("ExtractBroadcastSnapshot: %v", err)
	}
	gotPot, _ := state.Field("pot")
	wantPot, _ := broadcast.Field("pot")
	if gotPot.Int() != wantPot.Int() {
		t.Fatalf("applied state pot = %v, want %v", gotPot, wantPot)
	}
	_ = want
}

func TestDirtyTrackingFastPathSkipsUnchangedTree(t *testing.T) {
	tb := newTable()
	tb.setPot(1)
	e := syncengine.New()
	opts := syncengine.Options{UseDirtyTracking: true}

	if _, err := e.GenerateDiff(tb.Node, "alice", opts); err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	tb.ClearDirty()

	upd, err := e.GenerateDiff(tb.Node, "alice", opts)
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd.Kind != syncengine.KindNoChange {
		t.Fatalf("expected no_change via dirty fast path, got %s", upd.Kind)
	}
}

func TestLateJoinSuppressesSubsequentFirstSync(t *testing.T) {
	tb := newTable()
	tb.setPot(1)
	e := syncengine.New()

	if _, err := e.LateJoinSnapshot(tb.Node, "carol"); err != nil {
		t.Fatalf("LateJoinSnapshot: %v", err)
	}
	upd, err := e.GenerateDiff(tb.Node, "carol", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd.Kind == syncengine.KindFirstSync {
		t.Fatal("late_join must populate the cache so the next call is not first_sync")
	}
}

func TestEvictViewerForcesFirstSyncAgain(t *testing.T) {
	tb := newTable()
	tb.setPot(1)
	e := syncengine.New()

	if _, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{}); err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	e.EvictViewer("alice")
	upd, err := e.GenerateDiff(tb.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff: %v", err)
	}
	if upd.Kind != syncengine.KindFirstSync {
		t.Fatalf("after EvictViewer, expected first_sync again, got %s", upd.Kind)
	}
}
