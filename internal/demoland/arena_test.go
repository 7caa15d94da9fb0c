package demoland_test

import (
	"testing"

	"github.com/gmliao/landsync/internal/demoland"
	"github.com/gmliao/landsync/internal/patch"
	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/syncengine"
)

func TestServerOnlyDeckSeedNeverVisible(t *testing.T) {
	a := demoland.NewArena(777)
	a.Join("alice")

	for _, mode := range []policy.Mode{policy.ModeAll, policy.ModeBroadcastOnly, policy.ModePerPlayerOnly} {
		val, err := a.Evaluate(nil, mode)
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", mode, err)
		}
		if _, ok := val.Field("deck_seed"); ok {
			t.Fatalf("deck_seed leaked under mode=%s", mode)
		}
	}
}

func TestPlayCardMovesCardToPotAndScore(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")
	if err := a.DealHand("alice", []int64{3, 4}); err != nil {
		t.Fatalf("DealHand: %v", err)
	}
	if err := a.PlayCard("alice", 0); err != nil {
		t.Fatalf("PlayCard: %v", err)
	}

	aliceID := "alice"
	val, err := a.Evaluate(&aliceID, policy.ModeAll)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	pot, _ := val.Field("pot")
	if pot.Int() != 3 {
		t.Fatalf("pot = %d, want 3", pot.Int())
	}
	scores, _ := val.Field("scores")
	aliceScore, _ := scores.Field("alice")
	if aliceScore.Int() != 3 {
		t.Fatalf("alice's score = %d, want 3", aliceScore.Int())
	}
	hands, _ := val.Field("hands")
	aliceHand, _ := hands.Field("alice")
	cards, _ := aliceHand.Field("cards")
	if cards.Len() != 1 {
		t.Fatalf("expected 1 remaining card, got %d", cards.Len())
	}
}

func TestHandsAreIsolatedBetweenPlayers(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")
	a.Join("bob")
	must(a.DealHand("alice", []int64{1}))
	must(a.DealHand("bob", []int64{2}))

	aliceID := "alice"
	val, err := a.Evaluate(&aliceID, policy.ModeAll)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	hands, _ := val.Field("hands")
	if hands.Len() != 1 {
		t.Fatalf("alice should only see her own hand entry, got %d entries", hands.Len())
	}
	if _, ok := hands.Field("bob"); ok {
		t.Fatal("alice must not see bob's hand")
	}
}

func TestNotesUnwrapToInnerValue(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")
	must(a.SetNote("alice", "remember the river card"))

	aliceID := "alice"
	val, err := a.Evaluate(&aliceID, policy.ModeAll)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	notes, ok := val.Field("notes")
	if !ok {
		t.Fatal("expected a notes field")
	}
	text, ok := notes.Field("text")
	if !ok || text.String_() != "remember the river card" {
		t.Fatalf("expected unwrapped note text, got %+v", notes)
	}
}

func TestSpectatorFlagRequiresGrant(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")

	aliceID := "alice"
	val, err := a.Evaluate(&aliceID, policy.ModeAll)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := val.Field("spectator_flag"); ok {
		t.Fatal("spectator_flag must be absent before a grant")
	}

	a.GrantSpectator("alice")
	val2, err := a.Evaluate(&aliceID, policy.ModeAll)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if flag, ok := val2.Field("spectator_flag"); !ok || !flag.Bool() {
		t.Fatal("spectator_flag must be present and true after a grant")
	}
}

func TestPlayCardAgainstDiffEngineIsolatesViewers(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")
	a.Join("bob")
	must(a.DealHand("alice", []int64{5}))
	must(a.DealHand("bob", []int64{6}))

	e := syncengine.New()
	if _, err := e.GenerateDiff(a.Node, "alice", syncengine.Options{}); err != nil {
		t.Fatalf("GenerateDiff(alice): %v", err)
	}
	if _, err := e.GenerateDiff(a.Node, "bob", syncengine.Options{}); err != nil {
		t.Fatalf("GenerateDiff(bob): %v", err)
	}

	must(a.PlayCard("alice", 0))

	updAlice, err := e.GenerateDiff(a.Node, "alice", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff(alice): %v", err)
	}
	if updAlice.Kind != syncengine.KindDiff {
		t.Fatalf("alice should observe a diff after playing a card, got %s", updAlice.Kind)
	}

	updBob, err := e.GenerateDiff(a.Node, "bob", syncengine.Options{})
	if err != nil {
		t.Fatalf("GenerateDiff(bob): %v", err)
	}
	if updBob.Kind != syncengine.KindNoChange {
		t.Fatalf("bob should see no_change: the shared broadcast cache already absorbed the pot/score change on alice's call, got %s", updBob.Kind)
	}
	for _, p := range updBob.Patches {
		if p.Path.HasPrefix(snapshot.NewPath("hands", "alice")) {
			t.Fatal("bob's update must not contain alice's hand path")
		}
	}
}

func TestRecordedPatchesMatchSnapshotDiffAfterPlayCard(t *testing.T) {
	a := demoland.NewArena(1)
	a.Join("alice")
	must(a.DealHand("alice", []int64{7, 8}))

	rec := patch.NewRecorder()
	a.AttachRecorder(rec)

	before := a.StructuralValue()
	must(a.PlayCard("alice", 0))
	after := a.StructuralValue()

	recorded := snapshot.Canonicalize(rec.Take())
	diffed := snapshot.Canonicalize(snapshot.Diff(snapshot.RootPath(), before, after))

	if len(recorded) != len(diffed) {
		t.Fatalf("recorded patch count %d != diffed patch count %d\nrecorded=%+v\ndiffed=%+v", len(recorded), len(diffed), recorded, diffed)
	}
	for i := range recorded {
		if recorded[i].Path.String() != diffed[i].Path.String() || recorded[i].Op != diffed[i].Op {
			t.Fatalf("patch %d differs: recorded=%+v diffed=%+v", i, recorded[i], diffed[i])
		}
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
