// Package demoland implements a small concrete land ("arena") that
// exercises every sync policy kind, so the rest of the stack (diff engine,
// sync bracket, replay) has a real tree to operate on instead of a purely
// hypothetical one.
//
// Arena rules (deliberately trivial): each joined player holds a hand of
// card values; playing a card moves it from the hand to the shared pot and
// adds its value to the player's score. None of this is meant to be a real
// game — it is a vehicle for the sync semantics.
package demoland

import (
	"fmt"
	"sort"

	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/statetree"
)

// Hand is one player's nested state: the cards they currently hold. It is
// per_player_slice-visible, so only its owner sees its contents.
type Hand struct {
	*statetree.Node
	cards []int64
}

func newHand() *Hand {
	h := &Hand{Node: statetree.NewNode()}
	must(h.RegisterLeaf("cards", policy.Broadcast(), func() (snapshot.Value, error) {
		items := make([]snapshot.Value, len(h.cards))
		for i, c := range h.cards {
			items[i] = snapshot.Int(c)
		}
		return snapshot.Array(items...), nil
	}))
	return h
}

func (h *Hand) setCards(cards []int64) {
	h.cards = cards
	h.MarkDirty("cards")
	items := make([]snapshot.Value, len(cards))
	for i, c := range cards {
		items[i] = snapshot.Int(c)
	}
	h.RecordSet("cards", snapshot.Array(items...))
}

// Note is a player's private scratchpad value, visible only as the
// unwrapped inner value via per_player_dict_value (rather than wrapped in a
// one-entry mapping, the way Hand is under per_player_slice).
type Note struct {
	*statetree.Node
	text string
}

func newNote() *Note {
	n := &Note{Node: statetree.NewNode()}
	must(n.RegisterLeaf("text", policy.Broadcast(), func() (snapshot.Value, error) {
		return snapshot.String(n.text), nil
	}))
	return n
}

func (n *Note) setText(text string) {
	n.text = text
	n.MarkDirty("text")
	n.RecordSet("text", snapshot.String(text))
}

// Arena is the root state node of one land instance.
type Arena struct {
	*statetree.Node

	round    int64
	pot      int64
	deckSeed int64

	hands  *statetree.ReactiveMap[*Hand]
	scores *statetree.ReactiveMap[int64]
	notes  *statetree.ReactiveMap[*Note]

	spectatorAllowList map[string]bool
}

// must panics on a registration error, which can only happen if this file's
// own field declarations are wrong (a programmer error, not a runtime one).
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// NewArena builds a fresh, empty arena with no players.
func NewArena(deckSeed int64) *Arena {
	a := &Arena{
		Node:               statetree.NewNode(),
		deckSeed:           deckSeed,
		spectatorAllowList: make(map[string]bool),
	}

	must(a.RegisterLeaf("round", policy.Broadcast(), func() (snapshot.Value, error) {
		return snapshot.Int(a.round), nil
	}))
	must(a.RegisterLeaf("pot", policy.Broadcast(), func() (snapshot.Value, error) {
		return snapshot.Int(a.pot), nil
	}))
	must(a.RegisterLeaf("deck_seed", policy.ServerOnly(), func() (snapshot.Value, error) {
		return snapshot.Int(a.deckSeed), nil
	}))

	a.hands = statetree.NewNodeMap(func(h *Hand) *statetree.Node { return h.Node })
	must(a.RegisterMapping("hands", policy.PerPlayerSlice(), func() statetree.MappingView { return a.hands }))
	a.hands.Bind(a.Node, "hands")

	a.scores = statetree.NewLeafMap(func(v int64) (snapshot.Value, error) { return snapshot.Int(v), nil })
	must(a.RegisterMapping("scores", policy.Broadcast(), func() statetree.MappingView { return a.scores }))
	a.scores.Bind(a.Node, "scores")

	a.notes = statetree.NewNodeMap(func(n *Note) *statetree.Node { return n.Node })
	must(a.RegisterMapping("notes", policy.PerPlayerDictValue(), func() statetree.MappingView { return a.notes }))
	a.notes.Bind(a.Node, "notes")

	must(a.RegisterLeaf("spectator_flag", policy.PerPlayerFunc(a.spectatorFilter), func() (snapshot.Value, error) {
		return snapshot.Bool(true), nil
	}))

	return a
}

func (a *Arena) spectatorFilter(_ snapshot.Value, viewer string) (snapshot.Value, bool) {
	if a.spectatorAllowList[viewer] {
		return snapshot.Bool(true), true
	}
	return snapshot.Value{}, false
}

// Join seats a new player with a fresh empty hand, zero score, and empty
// note.
func (a *Arena) Join(player string) {
	a.hands.Set(player, newHand())
	a.scores.Set(player, 0)
	a.notes.Set(player, newNote())
}

// Leave removes a player entirely; their hand, score, and note all emit
// delete patches to any viewer still watching them (i.e. nobody, since
// per-player fields are only visible to their own owner — this mainly
// matters for the broadcast scores mapping).
func (a *Arena) Leave(player string) {
	a.hands.Delete(player)
	a.scores.Delete(player)
	a.notes.Delete(player)
	delete(a.spectatorAllowList, player)
}

// DealHand overwrites player's hand with cards. A definition error (unknown
// player) is reported rather than silently ignored.
func (a *Arena) DealHand(player string, cards []int64) error {
	hand, ok := a.hands.Get(player)
	if !ok {
		return fmt.Errorf("demoland: unknown player %q", player)
	}
	hand.setCards(append([]int64(nil), cards...))
	return nil
}

// PlayCard moves the card at index idx from player's hand into the shared
// pot and credits it to their score.
func (a *Arena) PlayCard(player string, idx int) error {
	hand, ok := a.hands.Get(player)
	if !ok {
		return fmt.Errorf("demoland: unknown player %q", player)
	}
	if idx < 0 || idx >= len(hand.cards) {
		return fmt.Errorf("demoland: card index %d out of range for %q", idx, player)
	}
	card := hand.cards[idx]
	remaining := append(append([]int64(nil), hand.cards[:idx]...), hand.cards[idx+1:]...)
	hand.setCards(remaining)

	a.pot += card
	a.MarkDirty("pot")
	a.RecordSet("pot", snapshot.Int(a.pot))

	score, _ := a.scores.Get(player)
	a.scores.Set(player, score+card)
	return nil
}

// SetNote overwrites player's private scratchpad text.
func (a *Arena) SetNote(player, text string) error {
	note, ok := a.notes.Get(player)
	if !ok {
		return fmt.Errorf("demoland: unknown player %q", player)
	}
	note.setText(text)
	return nil
}

// GrantSpectator allows viewer to see the spectator_flag field on their next
// evaluation.
func (a *Arena) GrantSpectator(viewer string) {
	a.spectatorAllowList[viewer] = true
}

// AdvanceRound increments the round counter, the one piece of state every
// viewer watches regardless of their own player identity.
func (a *Arena) AdvanceRound() {
	a.round++
	a.MarkDirty("round")
	a.RecordSet("round", snapshot.Int(a.round))
}

// Players returns the currently seated player ids, sorted.
func (a *Arena) Players() []string {
	keys := a.hands.Keys()
	sort.Strings(keys)
	return keys
}
