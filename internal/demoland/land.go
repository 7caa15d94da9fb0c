package demoland

import (
	"encoding/json"
	"fmt"

	"github.com/gmliao/landsync/internal/replay"
)

// actionPayload is the JSON shape carried by an EnvelopeAction envelope's
// Payload for each action name the arena understands.
type actionPayload struct {
	Cards []int64 `json:"cards,omitempty"`
	Index int     `json:"index,omitempty"`
	Text  string  `json:"text,omitempty"`
}

// Land adapts an Arena to replay.Land, so a recorded run of actions against
// one arena instance can be replayed and checked for deterministic
// reproduction (§4.7).
type Land struct {
	Arena *Arena
}

// NewLand wraps arena for replay driving.
func NewLand(arena *Arena) *Land {
	return &Land{Arena: arena}
}

// ApplyInput dispatches one recorded envelope to the underlying arena.
func (l *Land) ApplyInput(in replay.InputEnvelope) error {
	switch in.Kind {
	case replay.EnvelopeJoin:
		l.Arena.Join(in.Viewer)
		return nil
	case replay.EnvelopeLeave:
		l.Arena.Leave(in.Viewer)
		return nil
	case replay.EnvelopeAction:
		return l.applyAction(in)
	case replay.EnvelopeClientEvent:
		// Client events are informational in this demo arena; they do not
		// mutate state.
		return nil
	default:
		return fmt.Errorf("demoland: unknown envelope kind %q", in.Kind)
	}
}

func (l *Land) applyAction(in replay.InputEnvelope) error {
	var p actionPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return fmt.Errorf("demoland: decode action %q payload: %w", in.Action, err)
		}
	}
	switch in.Action {
	case "deal_hand":
		return l.Arena.DealHand(in.Viewer, p.Cards)
	case "play_card":
		return l.Arena.PlayCard(in.Viewer, p.Index)
	case "set_note":
		return l.Arena.SetNote(in.Viewer, p.Text)
	case "grant_spectator":
		l.Arena.GrantSpectator(in.Viewer)
		return nil
	default:
		return fmt.Errorf("demoland: unknown action %q", in.Action)
	}
}

// AdvanceTick runs one round. The arena itself emits no server-pushed events
// distinct from its synced state, so the events list is always empty.
func (l *Land) AdvanceTick() ([]replay.ServerEvent, error) {
	l.Arena.AdvanceRound()
	return nil, nil
}

// StateHash returns the arena's current deterministic state hash.
func (l *Land) StateHash() (string, error) {
	return replay.StateHash(l.Arena.Node)
}
