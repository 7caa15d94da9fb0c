// Package policy defines the visibility vocabulary every synchronized field
// declares: who gets to see it, and how a per-player mapping is reshaped for
// its viewer.
package policy

import (
	"fmt"

	"github.com/gmliao/landsync/internal/snapshot"
)

// Kind identifies which visibility rule a field's Policy enforces.
type Kind int

const (
	KindBroadcast Kind = iota
	KindServerOnly
	KindPerPlayerSlice
	KindPerPlayerDictValue
	KindPerPlayerFunc
)

func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "broadcast"
	case KindServerOnly:
		return "server_only"
	case KindPerPlayerSlice:
		return "per_player_slice"
	case KindPerPlayerDictValue:
		return "per_player_dict_value"
	case KindPerPlayerFunc:
		return "per_player_func"
	default:
		return "unknown"
	}
}

// Filter is a user-supplied pure function from (value, viewer) to an
// optional filtered value, backing KindPerPlayerFunc.
type Filter func(value snapshot.Value, viewer string) (snapshot.Value, bool)

// Policy is the visibility rule attached to a state tree field.
type Policy struct {
	kind   Kind
	filter Filter
}

func (p Policy) Kind() Kind { return p.kind }

// Filter returns the custom filter for a KindPerPlayerFunc policy. It is nil
// for every other kind.
func (p Policy) Filter() Filter { return p.filter }

// RequiresMapping reports whether this policy kind can only be attached to a
// mapping-shaped field. Attaching it to anything else is a definition error
// detected at registration time (policy_violation).
func (p Policy) RequiresMapping() bool {
	return p.kind == KindPerPlayerSlice || p.kind == KindPerPlayerDictValue
}

func Broadcast() Policy { return Policy{kind: KindBroadcast} }

func ServerOnly() Policy { return Policy{kind: KindServerOnly} }

// PerPlayerSlice restricts a mapping field to the single entry for the
// viewer, still wrapped as a one-entry mapping: {viewer_id: inner}.
func PerPlayerSlice() Policy { return Policy{kind: KindPerPlayerSlice} }

// PerPlayerDictValue restricts a mapping field to the single entry for the
// viewer, unwrapped to just the inner value.
func PerPlayerDictValue() Policy { return Policy{kind: KindPerPlayerDictValue} }

// PerPlayerFunc applies a user-supplied filter to decide visibility and
// content for a specific viewer.
func PerPlayerFunc(f Filter) Policy {
	if f == nil {
		panic("policy: PerPlayerFunc requires a non-nil filter")
	}
	return Policy{kind: KindPerPlayerFunc, filter: f}
}

// Mode selects which category of fields a traversal includes.
type Mode int

const (
	ModeAll Mode = iota
	ModeBroadcastOnly
	ModePerPlayerOnly
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeBroadcastOnly:
		return "broadcast_only"
	case ModePerPlayerOnly:
		return "per_player_only"
	default:
		return "unknown"
	}
}

// ViolationError reports a per_player_* policy attached to a field whose
// shape cannot support it (policy_violation in the engine's error taxonomy).
type ViolationError struct {
	Field  string
	Policy Kind
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("policy_violation: field %q has policy %s: %s", e.Field, e.Policy, e.Reason)
}
