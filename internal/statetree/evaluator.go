package statetree

import (
	"sort"

	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
)

// Evaluate produces the snapshot a given viewer sees of this node under mode,
// via a depth-first traversal of the registration table (§4.2 of the
// synchronization design).
//
// viewer == nil selects the server-visible traversal used for deterministic
// state hashing: server_only fields are still excluded, but per-player
// mapping fields are not restricted to a single key — every entry is
// included, since the hash must be sensitive to every player's data. A
// per_player_func field has no well-defined meaning without a concrete
// viewer and is omitted entirely in that case; this choice is fixed and
// documented rather than guessed per call.
func (n *Node) Evaluate(viewer *string, mode policy.Mode) (snapshot.Value, error) {
	obj := make(map[string]snapshot.Value, len(n.fields))
	for _, f := range n.fields {
		val, included, err := n.evalField(f, viewer, mode)
		if err != nil {
			return snapshot.Value{}, err
		}
		if included {
			obj[f.Name] = val
		}
	}
	return snapshot.Object(obj), nil
}

func (n *Node) evalField(f FieldDef, viewer *string, mode policy.Mode) (snapshot.Value, bool, error) {
	switch f.Policy.Kind() {
	case policy.KindServerOnly:
		return snapshot.Value{}, false, nil

	case policy.KindBroadcast:
		if mode == policy.ModePerPlayerOnly {
			return snapshot.Value{}, false, nil
		}
		val, err := evalShape(f, viewer, mode)
		return val, true, err

	case policy.KindPerPlayerSlice, policy.KindPerPlayerDictValue:
		if mode == policy.ModeBroadcastOnly {
			return snapshot.Value{}, false, nil
		}
		if f.Shape != ShapeMapping {
			return snapshot.Value{}, false, &policy.ViolationError{
				Field: f.Name, Policy: f.Policy.Kind(),
				Reason: "per-player mapping policy on a non-mapping field",
			}
		}
		return evalPerPlayerMapping(f, viewer, mode, f.Policy.Kind() == policy.KindPerPlayerDictValue)

	case policy.KindPerPlayerFunc:
		if mode == policy.ModeBroadcastOnly {
			return snapshot.Value{}, false, nil
		}
		if viewer == nil {
			return snapshot.Value{}, false, nil
		}
		full, err := evalShape(f, viewer, mode)
		if err != nil {
			return snapshot.Value{}, false, err
		}
		filtered, ok := f.Policy.Filter()(full, *viewer)
		return filtered, ok, nil

	default:
		return snapshot.Value{}, false, nil
	}
}

// evalShape evaluates a field's raw structural value (before any per-player
// restriction), recursing into nested nodes and mappings with the same
// viewer and mode so their own inner policies still apply.
func evalShape(f FieldDef, viewer *string, mode policy.Mode) (snapshot.Value, error) {
	switch f.Shape {
	case ShapeLeaf:
		return f.Leaf()
	case ShapeNode:
		child := f.Child()
		if child == nil {
			return snapshot.Null(), nil
		}
		return child.Evaluate(viewer, mode)
	case ShapeMapping:
		items, err := f.Mapping().Entries()
		if err != nil {
			return snapshot.Value{}, err
		}
		obj := make(map[string]snapshot.Value, len(items))
		for _, it := range items {
			val, err := resolveItem(it, viewer, mode)
			if err != nil {
				return snapshot.Value{}, err
			}
			obj[it.Key] = val
		}
		return snapshot.Object(obj), nil
	default:
		return snapshot.Null(), nil
	}
}

func evalPerPlayerMapping(f FieldDef, viewer *string, mode policy.Mode, unwrap bool) (snapshot.Value, bool, error) {
	items, err := f.Mapping().Entries()
	if err != nil {
		return snapshot.Value{}, false, err
	}

	if viewer == nil {
		// Server/hash view: every player's entry is included, keyed, regardless
		// of slice vs dict_value (there is no single viewer to unwrap to).
		obj := make(map[string]snapshot.Value, len(items))
		for _, it := range items {
			val, err := resolveItem(it, viewer, mode)
			if err != nil {
				return snapshot.Value{}, false, err
			}
			obj[it.Key] = val
		}
		return snapshot.Object(obj), true, nil
	}

	idx := sort.Search(len(items), func(i int) bool { return items[i].Key >= *viewer })
	if idx >= len(items) || items[idx].Key != *viewer {
		return snapshot.Value{}, false, nil
	}
	inner, err := resolveItem(items[idx], viewer, mode)
	if err != nil {
		return snapshot.Value{}, false, err
	}
	if unwrap {
		return inner, true, nil
	}
	return snapshot.Object(map[string]snapshot.Value{*viewer: inner}), true, nil
}

func resolveItem(it MappingItem, viewer *string, mode policy.Mode) (snapshot.Value, error) {
	if it.HasLeaf {
		return it.Leaf, nil
	}
	if it.Child != nil {
		return it.Child.Evaluate(viewer, mode)
	}
	return snapshot.Null(), nil
}
