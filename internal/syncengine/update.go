// Package syncengine implements the diff engine: per-viewer and broadcast
// snapshot caches, and the generate_diff/late_join/warmup operations that
// turn a state tree into first_sync/diff/no_change updates.
package syncengine

import "github.com/gmliao/landsync/internal/snapshot"

// Kind identifies which of the three update shapes a generate_diff call
// produced.
type Kind int

const (
	KindFirstSync Kind = iota
	KindDiff
	KindNoChange
)

func (k Kind) String() string {
	switch k {
	case KindFirstSync:
		return "first_sync"
	case KindDiff:
		return "diff"
	case KindNoChange:
		return "no_change"
	default:
		return "unknown"
	}
}

// Update is the diff engine's per-viewer result for one generate_diff call.
// A KindNoChange update always carries a nil Patches slice; it is never
// represented as an empty diff.
type Update struct {
	Kind    Kind
	Patches []snapshot.Patch
}

func firstSync(patches []snapshot.Patch) Update {
	return Update{Kind: KindFirstSync, Patches: patches}
}

func diffUpdate(patches []snapshot.Patch) Update {
	return Update{Kind: KindDiff, Patches: patches}
}

func noChange() Update {
	return Update{Kind: KindNoChange}
}
