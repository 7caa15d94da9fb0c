package syncengine

import (
	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/statetree"
)

// Options configures one GenerateDiff call.
type Options struct {
	// UseDirtyTracking enables the fast path: when true and the tree
	// reports no dirty fields anywhere, GenerateDiff returns no_change
	// without recomputing or re-diffing any snapshot.
	UseDirtyTracking bool
	// OnlyPaths, when non-empty, restricts emitted patches to those whose
	// path lies under one of these prefixes.
	OnlyPaths []snapshot.Path
}

// ExtractBroadcastSnapshot evaluates tree with mode=broadcast_only. The
// result does not depend on any viewer.
func (e *DiffEngine) ExtractBroadcastSnapshot(tree *statetree.Node) (snapshot.Value, error) {
	return tree.Evaluate(nil, policy.ModeBroadcastOnly)
}

// ExtractPerPlayerSnapshot evaluates tree with mode=per_player_only for viewer.
func (e *DiffEngine) ExtractPerPlayerSnapshot(tree *statetree.Node, viewer string) (snapshot.Value, error) {
	return tree.Evaluate(&viewer, policy.ModePerPlayerOnly)
}

// ExtractSyncPair produces the broadcast snapshot plus a per-viewer snapshot
// for each of viewerIDs. Because broadcast and per-player fields are
// mutually exclusive by policy, extracting them this way is byte-equivalent
// to calling ExtractBroadcastSnapshot and ExtractPerPlayerSnapshot
// separately for each viewer.
func (e *DiffEngine) ExtractSyncPair(tree *statetree.Node, viewerIDs []string) (snapshot.Value, map[string]snapshot.Value, error) {
	broadcast, err := e.ExtractBroadcastSnapshot(tree)
	if err != nil {
		return snapshot.Value{}, nil, err
	}
	perPlayer := make(map[string]snapshot.Value, len(viewerIDs))
	for _, v := range viewerIDs {
		snap, err := e.ExtractPerPlayerSnapshot(tree, v)
		if err != nil {
			return snapshot.Value{}, nil, err
		}
		perPlayer[v] = snap
	}
	return broadcast, perPlayer, nil
}

// LateJoinSnapshot returns the full per-viewer snapshot (broadcast union
// per-player) for a newly joined viewer, and as a side effect populates both
// the broadcast cache and this viewer's per-player cache, so the next
// GenerateDiff call for this viewer does not signal first_sync.
func (e *DiffEngine) LateJoinSnapshot(tree *statetree.Node, viewer string) (snapshot.Value, error) {
	broadcast, err := e.ExtractBroadcastSnapshot(tree)
	if err != nil {
		return snapshot.Value{}, err
	}
	perPlayer, err := e.ExtractPerPlayerSnapshot(tree, viewer)
	if err != nil {
		return snapshot.Value{}, err
	}
	e.broadcast = cacheEntry{value: broadcast, present: true}
	e.perPlayer[viewer] = cacheEntry{value: perPlayer, present: true}
	return mergeObjects(broadcast, perPlayer), nil
}

// WarmupCache populates the broadcast cache only; per-player caches remain
// empty, so every viewer's next GenerateDiff call still yields first_sync.
func (e *DiffEngine) WarmupCache(tree *statetree.Node) error {
	broadcast, err := e.ExtractBroadcastSnapshot(tree)
	if err != nil {
		return err
	}
	e.broadcast = cacheEntry{value: broadcast, present: true}
	return nil
}

// GenerateDiff implements the algorithm of §4.5: compare tree's current
// broadcast/per-player snapshots against the cache, and emit
// first_sync/diff/no_change.
func (e *DiffEngine) GenerateDiff(tree *statetree.Node, viewer string, opts Options) (Update, error) {
	broadcast, err := e.ExtractBroadcastSnapshot(tree)
	if err != nil {
		return Update{}, err
	}
	perPlayer, err := e.ExtractPerPlayerSnapshot(tree, viewer)
	if err != nil {
		return Update{}, err
	}
	return e.generateDiff(tree, viewer, broadcast, perPlayer, opts)
}

// GenerateDiffFromSnapshots is identical to GenerateDiff but accepts
// pre-extracted snapshots (e.g. from ExtractSyncPair) to avoid redundant
// evaluation when updating many viewers in one round.
func (e *DiffEngine) GenerateDiffFromSnapshots(tree *statetree.Node, viewer string, broadcastSnap, perPlayerSnap snapshot.Value, opts Options) (Update, error) {
	return e.generateDiff(tree, viewer, broadcastSnap, perPlayerSnap, opts)
}

func (e *DiffEngine) generateDiff(tree *statetree.Node, viewer string, broadcast, perPlayer snapshot.Value, opts Options) (Update, error) {
	perEntry, hasPer := e.perPlayer[viewer]

	if !e.broadcast.present || !hasPer || !perEntry.present {
		merged := mergeObjects(broadcast, perPlayer)
		patches := snapshot.Canonicalize(snapshot.Diff(snapshot.RootPath(), snapshot.Object(nil), merged))
		e.broadcast = cacheEntry{value: broadcast, present: true}
		e.perPlayer[viewer] = cacheEntry{value: perPlayer, present: true}
		e.metrics.record(KindFirstSync, patches)
		return firstSync(patches), nil
	}

	if opts.UseDirtyTracking && !tree.IsDirty() {
		e.metrics.record(KindNoChange, nil)
		return noChange(), nil
	}

	broadcastPatches := snapshot.Diff(snapshot.RootPath(), e.broadcast.value, broadcast)
	perPlayerPatches := snapshot.Diff(snapshot.RootPath(), perEntry.value, perPlayer)

	combined := append(broadcastPatches, perPlayerPatches...)
	if len(opts.OnlyPaths) > 0 {
		combined = filterByPrefixes(combined, opts.OnlyPaths)
	}
	combined = snapshot.Canonicalize(combined)

	e.broadcast = cacheEntry{value: broadcast, present: true}
	e.perPlayer[viewer] = cacheEntry{value: perPlayer, present: true}

	if len(combined) == 0 {
		e.metrics.record(KindNoChange, nil)
		return noChange(), nil
	}
	e.metrics.record(KindDiff, combined)
	return diffUpdate(combined), nil
}

func filterByPrefixes(patches []snapshot.Patch, prefixes []snapshot.Path) []snapshot.Patch {
	out := patches[:0:0]
	for _, p := range patches {
		for _, prefix := range prefixes {
			if p.Path.HasPrefix(prefix) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// mergeObjects combines two object values whose key sets are assumed
// disjoint (true for broadcast vs per-player fields of the same node, since
// every field carries exactly one policy). If a key collides, b wins.
func mergeObjects(a, b snapshot.Value) snapshot.Value {
	out := make(map[string]snapshot.Value)
	for _, k := range a.Keys() {
		v, _ := a.Field(k)
		out[k] = v
	}
	for _, k := range b.Keys() {
		v, _ := b.Field(k)
		out[k] = v
	}
	return snapshot.Object(out)
}
