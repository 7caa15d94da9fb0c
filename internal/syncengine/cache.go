package syncengine

import "github.com/gmliao/landsync/internal/snapshot"

type cacheEntry struct {
	value   snapshot.Value
	present bool
}

// DiffEngine holds the per-viewer and broadcast snapshot caches described in
// §3's "Per-player cache". One engine instance belongs to exactly one land
// keeper; it is not internally concurrent (the keeper's single-writer
// discipline is what makes that safe).
type DiffEngine struct {
	broadcast  cacheEntry
	perPlayer  map[string]cacheEntry
	metrics    Metrics
}

// New creates an empty diff engine: no broadcast cache, no viewers observed.
func New() *DiffEngine {
	return &DiffEngine{perPlayer: make(map[string]cacheEntry)}
}

// EvictViewer drops a viewer's cached snapshot. The next GenerateDiff call
// for that viewer will emit first_sync. Used to recover from a
// cache_inconsistency.
func (e *DiffEngine) EvictViewer(viewer string) {
	delete(e.perPlayer, viewer)
}

// EvictAll drops every cached snapshot, including the shared broadcast
// cache. The next GenerateDiff call for any viewer will emit first_sync.
func (e *DiffEngine) EvictAll() {
	e.broadcast = cacheEntry{}
	e.perPlayer = make(map[string]cacheEntry)
}

// HasViewer reports whether viewer has a cached snapshot (has received at
// least a first_sync).
func (e *DiffEngine) HasViewer(viewer string) bool {
	entry, ok := e.perPlayer[viewer]
	return ok && entry.present
}

// ViewerCount reports how many viewers currently have cache entries.
func (e *DiffEngine) ViewerCount() int {
	return len(e.perPlayer)
}
