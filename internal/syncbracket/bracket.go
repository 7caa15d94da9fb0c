// Package syncbracket implements the begin_sync/end_sync pair (§4.6): a
// try-lock around snapshot capture that leaves live mutation handlers
// unblocked, paired with a recursive dirty clear on release.
package syncbracket

import (
	"sync"
	"sync/atomic"

	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
)

// Snapshotable is the subset of *statetree.Node's surface the bracket needs.
// Kept as an interface so land code can pass its root node directly.
type Snapshotable interface {
	Evaluate(viewer *string, mode policy.Mode) (snapshot.Value, error)
	IsDirty() bool
	ClearDirty()
}

// Bracket serializes sync operations against one state tree. A land keeper
// holds exactly one Bracket per tree; begin_sync/end_sync calls must come
// from the same single-writer actor that mutates the tree, so the lock here
// guards against concurrent sync attempts (e.g. a tick-driven sync racing a
// manual one), not against mutation itself.
type Bracket struct {
	tree   Snapshotable
	locked atomic.Bool
	mu     sync.Mutex
}

// New builds a bracket over tree.
func New(tree Snapshotable) *Bracket {
	return &Bracket{tree: tree}
}

// Session is the immutable handle returned by a successful BeginSync. It
// carries a frozen, server-visible snapshot (viewer=nil, mode=all) taken at
// begin_sync time; mutations to the live tree after this point do not affect
// it.
type Session struct {
	Snapshot snapshot.Value
	bracket  *Bracket
	ended    bool
}

// BeginSync attempts to acquire the bracket's single-holder lock. On
// contention it returns (nil, false) immediately rather than blocking —
// callers that need the reference try-lock contract should treat a false
// result as sync_contended and retry later, not as an error.
func (b *Bracket) BeginSync() (*Session, bool) {
	if !b.mu.TryLock() {
		return nil, false
	}
	snap, err := b.tree.Evaluate(nil, policy.ModeAll)
	if err != nil {
		b.mu.Unlock()
		return nil, false
	}
	return &Session{Snapshot: snap, bracket: b}, true
}

// EndSync releases the bracket and recursively clears the live tree's dirty
// flags. Calling EndSync more than once on the same session is a no-op.
func (s *Session) EndSync() {
	if s == nil || s.ended {
		return
	}
	s.ended = true
	s.bracket.tree.ClearDirty()
	s.bracket.mu.Unlock()
}

// Release is an alias for EndSync meant for defer sites ("if end_sync is not
// called, the lock must be released by the owning scope on drop"): callers
// that open a session with a defer immediately after BeginSync get dirty
// flags cleared and the lock released even if a handler panics.
func (s *Session) Release() {
	s.EndSync()
}
