// Package patch implements the single-writer recorded-patch buffer that a
// state tree's field setters append to while a recorder is attached.
package patch

import "github.com/gmliao/landsync/internal/snapshot"

// Recorder is a single-writer, append-only buffer of structural patches.
// It is not safe for concurrent use; the state tree's single-writer actor
// discipline is what makes that safe in practice.
type Recorder struct {
	buf []snapshot.Patch
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends p to the buffer.
func (r *Recorder) Record(p snapshot.Patch) {
	r.buf = append(r.buf, p)
}

// HasPatches reports whether any patch has been recorded since the last Take.
func (r *Recorder) HasPatches() bool {
	return len(r.buf) > 0
}

// Take drains and returns the buffered patches as a fresh slice, so later
// Record calls cannot overwrite what was returned. It preserves the buffer's
// underlying capacity (re-slicing to length 0) to avoid reallocation churn
// across sync brackets.
func (r *Recorder) Take() []snapshot.Patch {
	if len(r.buf) == 0 {
		return nil
	}
	out := append([]snapshot.Patch(nil), r.buf...)
	r.buf = r.buf[:0]
	return out
}
