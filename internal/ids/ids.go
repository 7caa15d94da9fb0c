// Package ids generates the opaque identifiers the engine treats as stable
// strings: land ids, replay run ids, and fallback viewer ids when a
// transport layer does not supply its own.
package ids

import "github.com/google/uuid"

// NewLandID returns a fresh opaque land identifier.
func NewLandID() string {
	return uuid.NewString()
}

// NewRunID returns a fresh opaque replay run identifier, used to name a
// record file and its catalog row.
func NewRunID() string {
	return uuid.NewString()
}

// NewViewerID returns a fresh opaque viewer identifier for a transport that
// has no natural stable id of its own (e.g. an anonymous websocket
// connection) to use as a player id.
func NewViewerID() string {
	return uuid.NewString()
}
