// Package wsserver is the demo transport: it exposes landsyncd's
// per-viewer updates over WebSocket connections, one connection per viewer,
// so a browser client can watch the sync engine's output without any
// game-specific client code.
//
// # Wire message
//
// Every frame is a single JSON object:
//
//	{"kind": "first_sync" | "diff" | "no_change", "patches": [...]}
//
// where each patch is {"path": "/seg1/seg2", "op": "set"|"delete"|"add", "value": ...}.
// "patches" is omitted when the update carries none (always for no_change).
// This mirrors the canonical path format and patch shape of the
// synchronization engine directly; no additional envelope is added.
package wsserver

import (
	"encoding/json"
	"fmt"

	"github.com/gmliao/landsync/internal/snapshot"
	"github.com/gmliao/landsync/internal/syncengine"
)

type wirePatch struct {
	Path  string          `json:"path"`
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value,omitempty"`
}

type wireUpdate struct {
	Kind    string      `json:"kind"`
	Patches []wirePatch `json:"patches,omitempty"`
}

// EncodeUpdate renders a syncengine.Update as the wire JSON frame a viewer's
// connection receives.
func EncodeUpdate(upd syncengine.Update) ([]byte, error) {
	wire := wireUpdate{Kind: upd.Kind.String()}
	for _, p := range upd.Patches {
		valueJSON, err := valueToJSON(p.Value)
		if err != nil {
			return nil, fmt.Errorf("wsserver: encode update: %w", err)
		}
		wire.Patches = append(wire.Patches, wirePatch{
			Path:  p.Path.String(),
			Op:    p.Op.String(),
			Value: valueJSON,
		})
	}
	return json.Marshal(wire)
}

// valueToJSON renders a snapshot.Value as JSON for the wire. It intentionally
// does not reuse snapshot.EncodeCanonical (which targets hashing, not a
// standard JSON document) so the wire format stays a JSON object clients can
// parse with any off-the-shelf decoder.
func valueToJSON(v snapshot.Value) (json.RawMessage, error) {
	switch v.Kind() {
	case snapshot.KindNull:
		return json.RawMessage("null"), nil
	case snapshot.KindBool:
		return json.Marshal(v.Bool())
	case snapshot.KindInt:
		return json.Marshal(v.Int())
	case snapshot.KindDouble:
		return json.Marshal(v.Double())
	case snapshot.KindString:
		return json.Marshal(v.String_())
	case snapshot.KindArray:
		items := make([]json.RawMessage, 0, len(v.Items()))
		for _, item := range v.Items() {
			raw, err := valueToJSON(item)
			if err != nil {
				return nil, err
			}
			items = append(items, raw)
		}
		return json.Marshal(items)
	case snapshot.KindObject:
		obj := make(map[string]json.RawMessage, v.Len())
		for _, k := range v.Keys() {
			child, _ := v.Field(k)
			raw, err := valueToJSON(child)
			if err != nil {
				return nil, err
			}
			obj[k] = raw
		}
		return json.Marshal(obj)
	default:
		return nil, fmt.Errorf("wsserver: unknown snapshot kind %v", v.Kind())
	}
}
