package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// EnvelopeKind distinguishes the four input envelope shapes a frame can
// carry, mirroring the land keeper's mutation surface.
type EnvelopeKind string

const (
	EnvelopeJoin        EnvelopeKind = "join"
	EnvelopeLeave       EnvelopeKind = "leave"
	EnvelopeAction      EnvelopeKind = "action"
	EnvelopeClientEvent EnvelopeKind = "client_event"
)

// InputEnvelope is one recorded input delivered to the land during a tick.
type InputEnvelope struct {
	Kind    EnvelopeKind    `json:"kind"`
	Viewer  string          `json:"viewer,omitempty"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is one event the land emitted during a tick, in emission
// order.
type ServerEvent struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame is one tick's worth of recorded activity (§4.7). Hash and the state
// snapshot are both optional; a snapshot passed to Recorder.AddFrame is
// written to the sibling -state.jsonl file rather than inlined here, and
// HasSnap marks the frame (it is not serialized).
type Frame struct {
	TickID  uint64          `json:"tick_id"`
	Inputs  []InputEnvelope `json:"inputs,omitempty"`
	Events  []ServerEvent   `json:"events,omitempty"`
	Hash    string          `json:"state_hash,omitempty"`
	HasSnap bool            `json:"-"`
}

// Metadata describes the run a Record captures.
type Metadata struct {
	LandID        string            `json:"land_id"`
	LandType      string            `json:"land_type"`
	CreatedAt     string            `json:"created_at"` // RFC3339; supplied by the caller, never time.Now() here
	Tags          map[string]string `json:"tags,omitempty"`
	DefinitionID  string            `json:"definition_id"`
	InitialHash   string            `json:"initial_state_hash,omitempty"`
	Config        json.RawMessage   `json:"config,omitempty"`
	RNGSeed       int64             `json:"rng_seed"`
	RuleVariant   string            `json:"rule_variant,omitempty"`
	SchemaVersion int               `json:"schema_version"`
}

// Record is the full on-disk shape: one metadata block and an ordered list
// of frames.
type Record struct {
	Metadata Metadata `json:"metadata"`
	Frames   []Frame  `json:"frames"`
}

// stateLine is one line of the sibling -state.jsonl side file.
type stateLine struct {
	TickID        uint64          `json:"tick_id"`
	StateSnapshot json.RawMessage `json:"state_snapshot"`
}

// Recorder accumulates frames for one run and writes the record plus its
// optional state side-file. It is single-writer, like the patch recorder.
type Recorder struct {
	metadata   Metadata
	frames     []Frame
	stateLines []stateLine
}

// NewRecorder starts a recorder for one run.
func NewRecorder(metadata Metadata) *Recorder {
	return &Recorder{metadata: metadata}
}

// AddFrame appends a completed frame. If snapshot is non-nil, it is captured
// into the sibling state-snapshot side file rather than the frame itself.
func (r *Recorder) AddFrame(f Frame, snapshotJSON json.RawMessage) {
	if snapshotJSON != nil {
		f.HasSnap = true
		r.stateLines = append(r.stateLines, stateLine{TickID: f.TickID, StateSnapshot: snapshotJSON})
	}
	r.frames = append(r.frames, f)
}

// Save writes the record to path as JSON, and — if any frame captured a
// state snapshot — writes the sibling path+"-state.jsonl" file alongside it.
// A failure at either step is a record_io error (§7).
func (r *Recorder) Save(path string) error {
	rec := Record{Metadata: r.metadata, Frames: r.frames}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("record_io: encode record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("record_io: write record: %w", err)
	}

	if len(r.stateLines) == 0 {
		return nil
	}
	sidePath := path + "-state.jsonl"
	f, err := os.Create(sidePath)
	if err != nil {
		return fmt.Errorf("record_io: create state side-file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, line := range r.stateLines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("record_io: write state side-file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("record_io: flush state side-file: %w", err)
	}
	return nil
}

// LoadRecord reads a record file written by Recorder.Save.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("record_io: read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("record_io: decode record: %w", err)
	}
	return &rec, nil
}
