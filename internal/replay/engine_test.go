package replay_test

import (
	"testing"

	"github.com/gmliao/landsync/internal/replay"
)

// fakeLand deterministically advances a counter each tick and emits one
// event per join input; it is a minimal stand-in for a land keeper.
type fakeLand struct {
	value  int64
	joined []string
}

func (f *fakeLand) ApplyInput(in replay.InputEnvelope) error {
	if in.Kind == replay.EnvelopeJoin {
		f.joined = append(f.joined, in.Viewer)
	}
	return nil
}

func (f *fakeLand) AdvanceTick() ([]replay.ServerEvent, error) {
	f.value++
	var events []replay.ServerEvent
	for _, v := range f.joined {
		events = append(events, replay.ServerEvent{Name: "joined:" + v})
	}
	f.joined = nil
	return events, nil
}

func (f *fakeLand) StateHash() (string, error) {
	// A trivial deterministic "hash" standing in for a real state_hash call.
	if f.value%2 == 0 {
		return "even", nil
	}
	return "odd", nil
}

func TestRunReportsNoMismatchesWhenRecordMatchesReplay(t *testing.T) {
	rec := &replay.Record{
		Frames: []replay.Frame{
			{TickID: 0, Inputs: []replay.InputEnvelope{{Kind: replay.EnvelopeJoin, Viewer: "alice"}}, Events: []replay.ServerEvent{{Name: "joined:alice"}}, Hash: "odd"},
			{TickID: 1, Hash: "even"},
		},
	}
	report, err := replay.Run(&fakeLand{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected a clean replay, got %+v", report)
	}
}

func TestRunDetectsHashMismatch(t *testing.T) {
	rec := &replay.Record{
		Frames: []replay.Frame{
			{TickID: 0, Hash: "even"}, // actual will be "odd" after tick 1
		},
	}
	report, err := replay.Run(&fakeLand{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.HashMismatches) != 1 {
		t.Fatalf("expected exactly one hash mismatch, got %+v", report.HashMismatches)
	}
	if report.HashMismatches[0].RecordedHash != "even" || report.HashMismatches[0].ComputedHash != "odd" {
		t.Fatalf("unexpected mismatch contents: %+v", report.HashMismatches[0])
	}
	if report.OK() {
		t.Fatal("Report.OK must be false when a hash mismatch is present")
	}
}

func TestRunDetectsEventMismatch(t *testing.T) {
	rec := &replay.Record{
		Frames: []replay.Frame{
			{TickID: 0, Inputs: []replay.InputEnvelope{{Kind: replay.EnvelopeJoin, Viewer: "bob"}}, Events: []replay.ServerEvent{{Name: "joined:alice"}}},
		},
	}
	report, err := replay.Run(&fakeLand{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.EventMismatches) != 1 {
		t.Fatalf("expected exactly one event mismatch, got %+v", report.EventMismatches)
	}
}
