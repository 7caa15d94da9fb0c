package replay

// Land is the out-of-scope collaborator a replay engine drives: the actor
// that owns a state tree, applies inputs, and advances its own tick. A real
// implementation wraps a land keeper; this interface is the minimal surface
// the replay engine needs from it.
type Land interface {
	// ApplyInput feeds one recorded input envelope to the land. Inputs
	// within a tick are applied in recorded order.
	ApplyInput(InputEnvelope) error
	// AdvanceTick runs exactly one tick and returns the server events it
	// emitted, in emission order.
	AdvanceTick() ([]ServerEvent, error)
	// StateHash returns the current deterministic state hash (§4.7).
	StateHash() (string, error)
}

// HashMismatch reports a tick whose computed state hash did not match the
// recorded one.
type HashMismatch struct {
	TickID        uint64
	RecordedHash  string
	ComputedHash  string
}

// EventMismatch reports a tick whose emitted server events diverged from the
// recorded sequence, either in content or in count.
type EventMismatch struct {
	TickID         uint64
	Index          int
	RecordedEvent  *ServerEvent // nil if the recorded sequence was shorter
	ComputedEvent  *ServerEvent // nil if the computed sequence was shorter
}

// Report is the replay engine's output (§4.7 step 3). Success is both lists
// empty.
type Report struct {
	HashMismatches  []HashMismatch
	EventMismatches []EventMismatch
}

// OK reports whether the replay reproduced the record exactly.
func (r Report) OK() bool {
	return len(r.HashMismatches) == 0 && len(r.EventMismatches) == 0
}

// Run re-executes rec against land tick by tick, feeding inputs in their
// recorded order and comparing the resulting hash and event sequences.
// Mismatches accumulate into the returned Report rather than aborting the
// run, per §7's replay_mismatch policy.
func Run(land Land, rec *Record) (Report, error) {
	var report Report
	for _, frame := range rec.Frames {
		for _, in := range frame.Inputs {
			if err := land.ApplyInput(in); err != nil {
				return report, err
			}
		}
		events, err := land.AdvanceTick()
		if err != nil {
			return report, err
		}
		compareEvents(frame.TickID, frame.Events, events, &report)

		if frame.Hash == "" {
			continue
		}
		got, err := land.StateHash()
		if err != nil {
			return report, err
		}
		if got != frame.Hash {
			report.HashMismatches = append(report.HashMismatches, HashMismatch{
				TickID:       frame.TickID,
				RecordedHash: frame.Hash,
				ComputedHash: got,
			})
		}
	}
	return report, nil
}

func compareEvents(tickID uint64, recorded, computed []ServerEvent, report *Report) {
	n := len(recorded)
	if len(computed) > n {
		n = len(computed)
	}
	for i := 0; i < n; i++ {
		var rec, comp *ServerEvent
		if i < len(recorded) {
			rec = &recorded[i]
		}
		if i < len(computed) {
			comp = &computed[i]
		}
		if rec == nil || comp == nil || !sameEvent(*rec, *comp) {
			report.EventMismatches = append(report.EventMismatches, EventMismatch{
				TickID:        tickID,
				Index:         i,
				RecordedEvent: rec,
				ComputedEvent: comp,
			})
		}
	}
}

func sameEvent(a, b ServerEvent) bool {
	return a.Name == b.Name && string(a.Payload) == string(b.Payload)
}
