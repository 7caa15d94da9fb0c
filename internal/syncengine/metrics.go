package syncengine

import (
	"log/slog"
	"time"

	"github.com/gmliao/landsync/internal/snapshot"
)

// windowSize is how many outcomes Metrics accumulates before it logs a
// summary and resets, mirroring the teacher's snapshot-metrics windowing.
const windowSize = 256

// Metrics accumulates a rolling window of generate_diff outcomes for one
// DiffEngine: how many first_sync/diff/no_change updates were produced, and
// the summed snapshot.EncodeCanonical size of the emitted patches' values.
// Paths and wire framing are not counted (internal/wsserver sends JSON, not
// the canonical encoding), and a delete patch counts as the 4-byte "null".
type Metrics struct {
	firstSyncCount int
	diffCount      int
	noChangeCount  int
	patchBytes     int64
	windowStart    time.Time
	logger         *slog.Logger
}

func (m *Metrics) record(kind Kind, patches []snapshot.Patch) {
	if m.windowStart.IsZero() {
		m.windowStart = time.Now()
	}
	switch kind {
	case KindFirstSync:
		m.firstSyncCount++
	case KindDiff:
		m.diffCount++
	case KindNoChange:
		m.noChangeCount++
	}
	for _, p := range patches {
		m.patchBytes += int64(len(snapshot.EncodeCanonical(p.Value)))
	}

	total := m.firstSyncCount + m.diffCount + m.noChangeCount
	if total >= windowSize {
		m.flush()
	}
}

func (m *Metrics) flush() {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("syncengine update window",
		"first_sync", m.firstSyncCount,
		"diff", m.diffCount,
		"no_change", m.noChangeCount,
		"patch_bytes", m.patchBytes,
		"window", time.Since(m.windowStart),
	)
	m.firstSyncCount = 0
	m.diffCount = 0
	m.noChangeCount = 0
	m.patchBytes = 0
	m.windowStart = time.Time{}
}

// SetLogger overrides the logger used for window summaries. Passing nil
// restores slog.Default().
func (e *DiffEngine) SetLogger(logger *slog.Logger) {
	e.metrics.logger = logger
}

// Snapshot returns the current window's accumulated counts without
// resetting them, useful for tests and health endpoints.
func (e *DiffEngine) Snapshot() (firstSync, diff, noChange int, patchBytes int64) {
	return e.metrics.firstSyncCount, e.metrics.diffCount, e.metrics.noChangeCount, e.metrics.patchBytes
}
