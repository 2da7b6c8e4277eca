package radar

import (
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/timeutil"
)

// Progress is one consistent observation of the active run.
type Progress struct {
	Active     bool          `json:"active"`
	RunID      string        `json:"run_id,omitempty"`
	Count      int           `json:"count"`
	Generation uint64        `json:"generation"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ProgressReader periodically samples collection progress for display. The
// count and generation come from a single store snapshot, so a reader can
// tell a reset apart from a run that simply has not accumulated points yet.
type ProgressReader struct {
	store      *SampleStore
	controller *CollectionController
	clock      timeutil.Clock
}

// NewProgressReader creates a reader over the store and controller. A nil
// clock defaults to the real one.
func NewProgressReader(store *SampleStore, controller *CollectionController, clock timeutil.Clock) *ProgressReader {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ProgressReader{store: store, controller: controller, clock: clock}
}

// Read returns the current progress. Between runs it reports inactive with
// a zero count and elapsed time.
func (r *ProgressReader) Read() Progress {
	count, gen := r.store.Snapshot()
	p := Progress{Count: count, Generation: gen}

	if r.controller != nil {
		if startedAt, ok := r.controller.StartedAt(); ok {
			p.Active = true
			p.RunID = r.controller.CurrentRunID()
			p.Elapsed = r.clock.Since(startedAt)
		}
	}
	return p
}
