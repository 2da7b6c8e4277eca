package radar

import (
	"sync"

	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
)

// ScanSink is the delivery surface for incoming scans. Both the live feed
// and playback sessions deliver through it without distinguishing
// themselves.
type ScanSink interface {
	Deliver(scan *Scan)
}

// IngestionSink is the single entry point for incoming scans. While armed it
// filters each scan through the optional ROI and appends the survivors to
// the sample store; while disarmed every scan is dropped, never buffered, so
// a feed left running between collections cannot grow memory.
//
// The sink's own mutex serializes deliveries and the arm gate. The
// controller's teardown disarms the sink before resetting the store, so once
// teardown returns no in-flight delivery can leave trailing samples behind.
type IngestionSink struct {
	store   *SampleStore
	heatmap *Heatmap
	roi     ROI

	// mu covers the arm gate and counters and serializes deliveries; it is
	// distinct from the store's own lock.
	mu        sync.Mutex
	armed     bool
	delivered uint64
	dropped   uint64
}

// SinkConfig configures an IngestionSink.
type SinkConfig struct {
	Store   *SampleStore
	Heatmap *Heatmap // optional live heatmap
	ROI     ROI      // optional; nil accepts every sample
}

// NewIngestionSink creates a disarmed sink over the given store.
func NewIngestionSink(cfg SinkConfig) *IngestionSink {
	return &IngestionSink{
		store:   cfg.Store,
		heatmap: cfg.Heatmap,
		roi:     cfg.ROI,
	}
}

// Deliver handles one incoming scan. No-op when no collection is active.
// It must never block on anything other than the store's exclusion; there
// is no I/O on this path.
func (k *IngestionSink) Deliver(scan *Scan) {
	if scan == nil || len(scan.Samples) == 0 {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.armed {
		k.dropped++
		monitoring.Debugf("[sink] dropped scan with %d samples (no active collection)", len(scan.Samples))
		return
	}

	kept := k.roi.Filter(scan.Samples)
	if k.heatmap != nil {
		k.heatmap.AddScan(scan.Samples)
	}
	if len(kept) > 0 {
		k.store.AppendBatch(kept)
	}
	k.delivered++
}

// Arm opens the collection window. Owned by the CollectionController.
func (k *IngestionSink) Arm() {
	k.mu.Lock()
	k.armed = true
	k.mu.Unlock()
}

// Disarm closes the collection window. After Disarm returns, no delivery in
// flight can still append: any concurrent Deliver either finished its append
// before the gate flipped (and is cleared by the reset that follows in
// teardown) or observes the closed gate and drops.
func (k *IngestionSink) Disarm() {
	k.mu.Lock()
	k.armed = false
	k.mu.Unlock()
}

// Armed reports whether a collection window is open.
func (k *IngestionSink) Armed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.armed
}

// Stats returns the number of scans appended and dropped since creation.
func (k *IngestionSink) Stats() (delivered, dropped uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.delivered, k.dropped
}
