package radar

import (
	"testing"
	"time"
)

func testScan(samples ...Sample) *Scan {
	return &Scan{SensorID: "awr-test", Timestamp: time.Now(), Samples: samples}
}

func TestSinkDiscardsWhenDisarmed(t *testing.T) {
	store := NewSampleStore()
	sink := NewIngestionSink(SinkConfig{Store: store})

	sink.Deliver(testScan(sampleAt(1, 1, 10)))

	if count, _ := store.Snapshot(); count != 0 {
		t.Errorf("disarmed sink appended %d samples", count)
	}
	delivered, dropped := sink.Stats()
	if delivered != 0 || dropped != 1 {
		t.Errorf("expected 0 delivered / 1 dropped, got %d / %d", delivered, dropped)
	}
}

func TestSinkAppendsWhenArmed(t *testing.T) {
	store := NewSampleStore()
	sink := NewIngestionSink(SinkConfig{Store: store})

	sink.Arm()
	defer sink.Disarm()

	sink.Deliver(testScan(sampleAt(1, 1, 10), sampleAt(2, 2, 20)))

	if count, _ := store.Snapshot(); count != 2 {
		t.Errorf("expected 2 samples, got %d", count)
	}
	delivered, dropped := sink.Stats()
	if delivered != 1 || dropped != 0 {
		t.Errorf("expected 1 delivered / 0 dropped, got %d / %d", delivered, dropped)
	}
}

func TestSinkIgnoresEmptyScans(t *testing.T) {
	store := NewSampleStore()
	sink := NewIngestionSink(SinkConfig{Store: store})
	sink.Arm()

	sink.Deliver(nil)
	sink.Deliver(testScan())

	delivered, dropped := sink.Stats()
	if delivered != 0 || dropped != 0 {
		t.Errorf("empty scans should not count, got %d delivered / %d dropped", delivered, dropped)
	}
}

func TestSinkAppliesROIFilterToStoreOnly(t *testing.T) {
	store := NewSampleStore()
	heatmap := NewHeatmap(35, 0.5, 1.0)
	roi := ROI{{Enabled: true, Distance: 5, Radius: 0.5, Angle: 0}}
	sink := NewIngestionSink(SinkConfig{Store: store, Heatmap: heatmap, ROI: roi})
	sink.Arm()

	inside := Sample{X: 0, Y: 5, Intensity: 50}
	outside := Sample{X: 20, Y: 20, Intensity: 50}
	sink.Deliver(testScan(inside, outside))

	// Only the sample inside the sampling circle reaches the store.
	if count, _ := store.Snapshot(); count != 1 {
		t.Errorf("expected 1 sample in store, got %d", count)
	}

	// The heatmap sees the full scan regardless of the ROI.
	metrics := heatmap.Metrics()
	if metrics.ActiveCells != 2 {
		t.Errorf("expected 2 active heatmap cells, got %d", metrics.ActiveCells)
	}
}

func TestSinkDisarmStopsFurtherAppends(t *testing.T) {
	store := NewSampleStore()
	sink := NewIngestionSink(SinkConfig{Store: store})

	sink.Arm()
	sink.Deliver(testScan(sampleAt(1, 1, 10)))
	sink.Disarm()
	store.Reset()
	sink.Deliver(testScan(sampleAt(2, 2, 20)))

	if count, _ := store.Snapshot(); count != 0 {
		t.Errorf("delivery after disarm+reset appended %d samples", count)
	}
}
