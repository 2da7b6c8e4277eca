package replay

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

func makeScans(n int) []*radar.Scan {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scans := make([]*radar.Scan, n)
	for i := range scans {
		scans[i] = &radar.Scan{
			SensorID:  "awr-0",
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
			Samples: []radar.Sample{
				{X: float64(i), Y: 5, Z: 0.1, Intensity: 10.5, Timestamp: base},
			},
		}
	}
	return scans
}

func recordLog(t *testing.T, scans []*radar.Scan) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "log")
	rec, err := NewRecorder(dir, "awr-0")
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	for _, scan := range scans {
		if err := rec.Record(scan); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return dir
}

func TestRecordAndReplayRoundTrip(t *testing.T) {
	scans := makeScans(3)
	dir := recordLog(t, scans)

	source, err := NewSource(dir)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer source.Close()

	header := source.Header()
	if header.SensorID != "awr-0" {
		t.Errorf("header sensor id = %q", header.SensorID)
	}
	if header.TotalScans != 3 {
		t.Errorf("header total scans = %d", header.TotalScans)
	}
	if header.StartNs != scans[0].Timestamp.UnixNano() || header.EndNs != scans[2].Timestamp.UnixNano() {
		t.Errorf("header time range = [%d, %d]", header.StartNs, header.EndNs)
	}

	if err := source.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}

	for i, want := range scans {
		got, err := source.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("scan %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	if _, err := source.Next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of log, got %v", err)
	}
}

func TestSourceRewindRestartsFromFirstScan(t *testing.T) {
	dir := recordLog(t, makeScans(2))

	source, err := NewSource(dir)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer source.Close()

	if err := source.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	first, err := source.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	// Drain, then rewind: the cursor must be back at the first scan.
	if _, err := source.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if err := source.Rewind(); err != nil {
		t.Fatalf("second Rewind failed: %v", err)
	}
	again, err := source.Next()
	if err != nil {
		t.Fatalf("Next after rewind failed: %v", err)
	}
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("rewind did not restart the log (-first +again):\n%s", diff)
	}
}

func TestSourceMissingLog(t *testing.T) {
	if _, err := NewSource(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error opening a missing log")
	}
}

func TestNextBeforeRewindFails(t *testing.T) {
	dir := recordLog(t, makeScans(1))

	source, err := NewSource(dir)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if _, err := source.Next(); err == nil {
		t.Error("Next before Rewind should fail")
	}
}

func TestRecorderRejectsWritesAfterClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	rec, err := NewRecorder(dir, "awr-0")
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := rec.Record(makeScans(1)[0]); err == nil {
		t.Error("Record after Close should fail")
	}
}
