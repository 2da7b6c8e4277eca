package radar

import (
	"math"
	"testing"
)

func TestSamplingCircleCenter(t *testing.T) {
	tests := []struct {
		name   string
		circle SamplingCircle
		wantX  float64
		wantY  float64
	}{
		{"dead ahead", SamplingCircle{Distance: 5, Angle: 0}, 0, 5},
		{"left 90", SamplingCircle{Distance: 10, Angle: -90}, -10, 0},
		{"right 90", SamplingCircle{Distance: 10, Angle: 90}, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.circle.Center()
			if math.Abs(x-tt.wantX) > 1e-9 || math.Abs(y-tt.wantY) > 1e-9 {
				t.Errorf("Center() = (%f, %f), want (%f, %f)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestROIFilterKeepsOnlyEnabledCircleHits(t *testing.T) {
	roi := ROI{
		{Enabled: true, Distance: 5, Radius: 0.5, Angle: 0},
		{Enabled: false, Distance: 15, Radius: 0.5, Angle: -60},
	}

	inPrimary := Sample{X: 0.1, Y: 5.1}
	inDisabled := Sample{X: -15 * math.Sin(60*math.Pi/180), Y: 15 * math.Cos(60*math.Pi/180)}
	outside := Sample{X: 20, Y: 20}

	kept := roi.Filter([]Sample{inPrimary, inDisabled, outside})
	if len(kept) != 1 {
		t.Fatalf("expected 1 kept sample, got %d", len(kept))
	}
	if kept[0] != inPrimary {
		t.Errorf("wrong sample kept: %+v", kept[0])
	}
}

func TestROIFilterPassthrough(t *testing.T) {
	samples := []Sample{{X: 1, Y: 1}, {X: 2, Y: 2}}

	if got := ROI(nil).Filter(samples); len(got) != 2 {
		t.Errorf("nil ROI filtered samples: got %d", len(got))
	}

	allDisabled := ROI{{Enabled: false, Distance: 5, Radius: 0.5}}
	if got := allDisabled.Filter(samples); len(got) != 2 {
		t.Errorf("ROI with no enabled circles filtered samples: got %d", len(got))
	}
}

func TestDefaultROI(t *testing.T) {
	roi := DefaultROI()
	if len(roi) != 3 {
		t.Fatalf("expected 3 circles, got %d", len(roi))
	}
	if !roi[0].Enabled || roi[1].Enabled || roi[2].Enabled {
		t.Errorf("expected only the primary circle enabled: %+v", roi)
	}
}
