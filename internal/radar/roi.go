package radar

import "math"

// SamplingCircle is a circular region of interest on the ground plane.
// Points inside any enabled circle are kept during collection; everything
// else is discarded before it reaches the store.
type SamplingCircle struct {
	Enabled bool    `json:"enabled"`
	// Distance is the range from the sensor to the circle centre (metres).
	Distance float64 `json:"distance"`
	// Radius of the circle (metres).
	Radius float64 `json:"radius"`
	// Angle positions the circle off boresight, in degrees. 0 is straight
	// ahead, negative is left, positive is right.
	Angle float64 `json:"angle"`
	Label string  `json:"label,omitempty"`
}

// Center returns the circle centre in sensor-relative coordinates.
func (c SamplingCircle) Center() (x, y float64) {
	rad := c.Angle * math.Pi / 180
	return c.Distance * math.Sin(rad), c.Distance * math.Cos(rad)
}

// Contains reports whether the sample's planar position falls inside the
// circle.
func (c SamplingCircle) Contains(s Sample) bool {
	cx, cy := c.Center()
	return planarDistance(s.X-cx, s.Y-cy) <= c.Radius
}

// ROI is an ordered set of sampling circles. A nil or empty ROI accepts
// every sample.
type ROI []SamplingCircle

// DefaultROI returns the stock three-circle layout: an enabled primary
// circle dead ahead plus two disabled side circles.
func DefaultROI() ROI {
	return ROI{
		{Enabled: true, Distance: 5, Radius: 0.5, Angle: 0, Label: "primary"},
		{Enabled: false, Distance: 15, Radius: 0.5, Angle: -60, Label: "left"},
		{Enabled: false, Distance: 25, Radius: 0.5, Angle: 60, Label: "right"},
	}
}

// Filter returns the samples that fall inside at least one enabled circle.
// With no enabled circles every sample passes.
func (r ROI) Filter(samples []Sample) []Sample {
	if len(r) == 0 {
		return samples
	}
	enabled := r[:0:0]
	for _, c := range r {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	if len(enabled) == 0 {
		return samples
	}

	var kept []Sample
	for _, s := range samples {
		for _, c := range enabled {
			if c.Contains(s) {
				kept = append(kept, s)
				break
			}
		}
	}
	return kept
}

func planarDistance(dx, dy float64) float64 {
	return math.Hypot(dx, dy)
}
