// Package radar implements the core of the AWR point-cloud analyzer: the
// shared sample store, the ingestion sink fed by live or replayed scans,
// capture-replay playback sessions, and the collection lifecycle controller
// that ties them together.
package radar

import "time"

// Sample is one point observation from a radar scan. Samples are immutable
// once created; the store only ever copies them.
type Sample struct {
	// Position in sensor-relative coordinates (metres). X is lateral,
	// Y is range along boresight, Z is height.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	// Intensity is the return strength reported by the sensor (SNR-like,
	// sensor units).
	Intensity float64 `json:"intensity"`

	// Timestamp is the capture time of the sample.
	Timestamp time.Time `json:"timestamp"`
}

// Range returns the planar distance of the sample from the sensor origin.
func (s Sample) Range() float64 {
	return planarDistance(s.X, s.Y)
}

// Scan is one delivered unit of sensor point-cloud data, decomposed into
// zero or more samples. Scans arrive either from the live feed or from a
// playback session; the ingestion sink does not distinguish the two.
type Scan struct {
	SensorID  string    `json:"sensor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Samples   []Sample  `json:"samples"`
}
