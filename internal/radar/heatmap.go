package radar

import (
	"math"
	"sync"
)

// Heatmap accumulates sample intensity on a fixed grid covering the sensor's
// forward field of view: x in [-maxRange, maxRange], y in [0, maxRange].
// When a decay factor below 1.0 is configured, the grid fades between scans
// so the display tracks the live scene rather than the whole history.
//
// The grid has its own mutex and bounded operations; it is safe to update
// from the delivery context while the HTTP layer reads metrics.
type Heatmap struct {
	mu         sync.Mutex
	resolution float64
	maxRange   float64
	cols, rows int
	cells      []float64
	decay      float64
}

// HeatmapMetrics summarizes the current grid for the monitoring surface.
type HeatmapMetrics struct {
	MaxIntensity    float64 `json:"max_intensity"`
	MeanIntensity   float64 `json:"mean_intensity"`
	SNRdB           float64 `json:"snr_db"`
	ActiveCells     int     `json:"active_cells"`
	TotalCells      int     `json:"total_cells"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// NewHeatmap creates a grid for the given range and cell resolution.
// decay of 1.0 disables fading; the live view typically uses 0.98.
func NewHeatmap(maxRange, resolution, decay float64) *Heatmap {
	if resolution <= 0 {
		resolution = 0.5
	}
	if maxRange <= 0 {
		maxRange = 35
	}
	if decay <= 0 || decay > 1 {
		decay = 1
	}
	cols := int(math.Ceil(2 * maxRange / resolution))
	rows := int(math.Ceil(maxRange / resolution))
	return &Heatmap{
		resolution: resolution,
		maxRange:   maxRange,
		cols:       cols,
		rows:       rows,
		cells:      make([]float64, cols*rows),
		decay:      decay,
	}
}

// AddScan fades the grid by the decay factor and folds in one scan's
// samples. Samples outside the grid are ignored.
func (h *Heatmap) AddScan(samples []Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.decay < 1 {
		for i := range h.cells {
			h.cells[i] *= h.decay
		}
	}
	for _, s := range samples {
		col := int((s.X + h.maxRange) / h.resolution)
		row := int(s.Y / h.resolution)
		if col < 0 || col >= h.cols || row < 0 || row >= h.rows {
			continue
		}
		h.cells[row*h.cols+col] += s.Intensity
	}
}

// Reset zeroes the grid. Called on every hard reset of the sample store.
func (h *Heatmap) Reset() {
	h.mu.Lock()
	for i := range h.cells {
		h.cells[i] = 0
	}
	h.mu.Unlock()
}

// Metrics computes summary statistics over the grid. Mean and SNR are taken
// over active (non-zero) cells so empty sky does not dilute them.
func (h *Heatmap) Metrics() HeatmapMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := HeatmapMetrics{TotalCells: len(h.cells)}
	var sum float64
	for _, v := range h.cells {
		if v <= 0 {
			continue
		}
		m.ActiveCells++
		sum += v
		if v > m.MaxIntensity {
			m.MaxIntensity = v
		}
	}
	if m.ActiveCells > 0 {
		m.MeanIntensity = sum / float64(m.ActiveCells)
		m.CoveragePercent = 100 * float64(m.ActiveCells) / float64(m.TotalCells)
	}
	if m.MaxIntensity > 0 && m.MeanIntensity > 0 {
		m.SNRdB = 10 * math.Log10(m.MaxIntensity/m.MeanIntensity)
	}
	return m
}
