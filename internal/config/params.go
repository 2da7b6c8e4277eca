// Package config loads analysis parameters from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

// Params represents the analyzer's tunable parameters. Pointer fields
// distinguish "not set" from an explicit zero, so partial config files are
// safe: the Get* methods supply defaults for omitted fields.
type Params struct {
	// Scene geometry
	MaxRange          *float64 `json:"max_range,omitempty"`
	HeatmapResolution *float64 `json:"heatmap_resolution,omitempty"`
	HeatmapDecay      *float64 `json:"heatmap_decay,omitempty"`

	// Analysis params
	BandInterval   *float64 `json:"band_interval,omitempty"`
	TargetDistance *float64 `json:"target_distance,omitempty"`

	// Collection params
	CollectionDuration *string `json:"collection_duration,omitempty"` // duration string like "60s"
	ProgressInterval   *string `json:"progress_interval,omitempty"`   // duration string like "250ms"

	// Sampling regions; nil means the built-in defaults.
	SamplingCircles []radar.SamplingCircle `json:"sampling_circles,omitempty"`
}

// EmptyParams returns a Params with all fields unset.
func EmptyParams() *Params {
	return &Params{}
}

// LoadParams loads Params from a JSON file. The file must have a .json
// extension and be under 1MB.
func LoadParams(path string) (*Params, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyParams()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *Params) Validate() error {
	if c.MaxRange != nil && *c.MaxRange <= 0 {
		return fmt.Errorf("max_range must be positive, got %f", *c.MaxRange)
	}
	if c.HeatmapResolution != nil && *c.HeatmapResolution <= 0 {
		return fmt.Errorf("heatmap_resolution must be positive, got %f", *c.HeatmapResolution)
	}
	if c.HeatmapDecay != nil && (*c.HeatmapDecay <= 0 || *c.HeatmapDecay > 1) {
		return fmt.Errorf("heatmap_decay must be in (0, 1], got %f", *c.HeatmapDecay)
	}
	if c.BandInterval != nil && *c.BandInterval <= 0 {
		return fmt.Errorf("band_interval must be positive, got %f", *c.BandInterval)
	}
	if c.CollectionDuration != nil && *c.CollectionDuration != "" {
		if _, err := time.ParseDuration(*c.CollectionDuration); err != nil {
			return fmt.Errorf("invalid collection_duration '%s': %w", *c.CollectionDuration, err)
		}
	}
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		if _, err := time.ParseDuration(*c.ProgressInterval); err != nil {
			return fmt.Errorf("invalid progress_interval '%s': %w", *c.ProgressInterval, err)
		}
	}
	for i, circle := range c.SamplingCircles {
		if circle.Radius <= 0 {
			return fmt.Errorf("sampling_circles[%d]: radius must be positive, got %f", i, circle.Radius)
		}
	}
	return nil
}

// GetMaxRange returns the scene's maximum planar range in metres.
func (c *Params) GetMaxRange() float64 {
	if c.MaxRange != nil {
		return *c.MaxRange
	}
	return 35.0
}

// GetHeatmapResolution returns the heatmap cell size in metres.
func (c *Params) GetHeatmapResolution() float64 {
	if c.HeatmapResolution != nil {
		return *c.HeatmapResolution
	}
	return 0.5
}

// GetHeatmapDecay returns the per-scan heatmap decay factor.
func (c *Params) GetHeatmapDecay() float64 {
	if c.HeatmapDecay != nil {
		return *c.HeatmapDecay
	}
	return 0.98
}

// GetBandInterval returns the distance-band width in metres.
func (c *Params) GetBandInterval() float64 {
	if c.BandInterval != nil {
		return *c.BandInterval
	}
	return 10.0
}

// GetTargetDistance returns the default expected target range in metres.
func (c *Params) GetTargetDistance() float64 {
	if c.TargetDistance != nil {
		return *c.TargetDistance
	}
	return 5.0
}

// GetCollectionDuration returns the default bound on a collection run.
func (c *Params) GetCollectionDuration() time.Duration {
	if c.CollectionDuration != nil && *c.CollectionDuration != "" {
		if d, err := time.ParseDuration(*c.CollectionDuration); err == nil {
			return d
		}
	}
	return 60 * time.Second
}

// GetProgressInterval returns the progress polling interval.
func (c *Params) GetProgressInterval() time.Duration {
	if c.ProgressInterval != nil && *c.ProgressInterval != "" {
		if d, err := time.ParseDuration(*c.ProgressInterval); err == nil {
			return d
		}
	}
	return 250 * time.Millisecond
}

// GetSamplingCircles returns the configured sampling regions, or the
// built-in defaults when none are configured.
func (c *Params) GetSamplingCircles() radar.ROI {
	if len(c.SamplingCircles) > 0 {
		return radar.ROI(c.SamplingCircles)
	}
	return radar.DefaultROI()
}
