package radar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DistanceBand summarises the samples whose planar range falls in
// [Low, High).
type DistanceBand struct {
	Low           float64 `json:"low"`
	High          float64 `json:"high"`
	Count         int     `json:"count"`
	MeanIntensity float64 `json:"mean_intensity"`
}

// Label renders the band for logs and API responses, e.g. "0-10m".
func (b DistanceBand) Label() string {
	return fmt.Sprintf("%g-%gm", b.Low, b.High)
}

// AnalysisResult is the summary computed over a completed collection run.
type AnalysisResult struct {
	TotalPoints   int            `json:"total_points"`
	MeanIntensity float64        `json:"mean_intensity"`
	MeanRange     float64        `json:"mean_range"`
	Bands         []DistanceBand `json:"bands"`
}

// AnalyzeSamples computes summary statistics over the run's samples,
// bucketing by planar range at bandInterval metres up to maxRange. Empty
// input yields a zero result with no bands.
func AnalyzeSamples(samples []Sample, bandInterval, maxRange float64) AnalysisResult {
	if len(samples) == 0 {
		return AnalysisResult{}
	}
	if bandInterval <= 0 {
		bandInterval = 10
	}
	if maxRange <= 0 {
		maxRange = 35
	}

	intensities := make([]float64, len(samples))
	ranges := make([]float64, len(samples))
	for i, s := range samples {
		intensities[i] = s.Intensity
		ranges[i] = s.Range()
	}

	nBands := int(math.Ceil(maxRange / bandInterval))
	sums := make([]float64, nBands)
	counts := make([]int, nBands)
	for i, r := range ranges {
		idx := int(r / bandInterval)
		if idx < 0 {
			continue
		}
		if idx >= nBands {
			idx = nBands - 1
		}
		sums[idx] += intensities[i]
		counts[idx]++
	}

	bands := make([]DistanceBand, 0, nBands)
	for i := 0; i < nBands; i++ {
		b := DistanceBand{
			Low:   float64(i) * bandInterval,
			High:  float64(i+1) * bandInterval,
			Count: counts[i],
		}
		if counts[i] > 0 {
			b.MeanIntensity = sums[i] / float64(counts[i])
		}
		bands = append(bands, b)
	}

	return AnalysisResult{
		TotalPoints:   len(samples),
		MeanIntensity: stat.Mean(intensities, nil),
		MeanRange:     stat.Mean(ranges, nil),
		Bands:         bands,
	}
}
