package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

var (
	ErrEmptySample          = errors.New("sample must not be empty")
	ErrNegativeThreshold    = errors.New("z-score threshold must not be negative")
	ErrInvalidClusterSize   = errors.New("minimum cluster size must be at least 1")
	ErrNegativeClusterWidth = errors.New("cluster width must not be negative")
)

// Range spans the minimum and maximum of the values classified as normal
type Range struct {
	Min float64
	Max float64
}

// Width returns the span covered by the range
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// IdentifyOutliers classifies each point in the sample as normal or outlier
// using a hybrid approach: a point whose absolute z-score meets the threshold
// becomes an outlier candidate, but candidates that recur densely within a
// narrow band of values are rescued as legitimate traffic rather than noise.
//
// The returned mask is true at every index classified as normal and has the
// same length as the sample. The returned range spans the normal points,
// falling back to the full sample range if no point remains normal.
func IdentifyOutliers(sample []float64, zThreshold float64, minClusterSize int, clusterWidth float64) ([]bool, Range, error) {
	if len(sample) == 0 {
		return nil, Range{}, ErrEmptySample
	}
	if zThreshold < 0 {
		return nil, Range{}, ErrNegativeThreshold
	}
	if minClusterSize < 1 {
		return nil, Range{}, ErrInvalidClusterSize
	}
	if clusterWidth < 0 {
		return nil, Range{}, ErrNegativeClusterWidth
	}

	mean, err := stats.Mean(sample)
	if err != nil {
		return nil, Range{}, err
	}

	// population standard deviation (divide by N), matching the reference
	// statistic, for reproducible scores
	stdDev, err := stats.StandardDeviationPopulation(sample)
	if err != nil {
		return nil, Range{}, err
	}

	// a zero-variance sample defines every z-score as exactly 0, so no point
	// is flagged as a candidate
	normal := make([]bool, len(sample))
	var candidates []float64
	for i, value := range sample {
		z := 0.0
		if stdDev > 0 {
			z = math.Abs(value-mean) / stdDev
		}
		if z >= zThreshold {
			candidates = append(candidates, value)
		} else {
			normal[i] = true
		}
	}

	if len(candidates) > 0 {
		sort.Float64s(candidates)

		// sweep left to right over the sorted candidates: each window spans
		// the candidates within clusterWidth (inclusive) of the cursor value,
		// and a window holding at least minClusterSize values is rescued
		// whole. A failed window advances the cursor by a single candidate.
		rescued := make(map[float64]struct{})
		i := 0
		for i < len(candidates) {
			j := i
			for j < len(candidates) && candidates[j] <= candidates[i]+clusterWidth {
				j++
			}
			if j-i >= minClusterSize {
				for _, value := range candidates[i:j] {
					rescued[value] = struct{}{}
				}
				i = j
			} else {
				i++
			}
		}

		// rescue is value based rather than index based: every occurrence of
		// a rescued value in the sample is reclassified as normal, so two
		// points sharing a value are always classified identically
		for i, value := range sample {
			if _, ok := rescued[value]; ok {
				normal[i] = true
			}
		}
	}

	validRange, ok := rangeOver(sample, normal)
	if !ok {
		// nothing survived classification; fall back to the full sample range
		validRange = fullRange(sample)
	}

	return normal, validRange, nil
}

// rangeOver returns the (min, max) over the masked points, reporting false if
// the mask selects no points
func rangeOver(sample []float64, mask []bool) (Range, bool) {
	r := Range{}
	found := false
	for i, value := range sample {
		if !mask[i] {
			continue
		}
		if !found || value < r.Min {
			r.Min = value
		}
		if !found || value > r.Max {
			r.Max = value
		}
		found = true
	}
	return r, found
}

// fullRange returns the (min, max) over the entire sample
func fullRange(sample []float64) Range {
	r := Range{Min: sample[0], Max: sample[0]}
	for _, value := range sample[1:] {
		r.Min = math.Min(r.Min, value)
		r.Max = math.Max(r.Max, value)
	}
	return r
}
