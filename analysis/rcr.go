package analysis

import (
	"errors"
	"math"

	"github.com/faanross/RCR-payload-jitter/config"
)

var (
	ErrMaskLengthMismatch = errors.New("mask must be the same length as the sample")
	ErrInvalidBucketSize  = errors.New("bucket size must be greater than zero")
	ErrInvalidBucketCount = errors.New("minimum bucket count must not be negative")
	ErrInvalidRange       = errors.New("range max must not be less than range min")
)

// Result holds the outcome of a coverage calculation for a single dataset.
// It is immutable once created and carries everything the report renderer
// needs: the score, both ranges, the bucket counts, and the classification
// mask alongside the sample it was computed from.
type Result struct {
	RCR                 float64
	OriginalRange       Range
	AdjustedRange       Range
	TotalBuckets        int
	FilledBuckets       int
	RemovedOutlierCount int
	NormalMask          []bool // true = classified normal, false = outlier
	Sample              []float64
}

// CalculateRCR computes the Range Coverage Ratio: the percentage of buckets
// across the outlier-adjusted value range that contain at least
// minBucketCount normal points. The bucket count is the range width divided
// by bucketSize rounded up, and the range is then partitioned into that many
// equal-width buckets. Buckets are left-closed/right-open with
// the last bucket right-closed, so the range maximum lands in the final
// bucket. A zero-width adjusted range yields zero buckets and an RCR of 0,
// which is a defined outcome rather than an error.
func CalculateRCR(sample []float64, normalMask []bool, validRange Range, bucketSize float64, minBucketCount int) (Result, error) {
	if len(sample) == 0 {
		return Result{}, ErrEmptySample
	}
	if len(normalMask) != len(sample) {
		return Result{}, ErrMaskLengthMismatch
	}
	if bucketSize <= 0 {
		return Result{}, ErrInvalidBucketSize
	}
	if minBucketCount < 0 {
		return Result{}, ErrInvalidBucketCount
	}
	if validRange.Max < validRange.Min {
		return Result{}, ErrInvalidRange
	}

	totalBuckets := int(math.Ceil(validRange.Width() / bucketSize))

	// the range is split into equal-width buckets, so when it is not an
	// exact multiple of bucketSize every bucket narrows slightly rather
	// than the final bucket alone absorbing the remainder
	bucketWidth := 0.0
	if totalBuckets > 0 {
		bucketWidth = validRange.Width() / float64(totalBuckets)
	}

	counts := make([]int, totalBuckets)
	removed := 0
	for i, value := range sample {
		if !normalMask[i] {
			removed++
			continue
		}

		if totalBuckets == 0 {
			continue
		}

		idx := int((value - validRange.Min) / bucketWidth)
		// the range maximum falls on the right edge of the final bucket
		if idx == totalBuckets && value == validRange.Max {
			idx = totalBuckets - 1
		}
		// points outside the range are not counted; this should not occur
		// when the range was derived from the normal points themselves
		if idx < 0 || idx >= totalBuckets {
			continue
		}
		counts[idx]++
	}

	filledBuckets := 0
	for _, count := range counts {
		if count >= minBucketCount {
			filledBuckets++
		}
	}

	rcr := 0.0
	if totalBuckets > 0 {
		rcr = 100 * float64(filledBuckets) / float64(totalBuckets)
	}

	return Result{
		RCR:                 rcr,
		OriginalRange:       fullRange(sample),
		AdjustedRange:       validRange,
		TotalBuckets:        totalBuckets,
		FilledBuckets:       filledBuckets,
		RemovedOutlierCount: removed,
		NormalMask:          normalMask,
		Sample:              sample,
	}, nil
}

// AnalyzeSample runs outlier classification followed by the coverage
// calculation using the configured parameter set
func AnalyzeSample(sample []float64, params config.AnalysisParams) (Result, error) {
	normalMask, validRange, err := IdentifyOutliers(
		sample,
		params.ZThreshold.Value,
		params.MinClusterSize.Int(),
		params.ClusterWidth.Value,
	)
	if err != nil {
		return Result{}, err
	}

	return CalculateRCR(sample, normalMask, validRange, params.BucketSize.Value, params.MinBucketCount.Int())
}
