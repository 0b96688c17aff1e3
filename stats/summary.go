package stats

import (
	"fmt"
	"math"
)

// AggregationMethod selects how a stat's buffered samples collapse into the
// single value a writer reports.
type AggregationMethod int

const (
	// Average reports the mean of the buffered samples.
	Average AggregationMethod = iota
	// MostRecent reports only the latest sample.
	MostRecent
	// Sum reports the total of the buffered samples.
	Sum
	// Histogram reports the mean but asks writers to keep the full
	// distribution.
	Histogram
)

func (a AggregationMethod) String() string {
	switch a {
	case Average:
		return "average"
	case MostRecent:
		return "most_recent"
	case Sum:
		return "sum"
	case Histogram:
		return "histogram"
	default:
		return fmt.Sprintf("aggregation(%d)", int(a))
	}
}

// PropertyType identifies run-level properties forwarded to writers outside
// the per-step stats flow.
type PropertyType int

const (
	// PropertyHyperparameters carries the flattened run configuration.
	PropertyHyperparameters PropertyType = iota
	// PropertySelfPlay marks self-play specific metadata.
	PropertySelfPlay
)

func (p PropertyType) String() string {
	switch p {
	case PropertyHyperparameters:
		return "hyperparameters"
	case PropertySelfPlay:
		return "self_play"
	default:
		return fmt.Sprintf("property(%d)", int(p))
	}
}

// StatsSummary is the distribution of one stat's samples between two
// summary boundaries.
type StatsSummary struct {
	FullDist    []float64
	Aggregation AggregationMethod
}

// EmptyStatsSummary returns a summary with no samples.
func EmptyStatsSummary() StatsSummary {
	return StatsSummary{Aggregation: Average}
}

// Num reports the number of buffered samples.
func (s StatsSummary) Num() int { return len(s.FullDist) }

// Sum reports the total of the buffered samples.
func (s StatsSummary) Sum() float64 {
	var sum float64
	for _, v := range s.FullDist {
		sum += v
	}
	return sum
}

// Mean reports the sample mean, 0 when empty.
func (s StatsSummary) Mean() float64 {
	if len(s.FullDist) == 0 {
		return 0
	}
	return s.Sum() / float64(len(s.FullDist))
}

// StdDev reports the population standard deviation, 0 when empty.
func (s StatsSummary) StdDev() float64 {
	if len(s.FullDist) == 0 {
		return 0
	}
	mean := s.Mean()
	var ss float64
	for _, v := range s.FullDist {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(s.FullDist)))
}

// Min reports the smallest sample, 0 when empty.
func (s StatsSummary) Min() float64 {
	if len(s.FullDist) == 0 {
		return 0
	}
	min := s.FullDist[0]
	for _, v := range s.FullDist[1:] {
		min = math.Min(min, v)
	}
	return min
}

// Max reports the largest sample, 0 when empty.
func (s StatsSummary) Max() float64 {
	if len(s.FullDist) == 0 {
		return 0
	}
	max := s.FullDist[0]
	for _, v := range s.FullDist[1:] {
		max = math.Max(max, v)
	}
	return max
}

// AggregatedValue collapses the distribution according to the aggregation
// method: the total for Sum, the latest sample for MostRecent, the mean
// otherwise. An empty summary reports 0.
func (s StatsSummary) AggregatedValue() float64 {
	if len(s.FullDist) == 0 {
		return 0
	}
	switch s.Aggregation {
	case Sum:
		return s.Sum()
	case MostRecent:
		return s.FullDist[len(s.FullDist)-1]
	default:
		return s.Mean()
	}
}
