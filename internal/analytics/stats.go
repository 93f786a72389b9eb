package analytics

import (
	"math"
	"sort"

	"github.com/samvalverde/PAAA/internal/table"
)

// NPSResult is the breakdown behind a Net Promoter Score.
type NPSResult struct {
	Detractors int
	Neutrals   int
	Promoters  int
	Score      float64
}

// Thresholds classify a score: <= Detractor is a detractor, >= Promoter a
// promoter, anything between neutral.
type Thresholds struct {
	Detractor float64
	Promoter  float64
}

// ElevenPoint is the standard 0-10 NPS classification.
var ElevenPoint = Thresholds{Detractor: 6, Promoter: 9}

// NPS scores values with th. Score is (promoters - detractors) * 100 / n and
// 0 for no values.
func NPS(values []float64, th Thresholds) NPSResult {
	var r NPSResult
	for _, v := range values {
		switch {
		case v <= th.Detractor:
			r.Detractors++
		case v >= th.Promoter:
			r.Promoters++
		default:
			r.Neutrals++
		}
	}
	if n := len(values); n > 0 {
		r.Score = float64(r.Promoters-r.Detractors) * 100 / float64(n)
	}
	return r
}

// ComputeNPS coerces a column to numbers, drops what does not coerce and
// returns the 0-10 NPS.
func ComputeNPS(values []any) float64 {
	nums, _ := Numbers(values)
	return NPS(nums, ElevenPoint).Score
}

// Numbers returns the values that coerce to finite floats and how many were
// dropped (nulls included).
func Numbers(values []any) ([]float64, int) {
	out := make([]float64, 0, len(values))
	dropped := 0
	for _, v := range values {
		if b, ok := v.(bool); ok {
			if b {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
			continue
		}
		f, ok := table.AsFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			dropped++
			continue
		}
		out = append(out, f)
	}
	return out, dropped
}

// Summary describes a numeric sample. StdDev is the sample standard
// deviation, 0 for fewer than two values.
type Summary struct {
	N      int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	Q1     float64
	Q3     float64
}

// Describe summarizes values. The zero Summary is returned for no values.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)

	var sum float64
	for _, v := range s {
		sum += v
	}
	mean := sum / float64(len(s))
	var sd float64
	if len(s) > 1 {
		var ss float64
		for _, v := range s {
			ss += (v - mean) * (v - mean)
		}
		sd = math.Sqrt(ss / float64(len(s)-1))
	}
	return Summary{
		N:      len(s),
		Mean:   mean,
		Median: quantile(s, 0.5),
		StdDev: sd,
		Min:    s[0],
		Max:    s[len(s)-1],
		Q1:     quantile(s, 0.25),
		Q3:     quantile(s, 0.75),
	}
}

// Quantile returns the q-th quantile of values by linear interpolation
// between closest ranks.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	return quantile(s, q)
}

// quantile expects sorted input.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// round1 rounds to one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
