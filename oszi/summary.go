package oszi

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds statistics of a waveform sample set
type Summary struct {
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	PeakToPeak float64 `json:"peak_to_peak"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
	RMS        float64 `json:"rms"`
}

// Summarize computes the statistics of samples. The standard deviation
// is the sample standard deviation, 0 for less than two samples.
func Summarize(samples []float32) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	x := make([]float64, len(samples))
	for i, v := range samples {
		x[i] = float64(v)
	}

	sum := Summary{
		Count: len(x),
		Min:   floats.Min(x),
		Max:   floats.Max(x),
	}
	sum.PeakToPeak = sum.Max - sum.Min
	if len(x) > 1 {
		sum.Mean, sum.StdDev = stat.MeanStdDev(x, nil)
	} else {
		sum.Mean = x[0]
	}
	sum.RMS = math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	return sum
}
