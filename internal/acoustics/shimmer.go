package acoustics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// pulseWindowFraction is the share of each neighbouring period covered by
// the amplitude window around a pulse
const pulseWindowFraction = 0.2

// PulseAmplitudes measures the Hann-windowed RMS around every pulse whose two
// neighbouring periods are usable. The window reaches a fifth of the previous
// period to the left and a fifth of the next period to the right.
func PulseAmplitudes(pp *PointProcess, s *Sound, p PeriodParams) ([]float64, []float64) {
	times := pp.window(p.From, p.To)
	var at, amps []float64
	for i := 1; i+1 < len(times); i++ {
		if !p.isPeriod(times, i-1) || !p.isPeriod(times, i) {
			continue
		}
		p1 := times[i] - times[i-1]
		p2 := times[i+1] - times[i]

		at = append(at, times[i])
		amps = append(amps, s.hannWindowedRMS(times[i], pulseWindowFraction*p1, pulseWindowFraction*p2))
	}
	return at, amps
}

// ShimmerLocal is the mean absolute difference between the pulse amplitudes
// of consecutive periods divided by the mean amplitude, NaN when undefined
func ShimmerLocal(pp *PointProcess, s *Sound, p PeriodParams, maxAmplitudeFactor float64) float64 {
	times, amps := PulseAmplitudes(pp, s, p)
	return shimmerLocal(times, amps, p, maxAmplitudeFactor)
}

func shimmerLocal(times, amps []float64, p PeriodParams, maxAmplitudeFactor float64) float64 {
	if len(amps) < 2 {
		return math.NaN()
	}

	var sum float64
	var n int
	for i := 1; i < len(amps); i++ {
		if !p.inRange(times[i] - times[i-1]) {
			continue
		}
		a1, a2 := amps[i-1], amps[i]
		if a1 <= 0 || a2 <= 0 {
			continue
		}
		if maxAmplitudeFactor > 0 && exceedsFactor(a1, a2, maxAmplitudeFactor) {
			continue
		}
		sum += math.Abs(a1 - a2)
		n++
	}
	if n == 0 {
		return math.NaN()
	}

	mean := stat.Mean(amps, nil)
	if mean == 0 {
		return math.NaN()
	}
	return sum / float64(n) / mean
}
