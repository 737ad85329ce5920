package acoustics

import (
	"math"
	"sort"
)

// pulseCorrelationThreshold stops pulse tracking when consecutive periods
// no longer look alike
const pulseCorrelationThreshold = 0.3

// PointProcess is a sorted sequence of glottal pulse times in seconds
type PointProcess struct {
	Times []float64
}

// Len returns the number of pulses
func (pp *PointProcess) Len() int {
	return len(pp.Times)
}

// window returns the pulses inside [from, to]; from == to selects all
func (pp *PointProcess) window(from, to float64) []float64 {
	if from >= to {
		return pp.Times
	}
	lo := sort.SearchFloat64s(pp.Times, from)
	hi := sort.Search(len(pp.Times), func(i int) bool { return pp.Times[i] > to })
	return pp.Times[lo:hi]
}

// ToPointProcessPeriodicCC tracks pitch with params narrowed to floor and
// ceiling and then places one pulse per period inside every voiced stretch
func ToPointProcessPeriodicCC(s *Sound, params PitchParams, floor, ceiling float64) (*PointProcess, error) {
	params.Floor = floor
	params.Ceiling = ceiling

	pitch, err := ToPitch(s, params)
	if err != nil {
		return nil, err
	}
	return PitchToPointProcessCC(s, pitch), nil
}

// PitchToPointProcessCC locates pulses with a pitch contour as guide.
// Each voiced interval is seeded at the absolute extremum around its
// midpoint; from there the tracker steps one local period left and right,
// keeping the position that best cross-correlates with the previous cycle.
func PitchToPointProcessCC(s *Sound, pitch *Pitch) *PointProcess {
	var times []float64

	for _, iv := range pitch.VoicedIntervals() {
		mid := 0.5 * (iv.Start + iv.End)
		f0 := pitch.FrequencyAt(mid)
		if f0 <= 0 {
			continue
		}
		period := 1 / f0

		first, ok := s.absoluteMaximum(mid-0.5*period, mid+0.5*period)
		if !ok {
			continue
		}
		times = append(times, first)

		// leftwards
		t, p := first, period
		for {
			if f := pitch.FrequencyAt(t); f > 0 {
				p = 1 / f
			}
			next, corr, ok := s.findMaximumCorrelation(t, 0.5*p, t-1.2*p, t-0.8*p)
			if !ok || corr < pulseCorrelationThreshold || next < iv.Start {
				break
			}
			times = append(times, next)
			t = next
		}

		// rightwards
		t, p = first, period
		for {
			if f := pitch.FrequencyAt(t); f > 0 {
				p = 1 / f
			}
			next, corr, ok := s.findMaximumCorrelation(t, 0.5*p, t+0.8*p, t+1.2*p)
			if !ok || corr < pulseCorrelationThreshold || next > iv.End {
				break
			}
			times = append(times, next)
			t = next
		}
	}

	sort.Float64s(times)
	return &PointProcess{Times: times}
}

// findMaximumCorrelation compares the cycle around ref with cycles centred
// in [from, to] and returns the best match with sub-sample precision
func (s *Sound) findMaximumCorrelation(ref, halfWidth, from, to float64) (float64, float64, bool) {
	fs := s.SampleRate
	h := int(math.Round(halfWidth * fs))
	if h < 1 {
		h = 1
	}
	total := len(s.Samples)

	center := int(math.Round(ref * fs))
	if center-h < 0 || center+h >= total {
		return 0, 0, false
	}
	lo := int(math.Ceil(from * fs))
	hi := int(math.Floor(to * fs))
	if lo-h < 0 {
		lo = h
	}
	if hi+h >= total {
		hi = total - 1 - h
	}
	if lo > hi {
		return 0, 0, false
	}

	reference := s.Samples[center-h : center+h+1]
	corrs := make([]float64, hi-lo+1)
	best := 0
	for c := lo; c <= hi; c++ {
		corrs[c-lo] = normalizedCorrelation(reference, s.Samples[c-h:c+h+1])
		if corrs[c-lo] > corrs[best] {
			best = c - lo
		}
	}

	peak := corrs[best]
	offset := 0.0
	if best > 0 && best < len(corrs)-1 {
		offset, peak = parabolicPeak(corrs[best-1], corrs[best], corrs[best+1])
	}
	return (float64(lo+best) + offset) / fs, peak, true
}
