package acoustics

import "math"

// PeriodParams bounds which pulse intervals count as periods
type PeriodParams struct {
	// From and To restrict the time range; equal values mean the whole sound
	From float64
	To   float64

	ShortestPeriod  float64
	LongestPeriod   float64
	MaxPeriodFactor float64
}

// DefaultPeriodParams returns 0.1 ms .. 20 ms periods with factor 1.3
func DefaultPeriodParams() PeriodParams {
	return PeriodParams{
		ShortestPeriod:  0.0001,
		LongestPeriod:   0.02,
		MaxPeriodFactor: 1.3,
	}
}

func (p PeriodParams) inRange(d float64) bool {
	return d > 0 && d >= p.ShortestPeriod && d <= p.LongestPeriod
}

// isPeriod reports whether times[i+1]-times[i] is a usable period: inside
// the range and not too different from neighbouring usable periods
func (p PeriodParams) isPeriod(times []float64, i int) bool {
	if i < 0 || i+1 >= len(times) {
		return false
	}
	d := times[i+1] - times[i]
	if !p.inRange(d) {
		return false
	}
	if p.MaxPeriodFactor < 1 {
		return true
	}
	if i > 0 {
		left := times[i] - times[i-1]
		if p.inRange(left) && exceedsFactor(d, left, p.MaxPeriodFactor) {
			return false
		}
	}
	if i+2 < len(times) {
		right := times[i+2] - times[i+1]
		if p.inRange(right) && exceedsFactor(d, right, p.MaxPeriodFactor) {
			return false
		}
	}
	return true
}

func exceedsFactor(a, b, factor float64) bool {
	return a/b > factor || b/a > factor
}

// MeanPeriod returns the mean of the usable periods, NaN if there are none
func MeanPeriod(pp *PointProcess, p PeriodParams) float64 {
	times := pp.window(p.From, p.To)
	var sum float64
	var n int
	for i := 0; i+1 < len(times); i++ {
		if p.isPeriod(times, i) {
			sum += times[i+1] - times[i]
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// JitterLocalAbsolute is the mean absolute difference between consecutive
// periods in seconds, NaN when undefined
func JitterLocalAbsolute(pp *PointProcess, p PeriodParams) float64 {
	times := pp.window(p.From, p.To)
	var sum float64
	var n int
	for i := 1; i+1 < len(times); i++ {
		p1 := times[i] - times[i-1]
		p2 := times[i+1] - times[i]
		if !p.inRange(p1) || !p.inRange(p2) {
			continue
		}
		if p.MaxPeriodFactor > 0 && exceedsFactor(p1, p2, p.MaxPeriodFactor) {
			continue
		}
		sum += math.Abs(p1 - p2)
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// JitterLocal is JitterLocalAbsolute divided by the mean period
func JitterLocal(pp *PointProcess, p PeriodParams) float64 {
	abs := JitterLocalAbsolute(pp, p)
	mean := MeanPeriod(pp, p)
	if math.IsNaN(abs) || math.IsNaN(mean) || mean == 0 {
		return math.NaN()
	}
	return abs / mean
}
