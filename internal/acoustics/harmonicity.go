package acoustics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Unvoiced marks a harmonicity frame without a periodic component
const Unvoiced = -200.0

// maxHarmonicity clamps frames whose correlation rounds to 0 or 1
const maxHarmonicity = 150.0

// HarmonicityParams holds the cross-correlation harmonicity settings
type HarmonicityParams struct {
	TimeStep         float64
	Floor            float64
	SilenceThreshold float64
	PeriodsPerWindow float64
}

// DefaultHarmonicityParams returns 10 ms steps, 75 Hz floor, 0.1 silence
// threshold and one period per window
func DefaultHarmonicityParams() HarmonicityParams {
	return HarmonicityParams{
		TimeStep:         0.01,
		Floor:            75,
		SilenceThreshold: 0.1,
		PeriodsPerWindow: 1.0,
	}
}

// Validate checks the parameter ranges
func (p HarmonicityParams) Validate() error {
	if p.TimeStep <= 0 {
		return fmt.Errorf("%w: harmonicity time step must be positive", ErrInvalidParams)
	}
	if p.Floor <= 0 {
		return fmt.Errorf("%w: harmonicity floor must be positive", ErrInvalidParams)
	}
	if p.PeriodsPerWindow <= 0 {
		return fmt.Errorf("%w: periods per window must be positive", ErrInvalidParams)
	}
	return nil
}

// Harmonicity is a harmonics-to-noise ratio contour in dB
type Harmonicity struct {
	Times    []float64
	Values   []float64
	TimeStep float64
}

// Mean averages the frames that are not Unvoiced, NaN if every frame is
func (h *Harmonicity) Mean() float64 {
	voiced := make([]float64, 0, len(h.Values))
	for _, v := range h.Values {
		if v != Unvoiced {
			voiced = append(voiced, v)
		}
	}
	if len(voiced) == 0 {
		return math.NaN()
	}
	return stat.Mean(voiced, nil)
}

// ToHarmonicityCC measures, per frame, the strongest normalized
// cross-correlation between the window and its lagged copy and converts
// it to 10*log10(r/(1-r))
func ToHarmonicityCC(s *Sound, p HarmonicityParams) (*Harmonicity, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	fs := s.SampleRate
	size := int(math.Round(p.PeriodsPerWindow / p.Floor * fs))
	minLag := 2
	maxLag := int(math.Ceil(fs / p.Floor))
	span := size + maxLag
	if size < 2 || span > len(s.Samples) {
		return nil, fmt.Errorf("%w: %.3fs, need %.3fs", ErrSoundTooShort, s.Duration(), float64(span)/fs)
	}

	n, t1 := frameLayout(s.Duration(), float64(span)/fs, p.TimeStep)
	if n < 1 {
		return nil, fmt.Errorf("%w: %.3fs, need %.3fs", ErrSoundTooShort, s.Duration(), float64(span)/fs)
	}

	globalPeak := s.Peak()
	h := &Harmonicity{
		Times:    make([]float64, n),
		Values:   make([]float64, n),
		TimeStep: p.TimeStep,
	}

	buf := make([]float64, span)
	prefix := make([]float64, span+1)
	for i := 0; i < n; i++ {
		t := t1 + float64(i)*p.TimeStep
		h.Times[i] = t
		h.Values[i] = Unvoiced

		start := frameStart(t, span, fs, len(s.Samples))
		segment := s.Samples[start : start+span]
		mean := stat.Mean(segment[:size], nil)

		var localPeak float64
		for j, v := range segment {
			buf[j] = v - mean
			prefix[j+1] = prefix[j] + buf[j]*buf[j]
			if a := math.Abs(buf[j]); j < size && a > localPeak {
				localPeak = a
			}
		}
		if globalPeak == 0 || localPeak < p.SilenceThreshold*globalPeak {
			continue
		}

		r, ok := bestLagCorrelation(buf, prefix, size, minLag, maxLag)
		if !ok {
			continue
		}
		h.Values[i] = toDecibels(r)
	}

	return h, nil
}

// bestLagCorrelation returns the highest local maximum of the normalized
// cross-correlation between buf[:size] and buf[lag:lag+size]
func bestLagCorrelation(buf, prefix []float64, size, minLag, maxLag int) (float64, bool) {
	energy := prefix[size]
	if energy <= 0 {
		return 0, false
	}

	cc := crossCorrelation(buf[:size], buf, maxLag)
	r := make([]float64, maxLag+1)
	for lag := range r {
		lagged := prefix[lag+size] - prefix[lag]
		if lagged > 0 {
			r[lag] = cc[lag] / math.Sqrt(energy*lagged)
		}
	}

	best, found := 0.0, false
	for lag := minLag; lag < maxLag; lag++ {
		if r[lag] <= 0 || r[lag] <= r[lag-1] || r[lag] < r[lag+1] {
			continue
		}
		_, peak := parabolicPeak(r[lag-1], r[lag], r[lag+1])
		if peak > best {
			best, found = peak, true
		}
	}
	return best, found
}

func toDecibels(r float64) float64 {
	if r >= 1 {
		return maxHarmonicity
	}
	if r <= 0 {
		return -maxHarmonicity
	}
	db := 10 * math.Log10(r/(1-r))
	return math.Max(-maxHarmonicity, math.Min(maxHarmonicity, db))
}
