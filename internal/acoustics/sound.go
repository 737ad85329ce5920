package acoustics

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySound is returned when a sound has no samples
	ErrEmptySound = errors.New("sound has no samples")

	// ErrSoundTooShort is returned when a sound is shorter than one analysis window
	ErrSoundTooShort = errors.New("sound is too short for analysis")

	// ErrInvalidParams is returned for parameters outside their valid range
	ErrInvalidParams = errors.New("invalid analysis parameters")
)

// Sound is a mono signal. Sample i sits at time i/SampleRate.
type Sound struct {
	Samples    []float64
	SampleRate float64
}

// NewSound creates a new Sound
func NewSound(samples []float64, sampleRate float64) *Sound {
	return &Sound{
		Samples:    samples,
		SampleRate: sampleRate,
	}
}

// Duration returns the length of the sound in seconds
func (s *Sound) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / s.SampleRate
}

// Peak returns the largest absolute sample value
func (s *Sound) Peak() float64 {
	var peak float64
	for _, v := range s.Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// validate checks that the sound can be analysed at all
func (s *Sound) validate() error {
	if s == nil || len(s.Samples) == 0 {
		return ErrEmptySound
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidParams)
	}
	return nil
}

// index converts a time to the nearest sample index, clamped to the signal
func (s *Sound) index(t float64) int {
	i := int(math.Round(t * s.SampleRate))
	if i < 0 {
		return 0
	}
	if i >= len(s.Samples) {
		return len(s.Samples) - 1
	}
	return i
}

// hannWindowedRMS is the RMS of the samples in [t-left, t+right], weighted by
// a Hann window whose halves span left and right
func (s *Sound) hannWindowedRMS(t, left, right float64) float64 {
	var sum, weight float64
	for j := s.index(t - left); j <= s.index(t+right); j++ {
		u := float64(j)/s.SampleRate - t
		side := right
		if u < 0 {
			side = left
		}
		if side <= 0 || math.Abs(u) > side {
			continue
		}
		w := 0.5 + 0.5*math.Cos(math.Pi*u/side)
		sum += w * s.Samples[j] * s.Samples[j]
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return math.Sqrt(sum / weight)
}

// absoluteMaximum returns the time of the largest |x| between t0 and t1
func (s *Sound) absoluteMaximum(t0, t1 float64) (float64, bool) {
	from := int(math.Ceil(t0 * s.SampleRate))
	to := int(math.Floor(t1 * s.SampleRate))
	if from < 0 {
		from = 0
	}
	if to >= len(s.Samples) {
		to = len(s.Samples) - 1
	}
	if from > to {
		return 0, false
	}

	best, bestIdx := -1.0, -1
	for i := from; i <= to; i++ {
		if a := math.Abs(s.Samples[i]); a > best {
			best, bestIdx = a, i
		}
	}
	if best <= 0 {
		return 0, false
	}
	return float64(bestIdx) / s.SampleRate, true
}

// MixToMono averages interleaved multi-channel samples into one channel
func MixToMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
