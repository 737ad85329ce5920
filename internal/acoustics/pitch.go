package acoustics

import (
	"fmt"
	"math"
	"sort"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/stat"
)

// PitchParams holds the autocorrelation pitch tracker settings
type PitchParams struct {
	// TimeStep between frames in seconds; 0 means 0.25 * PeriodsPerWindow / Floor
	TimeStep float64
	Floor    float64
	Ceiling  float64

	MaxCandidates    int
	PeriodsPerWindow float64

	SilenceThreshold   float64
	VoicingThreshold   float64
	OctaveCost         float64
	OctaveJumpCost     float64
	VoicedUnvoicedCost float64
}

// DefaultPitchParams returns the standard autocorrelation settings
func DefaultPitchParams() PitchParams {
	return PitchParams{
		TimeStep:           0,
		Floor:              75,
		Ceiling:            600,
		MaxCandidates:      15,
		PeriodsPerWindow:   3,
		SilenceThreshold:   0.03,
		VoicingThreshold:   0.45,
		OctaveCost:         0.01,
		OctaveJumpCost:     0.35,
		VoicedUnvoicedCost: 0.14,
	}
}

// Validate checks the parameter ranges
func (p PitchParams) Validate() error {
	if p.Floor <= 0 || p.Ceiling <= p.Floor {
		return fmt.Errorf("%w: pitch floor %.1f and ceiling %.1f", ErrInvalidParams, p.Floor, p.Ceiling)
	}
	if p.MaxCandidates < 2 {
		return fmt.Errorf("%w: need at least 2 pitch candidates", ErrInvalidParams)
	}
	if p.PeriodsPerWindow <= 0 {
		return fmt.Errorf("%w: periods per window must be positive", ErrInvalidParams)
	}
	return nil
}

// PitchCandidate is one hypothesis for a frame. Frequency 0 means unvoiced.
type PitchCandidate struct {
	Frequency float64
	Strength  float64
}

// PitchFrame is one analysis frame of a Pitch contour
type PitchFrame struct {
	Time       float64
	Intensity  float64
	Candidates []PitchCandidate

	// Selected by the path finder
	Frequency float64
	Strength  float64
}

// Voiced reports whether the path finder chose a voiced candidate
func (f PitchFrame) Voiced() bool {
	return f.Frequency > 0
}

// Pitch is a fundamental frequency contour
type Pitch struct {
	Frames   []PitchFrame
	TimeStep float64
	Floor    float64
	Ceiling  float64
	Duration float64
}

// Interval is a time range in seconds
type Interval struct {
	Start float64
	End   float64
}

// ToPitch tracks the fundamental frequency with the autocorrelation method
func ToPitch(s *Sound, p PitchParams) (*Pitch, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.TimeStep <= 0 {
		p.TimeStep = 0.25 * p.PeriodsPerWindow / p.Floor
	}

	fs := s.SampleRate
	windowDuration := p.PeriodsPerWindow / p.Floor
	size := int(math.Round(windowDuration * fs))
	minLag := int(math.Floor(fs / p.Ceiling))
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(math.Ceil(fs / p.Floor))
	if maxLag > size-2 {
		maxLag = size - 2
	}

	n, t1 := frameLayout(s.Duration(), windowDuration, p.TimeStep)
	if n < 1 || size > len(s.Samples) || minLag >= maxLag {
		return nil, fmt.Errorf("%w: %.3fs, need %.3fs", ErrSoundTooShort, s.Duration(), windowDuration)
	}

	hann := window.Hann(size)
	windowAC := autocorrelation(hann, maxLag+1)
	norm := windowAC[0]
	for i := range windowAC {
		windowAC[i] /= norm
	}

	globalPeak := s.Peak()
	pitch := &Pitch{
		Frames:   make([]PitchFrame, n),
		TimeStep: p.TimeStep,
		Floor:    p.Floor,
		Ceiling:  p.Ceiling,
		Duration: s.Duration(),
	}

	buf := make([]float64, size)
	for i := 0; i < n; i++ {
		t := t1 + float64(i)*p.TimeStep
		start := frameStart(t, size, fs, len(s.Samples))
		segment := s.Samples[start : start+size]
		mean := stat.Mean(segment, nil)

		var localPeak float64
		for j, v := range segment {
			d := v - mean
			if a := math.Abs(d); a > localPeak {
				localPeak = a
			}
			buf[j] = d * hann[j]
		}

		intensity := 0.0
		if globalPeak > 0 {
			intensity = math.Min(localPeak/globalPeak, 1)
		}
		pitch.Frames[i] = PitchFrame{
			Time:       t,
			Intensity:  intensity,
			Candidates: frameCandidates(buf, windowAC, intensity, minLag, maxLag, fs, p),
		}
	}

	findPath(pitch.Frames, p)
	return pitch, nil
}

// frameCandidates lists the unvoiced candidate plus the strongest
// autocorrelation peaks of one windowed frame
func frameCandidates(frame, windowAC []float64, intensity float64, minLag, maxLag int, fs float64, p PitchParams) []PitchCandidate {
	unvoiced := PitchCandidate{
		Frequency: 0,
		Strength:  p.VoicingThreshold + math.Max(0, 2-intensity/(p.SilenceThreshold/(1+p.VoicingThreshold))),
	}
	candidates := []PitchCandidate{unvoiced}
	if intensity == 0 {
		return candidates
	}

	ac := autocorrelation(frame, maxLag+1)
	if ac[0] <= 0 {
		return candidates
	}
	r := make([]float64, len(ac))
	for i := range ac {
		r[i] = ac[i] / ac[0] / windowAC[i]
	}

	var voiced []PitchCandidate
	for lag := minLag; lag <= maxLag; lag++ {
		if r[lag] <= 0.5*p.VoicingThreshold || r[lag] <= r[lag-1] || r[lag] < r[lag+1] {
			continue
		}
		offset, peak := parabolicPeak(r[lag-1], r[lag], r[lag+1])
		if peak > 1 {
			peak = 1 / peak
		}
		freq := fs / (float64(lag) + offset)
		if freq < p.Floor || freq > p.Ceiling {
			continue
		}
		voiced = append(voiced, PitchCandidate{
			Frequency: freq,
			Strength:  peak - p.OctaveCost*math.Log2(p.Floor/freq),
		})
	}

	sort.Slice(voiced, func(i, j int) bool {
		return voiced[i].Strength > voiced[j].Strength
	})
	if len(voiced) > p.MaxCandidates-1 {
		voiced = voiced[:p.MaxCandidates-1]
	}
	return append(candidates, voiced...)
}

// findPath selects one candidate per frame with a Viterbi search that
// rewards strength and penalises octave jumps and voicing changes
func findPath(frames []PitchFrame, p PitchParams) {
	if len(frames) == 0 {
		return
	}
	correction := 0.01 / p.TimeStep

	score := make([][]float64, len(frames))
	back := make([][]int, len(frames))
	for i, f := range frames {
		score[i] = make([]float64, len(f.Candidates))
		back[i] = make([]int, len(f.Candidates))
		for j, c := range f.Candidates {
			score[i][j] = c.Strength
			if i == 0 {
				continue
			}
			best, arg := math.Inf(-1), 0
			for k, prev := range frames[i-1].Candidates {
				v := score[i-1][k] - transitionCost(prev.Frequency, c.Frequency, p)*correction
				if v > best {
					best, arg = v, k
				}
			}
			score[i][j] += best
			back[i][j] = arg
		}
	}

	last := len(frames) - 1
	place := 0
	for j := range score[last] {
		if score[last][j] > score[last][place] {
			place = j
		}
	}
	for i := last; i >= 0; i-- {
		c := frames[i].Candidates[place]
		frames[i].Frequency = c.Frequency
		frames[i].Strength = c.Strength
		place = back[i][place]
	}
}

func transitionCost(f1, f2 float64, p PitchParams) float64 {
	switch {
	case f1 == 0 && f2 == 0:
		return 0
	case f1 == 0 || f2 == 0:
		return p.VoicedUnvoicedCost
	default:
		return p.OctaveJumpCost * math.Abs(math.Log2(f1/f2))
	}
}

// MeanVoiced returns the mean frequency of voiced frames, or 0 if none
func (p *Pitch) MeanVoiced() float64 {
	voiced := make([]float64, 0, len(p.Frames))
	for _, f := range p.Frames {
		if f.Voiced() {
			voiced = append(voiced, f.Frequency)
		}
	}
	if len(voiced) == 0 {
		return 0
	}
	return stat.Mean(voiced, nil)
}

// VoicedFraction returns the share of frames that are voiced
func (p *Pitch) VoicedFraction() float64 {
	if len(p.Frames) == 0 {
		return 0
	}
	var voiced int
	for _, f := range p.Frames {
		if f.Voiced() {
			voiced++
		}
	}
	return float64(voiced) / float64(len(p.Frames))
}

// FrequencyAt returns the contour value at t, interpolating between
// voiced neighbours. It returns 0 in unvoiced regions.
func (p *Pitch) FrequencyAt(t float64) float64 {
	if len(p.Frames) == 0 {
		return 0
	}
	t1 := p.Frames[0].Time
	pos := (t - t1) / p.TimeStep
	i := int(math.Round(pos))
	if i < 0 || i >= len(p.Frames) {
		return 0
	}
	f := p.Frames[i]
	if !f.Voiced() {
		return 0
	}

	j := i + 1
	if pos < float64(i) {
		j = i - 1
	}
	if j < 0 || j >= len(p.Frames) || !p.Frames[j].Voiced() {
		return f.Frequency
	}
	frac := math.Abs(pos - float64(i))
	return f.Frequency + frac*(p.Frames[j].Frequency-f.Frequency)
}

// VoicedIntervals returns the time ranges covered by runs of voiced frames
func (p *Pitch) VoicedIntervals() []Interval {
	var intervals []Interval
	half := 0.5 * p.TimeStep
	for i := 0; i < len(p.Frames); i++ {
		if !p.Frames[i].Voiced() {
			continue
		}
		j := i
		for j+1 < len(p.Frames) && p.Frames[j+1].Voiced() {
			j++
		}
		intervals = append(intervals, Interval{
			Start: math.Max(0, p.Frames[i].Time-half),
			End:   math.Min(p.Duration, p.Frames[j].Time+half),
		})
		i = j
	}
	return intervals
}
