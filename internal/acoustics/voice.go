package acoustics

import (
	"context"
	"fmt"
)

// VoiceParams groups the settings of every analysis step
type VoiceParams struct {
	Pitch              PitchParams
	PulseFloor         float64
	PulseCeiling       float64
	Periods            PeriodParams
	MaxAmplitudeFactor float64
	Harmonicity        HarmonicityParams
}

// DefaultVoiceParams returns the standard voice report settings
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{
		Pitch:              DefaultPitchParams(),
		PulseFloor:         75,
		PulseCeiling:       500,
		Periods:            DefaultPeriodParams(),
		MaxAmplitudeFactor: 1.6,
		Harmonicity:        DefaultHarmonicityParams(),
	}
}

// VoiceReport holds the measurements of one recording. Jitter, shimmer
// and HNR are NaN when the recording has too few periods to define them.
type VoiceReport struct {
	AveragePitch float64
	JitterLocal  float64
	ShimmerLocal float64
	HNR          float64

	Duration       float64
	VoicedFraction float64
	PulseCount     int
}

// AnalyzeVoice runs pitch, pulse, jitter, shimmer and harmonicity analysis
func AnalyzeVoice(ctx context.Context, s *Sound, p VoiceParams) (*VoiceReport, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	pitch, err := ToPitch(s, p.Pitch)
	if err != nil {
		return nil, fmt.Errorf("failed to compute pitch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pulses, err := ToPointProcessPeriodicCC(s, p.Pitch, p.PulseFloor, p.PulseCeiling)
	if err != nil {
		return nil, fmt.Errorf("failed to compute point process: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jitter := JitterLocal(pulses, p.Periods)
	shimmer := ShimmerLocal(pulses, s, p.Periods, p.MaxAmplitudeFactor)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	harmonicity, err := ToHarmonicityCC(s, p.Harmonicity)
	if err != nil {
		return nil, fmt.Errorf("failed to compute harmonicity: %w", err)
	}

	return &VoiceReport{
		AveragePitch:   pitch.MeanVoiced(),
		JitterLocal:    jitter,
		ShimmerLocal:   shimmer,
		HNR:            harmonicity.Mean(),
		Duration:       s.Duration(),
		VoicedFraction: pitch.VoicedFraction(),
		PulseCount:     pulses.Len(),
	}, nil
}
