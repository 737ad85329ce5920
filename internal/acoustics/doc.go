// Package acoustics measures voice quality from a mono recording.
//
// The measurements follow the usual phonetics toolchain:
//   - Pitch: short-term autocorrelation with candidate tracking
//   - PointProcess: glottal pulse times located by waveform cross-correlation
//   - Jitter and shimmer (local) computed from the pulses
//   - Harmonicity: harmonics-to-noise ratio from cross-correlation
//
// AnalyzeVoice runs the full pipeline with the default parameters used by
// the service.
package acoustics
