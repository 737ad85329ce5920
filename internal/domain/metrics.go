package domain

import (
	"encoding/json"
	"math"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

// Metrics are the four voice quality measurements. Jitter, shimmer and HNR
// are NaN when the recording has too few periods to define them.
type Metrics struct {
	AveragePitch float64
	JitterLocal  float64
	ShimmerLocal float64
	HNR          float64
}

// metricsJSON mirrors Metrics with nullable numbers
type metricsJSON struct {
	AveragePitch *float64 `json:"average_pitch"`
	JitterLocal  *float64 `json:"jitter_local"`
	ShimmerLocal *float64 `json:"shimmer_local"`
	HNR          *float64 `json:"hnr"`
}

// MetricsFromReport extracts the metrics of a voice report
func MetricsFromReport(r *acoustics.VoiceReport) Metrics {
	return Metrics{
		AveragePitch: r.AveragePitch,
		JitterLocal:  r.JitterLocal,
		ShimmerLocal: r.ShimmerLocal,
		HNR:          r.HNR,
	}
}

// MarshalJSON writes NaN and infinite values as null
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricsJSON{
		AveragePitch: finite(m.AveragePitch),
		JitterLocal:  finite(m.JitterLocal),
		ShimmerLocal: finite(m.ShimmerLocal),
		HNR:          finite(m.HNR),
	})
}

// UnmarshalJSON reads null back as NaN
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw metricsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.AveragePitch = orNaN(raw.AveragePitch)
	m.JitterLocal = orNaN(raw.JitterLocal)
	m.ShimmerLocal = orNaN(raw.ShimmerLocal)
	m.HNR = orNaN(raw.HNR)
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
