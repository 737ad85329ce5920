package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_JSON(t *testing.T) {
	m := Metrics{AveragePitch: 201.5, JitterLocal: 0.004, ShimmerLocal: 0.03, HNR: 18.2}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"average_pitch":201.5,"jitter_local":0.004,"shimmer_local":0.03,"hnr":18.2}`, string(data))
}

func TestMetrics_JSONUndefinedValues(t *testing.T) {
	m := Metrics{AveragePitch: 0, JitterLocal: math.NaN(), ShimmerLocal: math.NaN(), HNR: math.Inf(1)}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"average_pitch":0,"jitter_local":null,"shimmer_local":null,"hnr":null}`, string(data))

	var back Metrics
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Zero(t, back.AveragePitch)
	assert.True(t, math.IsNaN(back.JitterLocal))
	assert.True(t, math.IsNaN(back.HNR))
}

func TestAnalysis_Lifecycle(t *testing.T) {
	now := time.Now()
	a := &Analysis{ID: "a1", Status: AnalysisStatusPending, SubmittedAt: now}
	assert.False(t, a.IsTerminal())

	a.Start(now)
	assert.Equal(t, AnalysisStatusRunning, a.Status)
	require.NotNil(t, a.StartedAt)

	a.Complete(Metrics{AveragePitch: 120}, Details{Format: "wav"}, now)
	assert.True(t, a.IsTerminal())
	assert.Equal(t, 120.0, a.Metrics.AveragePitch)
	assert.Equal(t, "wav", a.Details.Format)

	b := &Analysis{ID: "b1"}
	b.Fail(errors.New("boom"), now)
	assert.Equal(t, AnalysisStatusFailed, b.Status)
	assert.Equal(t, "boom", b.Error)
	assert.True(t, b.IsTerminal())
}

func TestEvent_IsTerminal(t *testing.T) {
	assert.False(t, Event{Type: EventTypeAnalysisStarted}.IsTerminal())
	assert.True(t, Event{Type: EventTypeAnalysisFailed}.IsTerminal())
}
