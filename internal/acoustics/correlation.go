package acoustics

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// nextPow2 returns the smallest power of two >= n
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// autocorrelation returns sum_i x[i]*x[i+lag] for lag in [0, maxLag].
// The FFT is zero padded so the circular result equals the linear one.
func autocorrelation(x []float64, maxLag int) []float64 {
	n := nextPow2(len(x) + maxLag + 1)
	padded := make([]float64, n)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		a := cmplx.Abs(c)
		spectrum[i] = complex(a*a, 0)
	}
	ac := fft.IFFT(spectrum)

	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(ac[i])
	}

	// pin the zero lag to the exact energy to cancel any FFT scaling drift
	if energy := floats.Dot(x, x); out[0] != 0 {
		floats.Scale(energy/out[0], out)
	}
	return out
}

// crossCorrelation returns sum_i a[i]*b[i+lag] for lag in [0, maxLag].
// b must hold at least len(a)+maxLag samples and begin with the same
// samples as a.
func crossCorrelation(a, b []float64, maxLag int) []float64 {
	n := nextPow2(len(b))
	pa := make([]complex128, n)
	pb := make([]complex128, n)
	for i, v := range a {
		pa[i] = complex(v, 0)
	}
	for i, v := range b {
		pb[i] = complex(v, 0)
	}

	fa := fft.FFT(pa)
	fb := fft.FFT(pb)
	for i := range fa {
		fa[i] = cmplx.Conj(fa[i]) * fb[i]
	}
	cc := fft.IFFT(fa)

	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(cc[i])
	}

	if energy := floats.Dot(a, a); out[0] != 0 {
		floats.Scale(energy/out[0], out)
	}
	return out
}

// normalizedCorrelation is the cosine similarity of two equal-length windows
func normalizedCorrelation(a, b []float64) float64 {
	denom := math.Sqrt(floats.Dot(a, a) * floats.Dot(b, b))
	if denom == 0 {
		return 0
	}
	return floats.Dot(a, b) / denom
}

// parabolicPeak fits a parabola through three equally spaced values and
// returns the vertex offset from the centre (in samples) and its height.
func parabolicPeak(left, centre, right float64) (float64, float64) {
	denom := left - 2*centre + right
	if denom == 0 {
		return 0, centre
	}
	offset := 0.5 * (left - right) / denom
	if offset > 0.5 {
		offset = 0.5
	} else if offset < -0.5 {
		offset = -0.5
	}
	return offset, centre - 0.25*(left-right)*offset
}

// frameLayout places n frames of windowDuration centred in the sound,
// timeStep apart. It returns the count and the centre of the first frame.
func frameLayout(duration, windowDuration, timeStep float64) (int, float64) {
	if windowDuration > duration || timeStep <= 0 {
		return 0, 0
	}
	n := int(math.Floor((duration-windowDuration)/timeStep)) + 1
	t1 := 0.5*duration - 0.5*float64(n-1)*timeStep
	return n, t1
}

// frameStart returns the first sample of a window of length size centred at t
func frameStart(t float64, size int, sampleRate float64, total int) int {
	start := int(math.Round(t*sampleRate)) - size/2
	if start+size > total {
		start = total - size
	}
	if start < 0 {
		start = 0
	}
	return start
}
