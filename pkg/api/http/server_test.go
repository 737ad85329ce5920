package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
	"github.com/aescanero/vocalmetrics/internal/application/analyzer"
	"github.com/aescanero/vocalmetrics/internal/application/workers"
	"github.com/aescanero/vocalmetrics/internal/audio"
	"github.com/aescanero/vocalmetrics/internal/domain"
	eventsmemory "github.com/aescanero/vocalmetrics/pkg/adapters/events/memory"
	promadapter "github.com/aescanero/vocalmetrics/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/vocalmetrics/pkg/adapters/storage/memory"
)

// sineWAV returns a 16-bit mono WAV recording of a sine
func sineWAV(t *testing.T, freq, duration float64) []byte {
	t.Helper()

	const rate = 16000
	path := filepath.Join(t.TempDir(), "sine.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, int(duration*rate))
	for i := range data {
		data[i] = int(12000 * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

// multipartBody builds a form with one "file" part
func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

type testServer struct {
	server   *Server
	service  *analyzer.Service
	registry *prometheus.Registry
	tempDir  string
}

func newTestServer(t *testing.T, mutate func(cfg *Config)) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	registry := prometheus.NewRegistry()
	collector := promadapter.NewCollector(registry)
	storage := storagememory.NewInMemoryAnalysisStorage(time.Hour)
	bus := eventsmemory.NewInMemoryEventBus()
	tempDir := t.TempDir()

	service := analyzer.NewService(&analyzer.Config{
		Storage:         storage,
		EventBus:        bus,
		Metrics:         collector,
		Decoder:         audio.NewDecoder("", logger),
		Validator:       analyzer.NewValidator(1<<20, nil),
		Params:          acoustics.DefaultVoiceParams(),
		TempDir:         tempDir,
		CacheEnabled:    true,
		AnalysisTimeout: 30 * time.Second,
		Logger:          logger,
	})

	pool := workers.NewPool(&workers.Config{
		Size:      1,
		QueueSize: 4,
		Handler:   service.RunJob,
		OnDiscard: service.DiscardJob,
		Metrics:   collector,
		Logger:    logger,
	})
	service.SetQueue(pool)
	require.NoError(t, pool.Start())

	cfg := &Config{
		Analyzer:      service,
		Storage:       storage,
		Pool:          pool,
		Metrics:       collector,
		Gatherer:      registry,
		MaxUploadSize: 1 << 20,
		CORSOrigins:   []string{"http://localhost:3001"},
		Logger:        logger,
	}
	if mutate != nil {
		mutate(cfg)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
		_ = bus.Close()
	})

	return &testServer{
		server:   NewServer(cfg),
		service:  service,
		registry: registry,
		tempDir:  tempDir,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, path, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return ts.do(req)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAnalyzeVocal_Success(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/analyze_vocal", "voice.wav", sineWAV(t, 220, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON(t, rec)
	assert.Len(t, body, 4)
	assert.InDelta(t, 220, body["average_pitch"], 5)
	assert.Contains(t, body, "jitter_local")
	assert.Contains(t, body, "shimmer_local")
	assert.Contains(t, body, "hnr")

	entries, err := os.ReadDir(ts.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must be removed")
}

func TestAnalyzeVocal_MissingFile(t *testing.T) {
	ts := newTestServer(t, nil)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", "value"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze_vocal", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], "no audio file provided")
}

func TestAnalyzeVocal_NotMultipart(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze_vocal", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeVocal_EmptySelection(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/analyze_vocal", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], "no audio file selected")
}

func TestAnalyzeVocal_AnalysisFailure(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/analyze_vocal", "voice.mp3", []byte("definitely not audio"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeJSON(t, rec)["error"])

	entries, err := os.ReadDir(ts.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeVocal_TooLarge(t *testing.T) {
	ts := newTestServer(t, nil)

	// over the 1 MiB upload limit but inside the multipart allowance
	rec := ts.upload(t, "/analyze_vocal", "voice.wav", make([]byte, 3<<19))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeJSON(t, rec), "error")
}

func TestSubmitAnalysis_Completes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/api/v1/analyses", "voice.wav", sineWAV(t, 180, 1))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var submitted SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.ID)
	assert.Equal(t, domain.AnalysisStatusPending, submitted.Status)

	var analysis domain.Analysis
	require.Eventually(t, func() bool {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+submitted.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
			return false
		}
		return analysis.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, domain.AnalysisStatusCompleted, analysis.Status, analysis.Error)
	require.NotNil(t, analysis.Metrics)
	assert.InDelta(t, 180, analysis.Metrics.AveragePitch, 5)
	assert.Equal(t, "voice.wav", analysis.Filename)

	// a second identical upload is answered from the cache
	rec = ts.upload(t, "/api/v1/analyses", "again.wav", sineWAV(t, 180, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeJSON(t, rec)["cached"])
}

func TestSubmitAnalysis_Errors(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.Analyzer = analyzer.NewService(&analyzer.Config{
			Storage:   storagememory.NewInMemoryAnalysisStorage(time.Hour),
			Metrics:   promadapter.NewCollector(prometheus.NewRegistry()),
			Decoder:   audio.NewDecoder("", zaptest.NewLogger(t)),
			Validator: analyzer.NewValidator(1<<20, []string{"wav"}),
			Params:    acoustics.DefaultVoiceParams(),
			TempDir:   t.TempDir(),
			Logger:    zaptest.NewLogger(t),
		})
		cfg.Analyzer.SetQueue(fullQueue{})
	})

	tests := []struct {
		name     string
		filename string
		data     []byte
		status   int
		code     string
	}{
		{"empty selection", "", nil, http.StatusBadRequest, "INVALID_UPLOAD"},
		{"extension not allowed", "voice.mp3", []byte("ID3"), http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"},
		{"queue full", "voice.wav", []byte("RIFF"), http.StatusServiceUnavailable, "QUEUE_FULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.upload(t, "/api/v1/analyses", tt.filename, tt.data)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

type fullQueue struct{}

func (fullQueue) Enqueue(job workers.Job) error { return workers.ErrQueueFull }

func TestGetAnalysis_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestUploadRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitWindow = 15 * time.Minute
		cfg.RateLimitMax = 5
	})

	// the synchronous route is never limited
	for i := 0; i < 6; i++ {
		rec := ts.upload(t, "/analyze_vocal", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "request %d", i+1)
	}

	for i := 0; i < 5; i++ {
		rec := ts.upload(t, "/api/v1/analyses", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "submission %d", i+1)
	}
	rec := ts.upload(t, "/api/v1/analyses", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, decodeJSON(t, rec), "error")

	// the limit is per route, analyze_vocal keeps working
	rec = ts.upload(t, "/analyze_vocal", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// reads are not limited
	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeVocal_NotRateLimited(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitWindow = time.Hour
		cfg.RateLimitMax = 1
	})
	data := sineWAV(t, 200, 0.5)

	for i := 0; i < 3; i++ {
		rec := ts.upload(t, "/analyze_vocal", "take.wav", data)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	assert.Equal(t, "healthy", body["status"])
	checks, ok := body["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", checks["storage"])

	pool, ok := checks["workers"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), pool["total_workers"])
	assert.Equal(t, true, pool["healthy"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.upload(t, "/analyze_vocal", "", nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vocalmetrics_requests_total{endpoint="analyze_vocal",status="rejected"} 1`)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/analyze_vocal", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	rec := ts.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3001", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/analyze_vocal", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = ts.do(req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadLimiter_Refills(t *testing.T) {
	l := newUploadLimiter(time.Minute, 2, zaptest.NewLogger(t))
	require.NotNil(t, l)

	now := time.Now()
	assert.True(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.1", now))
	assert.False(t, l.allow("10.0.0.1", now))
	assert.True(t, l.allow("10.0.0.2", now), "limits are per client")

	// one token comes back every window/max
	assert.True(t, l.allow("10.0.0.1", now.Add(31*time.Second)))

	// idle clients are forgotten
	l.allow("10.0.0.3", now.Add(3*time.Minute))
	assert.Len(t, l.clients, 1)
}

func TestUploadLimiter_Disabled(t *testing.T) {
	assert.Nil(t, newUploadLimiter(time.Minute, 0, zaptest.NewLogger(t)))
	assert.Nil(t, newUploadLimiter(0, 5, zaptest.NewLogger(t)))
}
