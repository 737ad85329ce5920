package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
	eventsmemory "github.com/aescanero/vocalmetrics/pkg/adapters/events/memory"
)

type fakeAnalyses map[string]*domain.Analysis

func (f fakeAnalyses) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	a, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func newTestServer(t *testing.T, analyses fakeAnalyses) (*httptest.Server, *eventsmemory.InMemoryEventBus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := eventsmemory.NewInMemoryEventBus()
	handler := NewHandler(bus, analyses, []string{"http://localhost:3001"}, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/api/v1/analyses/:id/ws", handler.HandleAnalysisStream)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		_ = bus.Close()
	})
	return srv, bus
}

func wsURL(srv *httptest.Server, id string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/analyses/" + id + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event domain.Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHandleAnalysisStream_StreamsUntilCompleted(t *testing.T) {
	analyses := fakeAnalyses{
		"a1": {ID: "a1", Status: domain.AnalysisStatusPending, SubmittedAt: time.Now()},
	}
	srv, bus := newTestServer(t, analyses)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "a1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readEvent(t, conn)
	assert.Equal(t, EventTypeSnapshot, first.Type)
	assert.Equal(t, "a1", first.AnalysisID)

	ctx := context.Background()
	publish := func(id string, eventType domain.EventType) {
		require.NoError(t, bus.Publish(ctx, domain.AnalysisEventsTopic, domain.Event{
			ID:         id,
			Type:       eventType,
			AnalysisID: "a1",
			Timestamp:  time.Now(),
		}))
	}

	// events of other analyses are filtered out
	require.NoError(t, bus.Publish(ctx, domain.AnalysisEventsTopic, domain.Event{
		ID: "other", Type: domain.EventTypeAnalysisStarted, AnalysisID: "a2",
	}))
	publish("e1", domain.EventTypeAnalysisStarted)
	publish("e2", domain.EventTypeAnalysisCompleted)

	started := readEvent(t, conn)
	assert.Equal(t, "e1", started.ID)
	assert.Equal(t, domain.EventTypeAnalysisStarted, started.Type)

	completed := readEvent(t, conn)
	assert.Equal(t, "e2", completed.ID)

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
}

func TestHandleAnalysisStream_TerminalSnapshotCloses(t *testing.T) {
	now := time.Now()
	analyses := fakeAnalyses{
		"done": {
			ID:          "done",
			Status:      domain.AnalysisStatusCompleted,
			Metrics:     &domain.Metrics{AveragePitch: 200, JitterLocal: 0.01, ShimmerLocal: 0.05, HNR: 20},
			SubmittedAt: now,
			CompletedAt: &now,
		},
	}
	srv, _ := newTestServer(t, analyses)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "done"), nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readEvent(t, conn)
	assert.Equal(t, EventTypeSnapshot, snapshot.Type)
	analysis, ok := snapshot.Data["analysis"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", analysis["status"])

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHandleAnalysisStream_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, fakeAnalyses{})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleAnalysisStream_RejectsOrigin(t *testing.T) {
	analyses := fakeAnalyses{
		"a1": {ID: "a1", Status: domain.AnalysisStatusPending},
	}
	srv, _ := newTestServer(t, analyses)

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "a1"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
