package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/ports"
)

// EventTypeSnapshot is the type of the first message on a stream
const EventTypeSnapshot domain.EventType = "analysis.snapshot"

const (
	eventBuffer  = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Analyses looks up analyses by id
type Analyses interface {
	Get(ctx context.Context, id string) (*domain.Analysis, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	analyses Analyses
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. Browser connections are only
// accepted from origins; "*" accepts any origin.
func NewHandler(eventBus ports.EventBus, analyses Analyses, origins []string, logger *zap.Logger) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return &Handler{
		eventBus: eventBus,
		analyses: analyses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// HandleAnalysisStream handles WebSocket streaming for a specific analysis
func (h *Handler) HandleAnalysisStream(c *gin.Context) {
	analysisID := c.Param("id")

	if _, err := h.analyses.Get(c.Request.Context(), analysisID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ports.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("analysis_id", analysisID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the read loop notices when the client goes away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := make(chan domain.Event, eventBuffer)
	handler := func(ctx context.Context, event domain.Event) error {
		if event.AnalysisID != analysisID {
			return nil
		}
		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("analysis_id", analysisID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
	if err := h.eventBus.Subscribe(ctx, domain.AnalysisEventsTopic, handler); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("topic", domain.AnalysisEventsTopic),
			zap.Error(err))
		h.closeWith(conn, websocket.CloseInternalServerErr, "event stream unavailable")
		return
	}

	// the snapshot is read after subscribing so no transition is missed
	analysis, err := h.analyses.Get(ctx, analysisID)
	if err != nil {
		h.closeWith(conn, websocket.CloseInternalServerErr, "analysis unavailable")
		return
	}
	if err := h.write(conn, snapshot(analysis)); err != nil {
		return
	}
	if analysis.IsTerminal() {
		h.closeWith(conn, websocket.CloseNormalClosure, string(analysis.Status))
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case event := <-events:
			if err := h.write(conn, event); err != nil {
				return
			}
			if event.IsTerminal() {
				h.closeWith(conn, websocket.CloseNormalClosure, string(event.Type))
				return
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Debug("failed to write message",
			zap.String("analysis_id", event.AnalysisID),
			zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

// snapshot wraps the current state of an analysis as an event
func snapshot(analysis *domain.Analysis) domain.Event {
	return domain.Event{
		ID:         uuid.New().String(),
		Type:       EventTypeSnapshot,
		AnalysisID: analysis.ID,
		Timestamp:  time.Now(),
		Data: map[string]interface{}{
			"analysis": analysis,
		},
	}
}
