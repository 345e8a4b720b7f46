package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/app"
	"github.com/yourusername/mediaq-go/internal/domain"
)

const (
	eventBuffer  = 256
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Server binds to localhost by default
	},
}

// EventSource hands out event subscriptions
type EventSource interface {
	Subscribe(buffer int) *app.Subscription
}

// EventsHandler streams ProgressBus events over WebSocket
type EventsHandler struct {
	events EventSource
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(events EventSource, log *zap.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: log}
}

// HandleWebSocket handles GET /api/v1/events[?task=<id>].
// Events are sent as JSON text frames. A slow client loses events rather
// than stalling the queue and should re-sync from GET /api/v1/downloads.
func (h *EventsHandler) HandleWebSocket(c *gin.Context) {
	taskFilter := c.Query("task")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.events.Subscribe(eventBuffer)
	defer sub.Close()

	h.logger.Debug("Event stream client connected",
		zap.String("remote_addr", c.Request.RemoteAddr),
		zap.String("task", taskFilter))

	// Read side only detects the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeTimeout))
				return
			}
			if !matchesTask(event, taskFilter) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Event stream write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}

		case <-done:
			if n := sub.Dropped(); n > 0 {
				h.logger.Info("Event stream client missed events", zap.Int64("dropped", n))
			}
			return
		}
	}
}

// matchesTask keeps install events and events for the filtered task
func matchesTask(event domain.Event, taskID string) bool {
	if taskID == "" {
		return true
	}
	id := event.TaskID()
	return id == "" || id == taskID
}
