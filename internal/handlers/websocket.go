package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/publisher"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const writeTimeout = 10 * time.Second

// WebSocketHandler streams job progress to connected clients. Each
// connection follows exactly one job; the connection closes when the job
// reaches a terminal status.
type WebSocketHandler struct {
	publisher *publisher.Publisher
	logger    arbor.ILogger
}

// NewWebSocketHandler creates the progress streaming handler
func NewWebSocketHandler(pub *publisher.Publisher, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		publisher: pub,
		logger:    logger,
	}
}

// HandleWebSocket upgrades the connection and streams job views
// GET /ws?job_id=job_xxx
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "job_id query parameter is required")
		return
	}

	views, err := h.publisher.Subscribe(r.Context(), jobID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.Debug().
		Str("job_id", jobID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client subscribed")

	// Drain client frames so close handshakes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for view := range views {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(view); err != nil {
			h.logger.Debug().Err(err).Str("job_id", jobID).Msg("WebSocket client disconnected")
			return
		}
	}

	// Subscription closed: the job is terminal or the poll failed
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}
