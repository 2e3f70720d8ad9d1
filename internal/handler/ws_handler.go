package handler

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/smartlearn/smartlearn-backend/internal/middleware"
	"github.com/smartlearn/smartlearn-backend/internal/service"
	"github.com/smartlearn/smartlearn-backend/internal/session"
	ws "github.com/smartlearn/smartlearn-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams exam sessions: countdown ticks out, autosaves and the
// final submit in.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes; the tick goroutine and the read loop both send.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = ws.WriteError(w.conn, msg)
}

// ExamStream godoc
// WS /ws/v1/exams/:exam_id/stream?token=...
// Upgrades to WebSocket for real-time autosave, countdown and submit.
func (h *WSHandler) ExamStream(c *gin.Context) {
	learner, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	examID := c.Param("exam_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}

	// A session must be running before the stream is useful.
	if _, err := h.sessionService.State(c.Request.Context(), examID, learner); err != nil {
		wc.writeError("no active session for this exam")
		return
	}

	wsLog := h.log.With().
		Str("user_id", learner.UserID).
		Str("exam_id", examID).
		Logger()

	wsLog.Info().Msg("Learner connected")

	stopTicks := make(chan struct{})
	defer close(stopTicks)
	go h.pushTicks(wc, examID, learner, stopTicks)

	for {
		var msg ws.AutosaveRequest
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(c, wc, examID, learner, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(c, wc, wsLog, examID, learner)
		case ws.ActionPing:
			_ = wc.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			wc.writeError("unknown action: " + string(msg.Action))
		}
	}
}

// pushTicks sends the authoritative remaining time once per second until the
// session stops running or the connection goes away.
func (h *WSHandler) pushTicks(wc *wsConn, examID string, learner session.Identity, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sess, err := h.sessionService.Manager().Get(examID, learner.UserID)
			if err != nil {
				return
			}
			state := sess.State()
			if state.Phase != session.PhaseRunning || state.RemainingSeconds == nil {
				return
			}
			if err := wc.write(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: *state.RemainingSeconds}); err != nil {
				return
			}
		}
	}
}

// handleAutosave records a single answer in the session and its Redis mirror.
func (h *WSHandler) handleAutosave(c *gin.Context, wc *wsConn, examID string, learner session.Identity, msg *ws.AutosaveRequest) {
	if msg.QID == "" {
		wc.writeError("q_id is required")
		return
	}

	if err := h.sessionService.RecordAnswer(c.Request.Context(), examID, learner, msg.QID, msg.Answer); err != nil {
		wc.writeError("save failed")
		return
	}

	_ = wc.write(ws.SavedResponse{Event: ws.EventSaved, Status: "saved"})
}

// handleSubmit scores the session and reports the result on the socket.
func (h *WSHandler) handleSubmit(c *gin.Context, wc *wsConn, wsLog zerolog.Logger, examID string, learner session.Identity) {
	sub, err := h.sessionService.Submit(c.Request.Context(), examID, learner)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		wc.writeError("submit failed")
		return
	}

	_ = wc.write(ws.GradedResponse{Event: ws.EventGraded, Status: "submitted", Score: sub.Score})
}
