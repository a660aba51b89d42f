package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	applog "rkas/internal/log"
	"rkas/internal/services"
)

type statusMessage struct {
	Type   string              `json:"type"`
	Status services.SyncStatus `json:"status"`
}

// statusHub pushes sync status changes to every connected websocket. A new
// session receives the current status right away.
type statusHub struct {
	m       *melody.Melody
	tracker *services.StatusTracker
	logger  *applog.Logger
}

func newStatusHub(tracker *services.StatusTracker, logger *applog.Logger) *statusHub {
	if tracker == nil {
		tracker = services.NewStatusTracker(services.StatusLocalOnly)
	}
	m := melody.New()
	m.Config.MaxMessageSize = 512
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &statusHub{m: m, tracker: tracker, logger: logger.WithComponent(applog.ComponentStatus)}

	m.HandleConnect(func(s *melody.Session) {
		if err := s.Write(h.message(tracker.Get())); err != nil {
			h.logger.WarnContext(context.Background(), "Failed to send initial status", "error", err)
		}
	})
	m.HandleError(func(_ *melody.Session, err error) {
		h.logger.DebugContext(context.Background(), "Status websocket error", "error", err)
	})
	tracker.Subscribe(h.broadcast)
	return h
}

func (h *statusHub) message(status services.SyncStatus) []byte {
	b, _ := json.Marshal(statusMessage{Type: "status", Status: status})
	return b
}

func (h *statusHub) broadcast(status services.SyncStatus) {
	if h.m.IsClosed() {
		return
	}
	if err := h.m.Broadcast(h.message(status)); err != nil {
		h.logger.WarnContext(context.Background(), "Failed to broadcast status", "status", status, "error", err)
	}
}

func (h *statusHub) handle(c *gin.Context) {
	if err := h.m.HandleRequest(c.Writer, c.Request); err != nil {
		h.logger.WarnContext(c.Request.Context(), "Failed to upgrade status websocket", "error", err)
	}
}

func (h *statusHub) sessions() int {
	return h.m.Len()
}

func (h *statusHub) close() error {
	if h.m.IsClosed() {
		return nil
	}
	return h.m.Close()
}
