package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moodbite/backend/internal/domain"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPongWait     = 60 * time.Second
	feedPingPeriod   = feedPongWait * 9 / 10
)

// feedMessage is pushed to dashboard feed subscribers
type feedMessage struct {
	Type     string            `json:"type"`
	Sequence uint64            `json:"sequence"`
	Data     *domain.Dashboard `json:"data,omitempty"`
	Message  string            `json:"message,omitempty"`
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// native mobile clients send no Origin
			return origin == "" || isAllowedOrigin(origin, h.allowedOrigins)
		},
	}
}

// DashboardFeed upgrades to a websocket and pushes the user's dashboard
// once on connect and again after every change to their records or moods.
func (h *Handler) DashboardFeed(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "user id is required"})
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("userID", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	changes, cancel := h.feed.For(userID).Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()

	// the read loop only detects closed connections and handles pongs
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer stop()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("feed subscriber connected", zap.String("userID", userID))

	if !h.pushDashboard(ctx, conn, userID, h.feed.For(userID).Get().Sequence) {
		return
	}

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("feed subscriber disconnected", zap.String("userID", userID))
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if !h.pushDashboard(ctx, conn, userID, change.Sequence) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pushDashboard reports whether the connection is still usable
func (h *Handler) pushDashboard(ctx context.Context, conn *websocket.Conn, userID string, sequence uint64) bool {
	msg := feedMessage{Type: "dashboard", Sequence: sequence}

	dashboard, err := h.dashboards.Build(ctx, userID)
	if err != nil {
		h.logger.Warn("failed to build dashboard for feed", zap.String("userID", userID), zap.Error(err))
		msg = feedMessage{Type: "error", Sequence: sequence, Message: err.Error()}
	} else {
		msg.Data = dashboard
	}

	conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("failed to write feed message", zap.String("userID", userID), zap.Error(err))
		return false
	}
	return true
}
