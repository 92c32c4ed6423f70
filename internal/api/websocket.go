package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"terminal-core/pkg/i18n"
	"terminal-core/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionStream pushes the session view once on connect and again after every
// change. Client frames are only read to notice the close.
func (s *Server) sessionStream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	current, err := s.Engine.Session(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	updates, stop, err := s.Engine.Updates(ctx, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	defer stop()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(i18n.Get("WebsocketUpgradeFailed"), err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(current); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case v, ok := <-updates:
			if !ok {
				// session closed
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
