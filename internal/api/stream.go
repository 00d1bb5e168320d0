package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// handleStream upgrades to a websocket and pushes a snapshot every push
// interval. After the session ends the final snapshot is sent and the
// connection closed normally.
func (s *Server) handleStream(c *gin.Context) {
	if s.deps.Scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session running"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// client messages are ignored; reading detects the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	if err := s.push(conn); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-s.deps.Scorer.Done():
			if err := s.push(conn); err != nil {
				return
			}
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := s.push(conn); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write error")
				return
			}
		}
	}
}

func (s *Server) push(conn *ws.Conn) error {
	data, err := json.Marshal(s.deps.Scorer.Snapshot())
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}
