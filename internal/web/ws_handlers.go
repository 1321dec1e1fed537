package web

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/source"
)

// handleStream upgrades the connection and registers it with the hub.
// Delivery happens on the dispatcher side; this handler only greets the
// client and watches for disconnection.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Stream upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}

	id := s.hub.Add(conn)
	if err := s.hub.Send(id, envelope.NewSystem(envelope.StatusConnected, "stream connected")); err != nil {
		s.hub.Remove(id)
		return
	}

	// Consume (and discard) client messages so close frames and pings
	// are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Remove(id)
			return
		}
	}
}

// uploadMessage is one frame pushed by an uploader
type uploadMessage struct {
	Frame string `json:"frame"` // Base64-encoded JPEG
}

type uploadAck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handleUpload accepts JPEG frames over WebSocket and feeds them to the
// push source. Rejected frames (scheduler behind, buffer full) are
// acknowledged as dropped so the uploader can throttle itself.
func (s *Server) handleUpload(c *gin.Context) {
	if s.push == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "push source is not configured"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Upload upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}
	defer conn.Close()

	s.logger.Info("Uploader connected", "client_ip", c.ClientIP())

	for {
		var msg uploadMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Uploader connection lost", "error", err)
			} else {
				s.logger.Info("Uploader disconnected", "client_ip", c.ClientIP())
			}
			return
		}

		ack := s.ingest(msg)
		conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := conn.WriteJSON(ack); err != nil {
			s.logger.Warn("Failed to acknowledge upload", "error", err)
			return
		}
	}
}

func (s *Server) ingest(msg uploadMessage) uploadAck {
	jpeg, err := base64.StdEncoding.DecodeString(msg.Frame)
	if err != nil {
		return uploadAck{Status: "error", Message: "invalid base64 payload"}
	}

	rgb, width, height, err := source.DecodeJPEG(jpeg)
	if err != nil {
		return uploadAck{Status: "error", Message: "invalid jpeg payload"}
	}

	if !s.push.Inject(rgb, width, height) {
		return uploadAck{Status: "dropped"}
	}
	return uploadAck{Status: "ok"}
}
