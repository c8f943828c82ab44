package hub

import (
	"net/http"
	"stream-lab/domain"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame
	writeWait = 10 * time.Second

	// Overlays only send small control messages
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Overlays are loaded from OBS browser sources with arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and serves one overlay session until either side closes.
// Channels are chosen with ?channels=chat,music, all of them by default.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s := h.Connect(domain.ParseChannels(r.URL.Query().Get("channels")))
	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump pumps client messages to the hub
func (h *Hub) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.Disconnect(s)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		s.Pong()
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Unexpected overlay close", "session", s.ID, "error", err)
			}
			return
		}
		h.HandleClient(s, message)
	}
}

// writePump drains the session outbox and sends pings asked by the heartbeat
func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	defer func() { _ = conn.Close() }()

	for {
		select {
		case <-s.Closed():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "closing"))
			return
		case <-s.Pings():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Debug("Failed to send ping", "session", s.ID, "error", err)
				h.Disconnect(s)
				return
			}
		case <-s.outbox.Ready():
			for {
				frame, ok := s.outbox.Pop()
				if !ok {
					break
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					h.log.Debug("Failed to write frame", "session", s.ID, "error", err)
					h.Disconnect(s)
					return
				}
			}
		}
	}
}
