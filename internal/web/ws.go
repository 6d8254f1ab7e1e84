package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Every origin is accepted; the CORS middleware does not restrict
	// WebSocket upgrades. The API binds to loopback by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshotInterval paces the periodic session table pushes between
// events.
const snapshotInterval = 2 * time.Second

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// handleWS streams lifecycle events plus periodic session snapshots to
// one observer. The bus subscription is lossy, so a slow socket lags
// rather than backpressuring any emitter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.mgr.Events().Subscribe()
	defer cancel()

	// Reader goroutine: we ignore client input but need to observe the
	// close handshake.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(wsMessage{Type: "event", Data: evt}); err != nil {
				return
			}
		case <-ticker.C:
			sessions, err := s.mgr.Status()
			if err != nil {
				log.Debug().Err(err).Msg("ws snapshot failed")
				return
			}
			if err := conn.WriteJSON(wsMessage{Type: "sessions_update", Data: sessions}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
