package server

import (
	"net/http"
	"time"
)

const streamWriteTimeout = 5 * time.Second

// handleStream upgrades the request and relays sink events to the client
// until either side closes. A client that cannot keep up misses events
// rather than stalling delivery to other subscribers.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id, ch := s.sink.Subscribe()
	defer s.sink.Unsubscribe(id)

	s.logger.Info("stream client connected", "remote", r.RemoteAddr, "subscriber", id)
	defer s.logger.Info("stream client disconnected", "remote", r.RemoteAddr, "subscriber", id)

	// Reader goroutine: surfaces client disconnects, discards client data.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer conn.Close()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(toEventDTO(rec)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
