package api

import (
	"net/http"
	"time"

	"github.com/goodtune/brainbites/internal/events"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// handleEvents streams the event feed as {"type","payload"} text frames.
// Client messages are read and discarded; the read loop only detects
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	feed, cancel := s.deps.Events.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream opened")

	for {
		select {
		case <-closed:
			s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Event stream closed")
			return
		case e, ok := <-feed:
			if !ok {
				return
			}
			data, err := events.Marshal(e)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode event")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Msg("Event stream write failed")
				return
			}
		}
	}
}
