package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/homestead/internal/engine"
)

const (
	streamCatchUp   = 50
	streamHeartbeat = 15 * time.Second
	streamWriteWait = 5 * time.Second
)

// handleStream upgrades to a websocket and sends recent events followed by
// live ones. Requires the relay key and limits concurrent connections.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearerMatches(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	maxConns := int32(s.MaxStreamConns)
	if maxConns <= 0 {
		maxConns = defaultMaxStreamConns
	}
	if s.streamConns.Add(1) > maxConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Farm.Subscribe()
	defer s.Farm.Unsubscribe(subID)

	var catchUp []engine.Event
	s.Eng.Do(func() {
		catchUp = s.Farm.RecentEvents(streamCatchUp)
	})
	for _, e := range catchUp {
		if err := writeEvent(conn, e); err != nil {
			return
		}
	}
	slog.Info("stream client connected", "sub_id", subID)

	// Reader: the client only sends control frames; a read error means it left.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(conn, e); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-done:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, e engine.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
