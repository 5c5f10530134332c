package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dispacio/internal/events"
)

// Live planner events over WebSocket. The stream is one-way: the server
// writes {type,data} frames for the caller's tenant; client frames are read
// only to notice the close.

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// EventsWSHandler handles /v1/events/ws
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	topic := events.Topic(p.Tenant)
	// subscribe before the handshake completes so no event published after
	// the client connects is missed
	ch := s.Broker.Subscribe(topic)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Broker.Unsubscribe(topic, ch)
		return
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = conn.Close() }()
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(wsPongWait)); return nil })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.Broker.Unsubscribe(topic, ch)
	<-done
}
