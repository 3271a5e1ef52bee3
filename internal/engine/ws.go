package engine

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressServer exposes the engine's streaming progress API over a
// WebSocket: each connected client receives every ProgressEvent broadcast
// while it's connected, matching the teacher's handlers.WebSocketHandler
// connection-registry/broadcast shape, narrowed to one event type.
type ProgressServer struct {
	logger arbor.ILogger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewProgressServer constructs an empty ProgressServer.
func NewProgressServer(logger arbor.ILogger) *ProgressServer {
	return &ProgressServer{logger: logger, clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// Handler upgrades the connection and keeps it registered until the client
// disconnects or sends a close frame.
func (s *ProgressServer) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade progress websocket connection")
		return
	}

	s.mu.Lock()
	s.clients[conn] = &sync.Mutex{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends event to every connected client, dropping connections
// that error on write rather than letting one slow client stall the rest.
func (s *ProgressServer) Broadcast(event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal progress event")
		return
	}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	mutexes := make([]*sync.Mutex, 0, len(s.clients))
	for conn, mu := range s.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, mu)
	}
	s.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to send progress event to client")
			conn.Close()
		}
	}
}

// Pump drains progress off ch and broadcasts each event, until ch closes.
// Run it in its own goroutine alongside a SearchJobsStream call.
func (s *ProgressServer) Pump(ch <-chan ProgressEvent) {
	for event := range ch {
		s.Broadcast(event)
	}
}
