// Package stream fans classified records out to connected observers over
// WebSocket, so a capture run can be watched as it happens.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Server struct {
	addr       string
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	httpServer *http.Server
	mu         sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	srv  *Server
}

func NewServer(addr string) *Server {
	s := &Server{
		addr:       addr,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			// Observe-only local tool; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start runs the hub and listener in the background.
func (s *Server) Start(ctx context.Context) error {
	go s.run(ctx)
	go func() {
		log.Printf("stream: listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("stream: server error: %v", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = true
			n := len(s.clients)
			s.mu.Unlock()
			log.Printf("stream: observer connected (%d total)", n)

		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
			}
			s.mu.Unlock()

		case message := <-s.broadcast:
			s.mu.RLock()
			targets := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				targets = append(targets, c)
			}
			s.mu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- message:
				default:
					// Slow observer; drop it rather than stall the run.
					s.mu.Lock()
					delete(s.clients, c)
					s.mu.Unlock()
					close(c.send)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256), srv: s}
	s.register <- c

	go c.writePump()
	go c.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "healthy",
		"clients": clientCount,
	})
}

// ClientCount reports the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast marshals v and fans it out to every observer. A full broadcast
// queue drops the message; observers are a convenience, not a consumer with
// delivery guarantees.
func (s *Server) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("stream: marshal failed: %v", err)
		return
	}

	select {
	case s.broadcast <- data:
	default:
		log.Println("stream: broadcast channel full, dropping message")
	}
}

func (c *client) readPump() {
	defer func() {
		c.srv.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("stream: read error: %v", err)
			}
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
