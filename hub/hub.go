package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one dispatch lifecycle notification pushed to watchers.
type Event struct {
	Type    string      `json:"type"` // run.queued, dispatch.target, dispatch.completed, dispatch.failed
	RunID   string      `json:"runId"`
	Payload interface{} `json:"payload"`
}

const (
	eventBacklog = 128
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

// client is one connected watcher. A client subscribed to a run ID
// receives only that run's events; an unscoped client receives everything.
type client struct {
	conn  *websocket.Conn
	send  chan []byte
	runID string
}

// Hub fans dispatch events out to websocket watchers. The clients map is
// owned by the Run goroutine; registration and delivery go through
// channels.
type Hub struct {
	clients    map[*client]bool
	events     chan Event
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	watcher int // connected client count, for stats
}

func New(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Hub{
		clients:    make(map[*client]bool),
		events:     make(chan Event, eventBacklog),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser watchers (CLI, curl) send no Origin.
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.setWatchers(len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setWatchers(len(h.clients))
			}
		case evt := <-h.events:
			data, err := json.Marshal(evt)
			if err != nil {
				log.Printf("hub: marshal event: %v", err)
				continue
			}
			for c := range h.clients {
				if c.runID != "" && c.runID != evt.RunID {
					continue
				}
				select {
				case c.send <- data:
				default:
					// Watcher is not draining; drop it.
					delete(h.clients, c)
					close(c.send)
					h.setWatchers(len(h.clients))
				}
			}
		}
	}
}

// Broadcast queues an event for delivery. Delivery is best-effort: when
// the backlog is full the event is dropped rather than stalling a run.
func (h *Hub) Broadcast(evt Event) {
	select {
	case h.events <- evt:
	default:
		log.Printf("hub: backlog full, dropping %s for run %s", evt.Type, evt.RunID)
	}
}

// Watchers returns the number of connected clients.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.watcher
}

func (h *Hub) setWatchers(n int) {
	h.mu.Lock()
	h.watcher = n
	h.mu.Unlock()
}

// HandleConnect upgrades the request and registers the watcher. A "run"
// query parameter scopes the subscription to a single run ID.
func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		runID: r.URL.Query().Get("run"),
	}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
