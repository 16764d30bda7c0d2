package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/table-orders/events"
	"github.com/yeremiapane/table-orders/utils"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many messages a client may lag behind before it is dropped.
	sendBuffer = 64
)

// Roles allowed to open a KDS connection.
var Roles = map[string]bool{"chef": true, "staff": true, "admin": true}

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	role string
	send chan []byte
}

// Hub holds the connected staff screens (chef, staff, admin) and broadcasts
// lifecycle events to them. Each client has its own writer goroutine, so a
// stalled screen never blocks the publisher.
type Hub struct {
	clients map[Conn]*client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[Conn]*client)}
}

func (h *Hub) Register(conn Conn, role string) {
	c := &client{conn: conn, role: role, send: make(chan []byte, sendBuffer)}
	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()
	utils.InfoLogger.WithField("role", role).Info("kds client connected")
	go h.writePump(c)
}

func (h *Hub) Unregister(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(conn)
}

// remove must be called with the mutex held. Closing send stops the writer,
// which then closes the connection.
func (h *Hub) remove(conn Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, event events.Event) {
	h.Broadcast(Message{Event: event.Type, Data: event})
}

// Broadcast queues msg for every client. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling kds message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			utils.ErrorLogger.WithFields(logrus.Fields{
				"role":  c.role,
				"event": msg.Event,
			}).Error("kds client too slow, dropping")
			h.remove(conn)
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	failed := false
	for data := range c.send {
		if failed {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithField("role", c.role).Errorf("kds write failed, dropping client: %v", err)
			failed = true
			h.Unregister(c.conn)
		}
	}
}
