package status

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

const (
	KIND_STATUS = "status"
	KIND_FRAME  = "frame"
)

const (
	pingPeriod  = 30 * time.Second
	writeWait   = 40 * time.Second
	readWait    = 60 * time.Second
	sendBacklog = 32
)

type status struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type envelope struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump only drains control frames, viewer never sends anything useful
func (c *client) readPump() {
	defer c.hub.unregister(c)
	c.conn.SetReadLimit(1 << 16)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

// Hub fans out json messages to websocket clients. Last message of each kind
// is replayed to new clients. Slow clients lose messages instead of blocking
// publisher.
type Hub struct {
	lock    sync.Mutex
	clients map[*client]bool
	last    map[string][]byte
	dropped int
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		last:    make(map[string][]byte),
	}
}

func (h *Hub) NewClient(conn *websocket.Conn) *client {
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBacklog)}

	h.lock.Lock()
	h.clients[c] = true
	for _, kind := range []string{KIND_STATUS, KIND_FRAME} {
		if msg := h.last[kind]; msg != nil {
			c.send <- msg
		}
	}
	h.lock.Unlock()

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// Dropped returns number of messages lost on full client queues
func (h *Hub) Dropped() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.dropped
}

func (h *Hub) Last(kind string) []byte {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.last[kind]
}

func (h *Hub) Publish(kind string, v interface{}) error {
	data, err := json.Marshal(&envelope{Kind: kind, Data: v})
	if err != nil {
		return err
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	h.last[kind] = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped++
		}
	}
	return nil
}

func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[status] upgrade: %v", err)
		return
	}
	h.NewClient(conn)
}

var Default = NewHub()

func (h *Hub) Status(msg string, _type int, progress float32) {
	if math32.IsNaN(progress) || math32.IsInf(progress, 0) {
		progress = 0
	}
	if err := h.Publish(KIND_STATUS, &status{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress}); err != nil {
		log.Printf("[status] publish: %v", err)
	}
}

func Info(format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func Error(format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func Progress(progress float32, format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}
