// Package live pushes the projected daily OPD list to connected desk terminals over
// WebSockets. Every terminal receives the same list; there are no topics.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"opd-desk/internal/daily"
	"opd-desk/internal/mirror"
	"opd-desk/internal/models"
)

// MessageToday is the type of every message pushed by the hub.
const MessageToday = "today"

const sendBuffer = 16

// Message is one push to a terminal.
type Message struct {
	Type string     `json:"type"`
	At   time.Time  `json:"at"`
	Data daily.View `json:"data"`
}

// Client is a single connected terminal.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient() *Client {
	return &Client{ID: uuid.New().String(), Send: make(chan []byte, sendBuffer)}
}

// Hub tracks connected terminals and remembers the last pushed list so a new
// terminal does not wait for the next snapshot.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	last    []byte
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log.With().Str("component", "live").Logger(),
	}
}

// Register adds c and queues the latest list for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.last != nil {
		select {
		case c.Send <- h.last:
		default:
		}
	}
}

// Unregister removes c and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
}

// Publish sends view to every terminal. A terminal whose buffer is full misses this
// push and catches up on the next one.
func (h *Hub) Publish(view daily.View) {
	data, err := json.Marshal(Message{Type: MessageToday, At: time.Now().UTC(), Data: view})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal daily view")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	for c := range h.clients {
		select {
		case c.Send <- data:
		default:
			h.log.Warn().Str("client", c.ID).Msg("terminal too slow, push dropped")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Follow republishes the projected list whenever either mirror is replaced. Nothing is
// pushed until the visit mirror has loaded.
func (h *Hub) Follow(b *mirror.Bridge, p *daily.Projector, now func() time.Time) {
	b.OnVisits(func(visits []models.Visit, totalPatients int) {
		h.Publish(p.Project(visits, totalPatients, now()))
	})
	b.OnPatients(func(totalPatients int) {
		if !b.Mirror().Loaded() {
			return
		}
		h.Publish(p.Project(b.Mirror().Visits(), totalPatients, now()))
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve upgrades the request and pumps pushes to the terminal until it disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := NewClient()
	h.Register(c)
	h.log.Debug().Str("client", c.ID).Msg("terminal connected")

	go h.writePump(c, ws)
	go h.readPump(c, ws)
	return nil
}

// readPump only watches for the close; terminals never send anything meaningful.
func (h *Hub) readPump(c *Client, ws *websocket.Conn) {
	defer func() {
		h.Unregister(c)
		ws.Close()
		h.log.Debug().Str("client", c.ID).Msg("terminal disconnected")
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *Client, ws *websocket.Conn) {
	defer ws.Close()

	for msg := range c.Send {
		ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
