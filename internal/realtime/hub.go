package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stagecast/distributor/pkg/logger"
)

// Envelope is the wire frame for server-to-client events.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client is one websocket connection. A connection belongs to exactly
// one user and device, or to a router.
type Client struct {
	UserID   string
	DeviceID string
	RouterID string
	Send     chan []byte
	Conn     *websocket.Conn
}

// Hub tracks live connections and fans events out to them, keyed by
// user, device and router so the different audiences can be addressed.
type Hub struct {
	clients   map[*Client]bool
	byUser    map[string]map[*Client]bool
	byDevice  map[string]map[*Client]bool
	byRouter  map[string]map[*Client]bool
	mu        sync.RWMutex
	backplane *Backplane
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		byUser:   make(map[string]map[*Client]bool),
		byDevice: make(map[string]map[*Client]bool),
		byRouter: make(map[string]map[*Client]bool),
	}
}

// SetBackplane attaches a cross-instance relay. Events sent through the
// hub are then also published to the other server instances.
func (h *Hub) SetBackplane(b *Backplane) {
	h.backplane = b
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if c.UserID != "" {
		if h.byUser[c.UserID] == nil {
			h.byUser[c.UserID] = make(map[*Client]bool)
		}
		h.byUser[c.UserID][c] = true
	}
	if c.DeviceID != "" {
		if h.byDevice[c.DeviceID] == nil {
			h.byDevice[c.DeviceID] = make(map[*Client]bool)
		}
		h.byDevice[c.DeviceID][c] = true
	}
	if c.RouterID != "" {
		if h.byRouter[c.RouterID] == nil {
			h.byRouter[c.RouterID] = make(map[*Client]bool)
		}
		h.byRouter[c.RouterID][c] = true
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	h.removeFromIndex(h.byUser, c.UserID, c)
	h.removeFromIndex(h.byDevice, c.DeviceID, c)
	h.removeFromIndex(h.byRouter, c.RouterID, c)
	close(c.Send)
}

func (h *Hub) removeFromIndex(index map[string]map[*Client]bool, key string, c *Client) {
	if key == "" {
		return
	}
	if set, ok := index[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// SendToUser delivers an event to every connection of the user.
func (h *Hub) SendToUser(userID, event string, payload interface{}) {
	data := encode(event, payload)
	h.deliver(h.snapshot(h.byUser, userID), data)
	h.relay(scopeUser, userID, data)
}

// SendToDevice delivers an event to the device's connection.
func (h *Hub) SendToDevice(deviceID, event string, payload interface{}) {
	data := encode(event, payload)
	h.deliver(h.snapshot(h.byDevice, deviceID), data)
	h.relay(scopeDevice, deviceID, data)
}

// SendToRouter delivers an event to the router's connection.
func (h *Hub) SendToRouter(routerID, event string, payload interface{}) {
	data := encode(event, payload)
	h.deliver(h.snapshot(h.byRouter, routerID), data)
	h.relay(scopeRouter, routerID, data)
}

// SendToAll delivers an event to every live connection.
func (h *Hub) SendToAll(event string, payload interface{}) {
	data := encode(event, payload)
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	h.deliver(clients, data)
	h.relay(scopeAll, "", data)
}

// DeliverLocal pushes an already-encoded frame to local connections
// only. Used by the backplane for frames relayed from other instances.
func (h *Hub) DeliverLocal(scope, key string, data []byte) {
	switch scope {
	case scopeUser:
		h.deliver(h.snapshot(h.byUser, key), data)
	case scopeDevice:
		h.deliver(h.snapshot(h.byDevice, key), data)
	case scopeRouter:
		h.deliver(h.snapshot(h.byRouter, key), data)
	case scopeAll:
		h.mu.RLock()
		clients := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.RUnlock()
		h.deliver(clients, data)
	}
}

// Push delivers an already-encoded frame to one connection. A stalled
// or deregistered connection is dropped like any other slow consumer.
func (h *Hub) Push(c *Client, data []byte) {
	h.deliver([]*Client{c}, data)
}

// ClientCount reports the number of live local connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot(index map[string]map[*Client]bool, key string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := index[key]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// deliver sends a frame to each client. Sends happen under the read
// lock and Unregister closes Send under the write lock, so a concurrent
// fan-out can never hit a closed channel.
func (h *Hub) deliver(clients []*Client, data []byte) {
	var slow []*Client
	h.mu.RLock()
	for _, c := range clients {
		if !h.clients[c] {
			continue
		}
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// Slow consumers are dropped after the lock is released.
	for _, c := range slow {
		h.Unregister(c)
	}
}

func (h *Hub) relay(scope, key string, data []byte) {
	if h.backplane != nil {
		h.backplane.Publish(scope, key, data)
	}
}

func encode(event string, payload interface{}) []byte {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return []byte(`{"event":"` + event + `"}`)
	}
	return data
}
