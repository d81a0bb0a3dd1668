package ws

import (
	"encoding/json"
	"sync"
)

// EventOrderChanged is the only event type the hub emits. It carries no row
// data; clients refetch on receipt.
const EventOrderChanged = "order.changed"

// Event is a WebSocket message to be broadcast.
type Event struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

// Hub maintains the set of active clients and fans order change events out to
// them. Clients join a room per table number; the empty table key is the
// firehose room that receives every event.
type Hub struct {
	// Registered clients by table number
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.table] == nil {
				h.rooms[client.table] = make(map[*Client]bool)
			}
			h.rooms[client.table][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			h.deliver(event.Table, message)
			if event.Table != "" {
				// Firehose room sees everything
				h.deliver("", message)
			}
			h.mu.Unlock()
		}
	}
}

// OrderChanged broadcasts a payload-free change event for the table's order
// ("" for quick-sale orders). This is the public API for handlers.
func (h *Hub) OrderChanged(table string) {
	h.broadcast <- Event{Type: EventOrderChanged, Table: table}
}

// deliver sends a marshaled message to every client in a room. Callers hold
// h.mu.
func (h *Hub) deliver(room string, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			h.drop(client)
		}
	}
}

// drop removes a client and cleans up its room when empty. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.table]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.table)
	}
}
