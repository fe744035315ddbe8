package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every viewer of a card after a committed change.
type BalanceUpdate struct {
	Token         string `json:"token"`
	Balance       int64  `json:"balance"`
	Delta         int64  `json:"delta"`
	Source        string `json:"source,omitempty"`
	TransactionID int64  `json:"transaction_id,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// Hub fans balance updates out to the participant pages watching a card.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(token string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[token] == nil {
		h.clients[token] = make(map[*Client]struct{})
	}
	h.clients[token][client] = struct{}{}
}

func (h *Hub) Unregister(token string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[token] == nil {
		return
	}
	delete(h.clients[token], client)
	if len(h.clients[token]) == 0 {
		delete(h.clients, token)
	}
}

// BroadcastBalance never blocks: a viewer whose buffer is full misses the
// update and picks up the balance on its next one.
func (h *Hub) BroadcastBalance(token string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[token] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) Viewers(token string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[token])
}

// Close disconnects every viewer. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for token, clients := range h.clients {
		for client := range clients {
			client.close()
		}
		delete(h.clients, token)
	}
}
