package ws

import (
	"log/slog"
	"sync"

	"github.com/serroba/docstore/internal/db"
)

// Hub tracks connected clients and fans committed changes out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates a new Hub. A nil logger uses slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client.ID)
}

// Subscribe narrows a client to the given documents.
func (h *Hub) Subscribe(client *Client, docIDs []string) {
	client.SetDocIDs(docIDs)
}

// Unsubscribe widens a client back to every document.
func (h *Hub) Unsubscribe(client *Client) {
	client.SetDocIDs(nil)
}

// Broadcast queues msg for every client watching docID. A client whose
// queue is full is dropped. Broadcast never blocks on a client connection.
func (h *Hub) Broadcast(docID string, msg Message) {
	var slow []*Client

	h.mu.RLock()

	for _, client := range h.clients {
		if !client.Watches(docID) {
			continue
		}

		if !client.Enqueue(msg) {
			slow = append(slow, client)
		}
	}

	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("dropping slow changes listener",
			slog.String("client", client.ID),
			slog.String("user", client.UserID),
		)

		h.Unregister(client)
		client.Drop(ErrorCodeSlowConsumer, "change queue overflow")
	}
}

// NotifyChange broadcasts a committed winner change.
func (h *Hub) NotifyChange(change db.Change) {
	h.Broadcast(change.ID, Message{Type: MessageTypeChange, Payload: change})
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Ensure Hub can receive database change notifications.
var _ db.Notifier = (*Hub)(nil)
