package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultQueueSize bounds the messages buffered for one client.
	DefaultQueueSize = 64

	dropWriteTimeout = time.Second
)

// ErrInvalidPayload is returned by Receive when a message's payload does not
// match its type. The connection stays usable.
var ErrInvalidPayload = errors.New("invalid message payload")

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client represents a connected changes listener.
type Client struct {
	ID     string
	UserID string
	conn   Conn

	// writeMu serializes writes to conn.
	writeMu sync.Mutex

	mu     sync.Mutex
	docIDs map[string]struct{} // nil watches every document

	queue chan Message
	done  chan struct{}
	once  sync.Once
}

// NewClient creates a new client wrapper.
func NewClient(id, userID string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		queue:  make(chan Message, DefaultQueueSize),
		done:   make(chan struct{}),
	}
}

// Send writes a message to the client immediately.
func (c *Client) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(msg)
}

// SendError sends an error message to the client.
func (c *Client) SendError(code, message string) error {
	return c.Send(Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Enqueue buffers msg for the write loop. It never blocks and reports false
// when the queue is full or the client is closed.
func (c *Client) Enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.queue <- msg:
		return true
	default:
		return false
	}
}

// WriteLoop drains queued messages until ctx ends, the client closes or a
// write fails.
func (c *Client) WriteLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg := <-c.queue:
			if err := c.Send(msg); err != nil {
				return err
			}
		}
	}
}

// Receive reads a message from the client.
func (c *Client) Receive() (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.conn.ReadJSON(&raw); err != nil {
		return Message{}, err
	}

	msg := Message{Type: raw.Type}

	switch raw.Type {
	case MessageTypeSubscribe:
		var payload SubscribePayload
		if len(raw.Payload) > 0 {
			if err := json.Unmarshal(raw.Payload, &payload); err != nil {
				return Message{}, err
			}
		}

		msg.Payload = payload
	case MessageTypeUnsubscribe:
	case MessageTypeChange, MessageTypeError:
		msg.Payload = raw.Payload
	}

	return msg, nil
}

// writeDeadliner is implemented by connections that support write timeouts,
// such as *websocket.Conn.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Drop closes the client without ever waiting on its connection. When no
// write is in flight, an error frame is attempted first in the background.
func (c *Client) Drop(code, message string) {
	if !c.writeMu.TryLock() {
		_ = c.Close()

		return
	}

	go func() {
		if d, ok := c.conn.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(dropWriteTimeout))
		}

		_ = c.conn.WriteJSON(Message{
			Type:    MessageTypeError,
			Payload: ErrorPayload{Code: code, Message: message},
		})

		c.writeMu.Unlock()
		_ = c.Close()
	}()
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error

	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})

	return err
}

// Watches reports whether changes to docID should reach the client.
func (c *Client) Watches(docID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.docIDs == nil {
		return true
	}

	_, ok := c.docIDs[docID]

	return ok
}

// SetDocIDs narrows the client to ids. An empty list watches every document.
func (c *Client) SetDocIDs(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(ids) == 0 {
		c.docIDs = nil

		return
	}

	c.docIDs = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.docIDs[id] = struct{}{}
	}
}
