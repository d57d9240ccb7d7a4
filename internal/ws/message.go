package ws

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeSubscribe   MessageType = "subscribe"   // Client narrows the feed to some documents
	MessageTypeUnsubscribe MessageType = "unsubscribe" // Client goes back to every document

	// Server to Client messages.
	MessageTypeChange MessageType = "change" // Server pushes a winner change
	MessageTypeError  MessageType = "error"  // Server reports an error
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// SubscribePayload lists the documents a client wants to hear about.
// An empty list means every document.
type SubscribePayload struct {
	DocIDs []string `json:"docIds"`
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInternalError  = "internal_error"
	ErrorCodeSlowConsumer   = "slow_consumer"
)
