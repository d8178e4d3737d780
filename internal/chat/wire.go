package chat

import (
	"encoding/json"
	"time"
)

// Channel event names. Inbound is what clients emit, outbound is what
// the hub broadcasts.
const (
	EventAuthenticate = "authenticate"
	EventNewMessage   = "newMessage"
	EventTyping       = "typing"
	EventStopTyping   = "stopTyping"
	EventMarkRead     = "markRead"

	EventMessageReceived = "messageReceived"
	EventUserOnline      = "userOnline"
	EventUserOffline     = "userOffline"
	EventUserTyping      = "userTyping"
	EventUserStopTyping  = "userStopTyping"
	EventMessageRead     = "messageRead"
	EventAuthError       = "authError"
)

// Envelope is the wire framing for every channel event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MustEnvelope marshals an outbound event. Payloads are our own structs,
// so a marshal failure is a programming error.
func MustEnvelope(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		panic(err)
	}
	return raw
}

// MessagePayload is the full message object broadcast as messageReceived.
type MessagePayload struct {
	ID         int64         `json:"id"`
	SenderID   int64         `json:"senderId"`
	SenderName string        `json:"senderName"`
	SenderType string        `json:"senderType"`
	Content    string        `json:"content"`
	Type       string        `json:"messageType"`
	FileURL    string        `json:"fileUrl,omitempty"`
	FileName   string        `json:"fileName,omitempty"`
	FileSize   int64         `json:"fileSize,omitempty"`
	MimeType   string        `json:"mimeType,omitempty"`
	SentAt     time.Time     `json:"sentAt"`
	ReadBy     []ReadReceipt `json:"readBy,omitempty"`
}

type ReadReceipt struct {
	UserID int64     `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// PresencePayload doubles for userOnline/userOffline and the typing
// relays, which only need id and name.
type PresencePayload struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	UserType string `json:"userType,omitempty"`
}

type ReadPayload struct {
	MessageID int64     `json:"messageId"`
	ReadBy    int64     `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}

type AuthErrorPayload struct {
	Message string `json:"message"`
}

// Inbound payloads.

type AuthPayload struct {
	Token    string `json:"token"`
	UserType string `json:"userType"`
}

type NewMessagePayload struct {
	Content  string `json:"content"`
	Type     string `json:"messageType"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

type MarkReadPayload struct {
	MessageID int64 `json:"messageId"`
}
