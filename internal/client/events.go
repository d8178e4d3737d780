package client

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Channel event names. Outbound names are what the client emits,
// inbound names are what the server broadcasts.
const (
	evAuthenticate = "authenticate"
	evNewMessage   = "newMessage"
	evTyping       = "typing"
	evStopTyping   = "stopTyping"
	evMarkRead     = "markRead"

	evMessageReceived = "messageReceived"
	evUserOnline      = "userOnline"
	evUserOffline     = "userOffline"
	evUserTyping      = "userTyping"
	evUserStopTyping  = "userStopTyping"
	evMessageRead     = "messageRead"
	evAuthError       = "authError"
)

// envelope is the wire framing for every channel event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is the closed set of inbound channel events. Sessions dispatch
// on it with an exhaustive type switch; an event name outside the set
// fails to decode instead of silently growing the protocol.
type Event interface {
	isEvent()
}

type MessageReceived struct {
	Message Message
}

type UserOnline struct {
	User Participant
}

type UserOffline struct {
	UserID   int64
	UserName string
}

type UserTyping struct {
	UserID   int64
	UserName string
}

type UserStopTyping struct {
	UserID   int64
	UserName string
}

type MessageRead struct {
	MessageID int64
	ReadBy    int64
	ReadAt    time.Time
}

type AuthError struct {
	Message string
}

func (MessageReceived) isEvent() {}
func (UserOnline) isEvent()      {}
func (UserOffline) isEvent()     {}
func (UserTyping) isEvent()      {}
func (UserStopTyping) isEvent()  {}
func (MessageRead) isEvent()     {}
func (AuthError) isEvent()       {}

var errUnknownEvent = errors.New("unknown channel event")

// wireMessage is the JSON shape of a full message as the server sends it.
type wireMessage struct {
	ID         int64      `json:"id"`
	SenderID   int64      `json:"senderId"`
	SenderName string     `json:"senderName"`
	SenderType string     `json:"senderType"`
	Content    string     `json:"content"`
	Type       string     `json:"messageType"`
	FileURL    string     `json:"fileUrl,omitempty"`
	FileName   string     `json:"fileName,omitempty"`
	FileSize   int64      `json:"fileSize,omitempty"`
	MimeType   string     `json:"mimeType,omitempty"`
	SentAt     time.Time  `json:"sentAt"`
	ReadBy     []wireRead `json:"readBy,omitempty"`
}

type wireRead struct {
	UserID int64     `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

type wirePresence struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	UserType string `json:"userType"`
}

type wireReadEvent struct {
	MessageID int64     `json:"messageId"`
	ReadBy    int64     `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}

type authPayload struct {
	Token    string `json:"token"`
	UserType string `json:"userType"`
}

type newMessagePayload struct {
	Content  string `json:"content"`
	Type     string `json:"messageType"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type markReadPayload struct {
	MessageID int64 `json:"messageId"`
}

func (w wireMessage) toMessage() Message {
	m := Message{
		ID:      ConfirmedID{ID: w.ID},
		Sender:  Participant{ID: w.SenderID, Name: w.SenderName, Role: w.SenderType},
		Content: w.Content,
		Kind:    MessageKind(w.Type),
		SentAt:  w.SentAt,
	}
	if m.Kind == "" {
		m.Kind = KindText
	}
	if w.FileURL != "" {
		m.Attachment = &Attachment{
			URL:      w.FileURL,
			Name:     w.FileName,
			Size:     w.FileSize,
			MimeType: w.MimeType,
		}
	}
	for _, r := range w.ReadBy {
		m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	return m
}

// decodeEvent maps one inbound envelope onto its Event variant.
func decodeEvent(env envelope) (Event, error) {
	switch env.Event {
	case evMessageReceived:
		var w wireMessage
		if err := json.Unmarshal(env.Data, &w); err != nil {
			return nil, errors.Wrap(err, "decode messageReceived")
		}
		return MessageReceived{Message: w.toMessage()}, nil
	case evUserOnline:
		var p wirePresence
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, errors.Wrap(err, "decode userOnline")
		}
		return UserOnline{User: Participant{ID: p.UserID, Name: p.UserName, Role: p.UserType}}, nil
	case evUserOffline:
		var p wirePresence
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, errors.Wrap(err, "decode userOffline")
		}
		return UserOffline{UserID: p.UserID, UserName: p.UserName}, nil
	case evUserTyping:
		var p wirePresence
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, errors.Wrap(err, "decode userTyping")
		}
		return UserTyping{UserID: p.UserID, UserName: p.UserName}, nil
	case evUserStopTyping:
		var p wirePresence
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, errors.Wrap(err, "decode userStopTyping")
		}
		return UserStopTyping{UserID: p.UserID, UserName: p.UserName}, nil
	case evMessageRead:
		var r wireReadEvent
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return nil, errors.Wrap(err, "decode messageRead")
		}
		return MessageRead{MessageID: r.MessageID, ReadBy: r.ReadBy, ReadAt: r.ReadAt}, nil
	case evAuthError:
		var e struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, errors.Wrap(err, "decode authError")
		}
		return AuthError{Message: e.Message}, nil
	}
	return nil, errors.Wrapf(errUnknownEvent, "%q", env.Event)
}
