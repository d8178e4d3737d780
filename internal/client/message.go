package client

import "time"

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// MessageID is a closed two-case identifier: a message is either still
// pending (known only by a session-local sequence number) or confirmed
// (carrying the durable server id). Reconciliation is a type switch on
// this, not a string-prefix check.
type MessageID interface {
	isMessageID()
}

// PendingID identifies an optimistic message that the server has not
// echoed back yet. Seq is unique within one session.
type PendingID struct {
	Seq int64
}

// ConfirmedID identifies a durable, server-assigned message.
type ConfirmedID struct {
	ID int64
}

func (PendingID) isMessageID()   {}
func (ConfirmedID) isMessageID() {}

// Participant is a member of the team channel.
type Participant struct {
	ID   int64
	Name string
	Role string // "worker" or "admin"
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL      string
	Name     string
	Size     int64
	MimeType string
}

// ReadReceipt records that one participant has read a message.
type ReadReceipt struct {
	UserID int64
	ReadAt time.Time
}

// Message is one entry in the conversation. Once confirmed it is
// immutable except for accumulating read receipts.
type Message struct {
	ID         MessageID
	Sender     Participant
	Content    string
	Kind       MessageKind
	Attachment *Attachment
	SentAt     time.Time
	ReadBy     []ReadReceipt
}

// Pending reports whether the message is still awaiting its server echo.
func (m Message) Pending() bool {
	_, ok := m.ID.(PendingID)
	return ok
}
