package client

import "time"

// Buffer is the optimistic, order-stable view of the team conversation.
// Entries are appended or replaced in place, never reordered. It is not
// safe for concurrent use; the owning session serializes access.
type Buffer struct {
	self    Participant
	nextSeq int64
	msgs    []Message
}

func NewBuffer(self Participant) *Buffer {
	return &Buffer{self: self}
}

// Seed loads the snapshot messages in server order. Called once before
// live events start flowing.
func (b *Buffer) Seed(msgs []Message) {
	b.msgs = append(b.msgs[:0], msgs...)
}

// AppendLocal inserts a pending message for the current user at the
// tail and returns its id. The caller is responsible for emitting the
// matching newMessage event.
func (b *Buffer) AppendLocal(content string, kind MessageKind, att *Attachment) PendingID {
	b.nextSeq++
	id := PendingID{Seq: b.nextSeq}
	b.msgs = append(b.msgs, Message{
		ID:         id,
		Sender:     b.self,
		Content:    content,
		Kind:       kind,
		Attachment: att,
		SentAt:     time.Now(),
	})
	return id
}

// Reconcile folds a server-confirmed message into the buffer. If it is
// the echo of one of our own pending sends (same sender, same content),
// the oldest such pending entry is replaced in place so the bubble keeps
// its position; otherwise the message is appended. Scanning oldest-first
// keeps two identical back-to-back sends matched to their echoes in
// order.
func (b *Buffer) Reconcile(m Message) {
	if _, ok := m.ID.(ConfirmedID); !ok {
		return
	}
	if m.Sender.ID == b.self.ID {
		for i := range b.msgs {
			if !b.msgs[i].Pending() {
				continue
			}
			if b.msgs[i].Content == m.Content {
				b.msgs[i] = m
				return
			}
		}
	}
	b.msgs = append(b.msgs, m)
}

// FailLocal removes the pending entry with the given id after a send
// failure, so no bubble is left stuck. Returns false when no such
// pending entry exists (already reconciled or never appended).
func (b *Buffer) FailLocal(id PendingID) bool {
	for i := range b.msgs {
		p, ok := b.msgs[i].ID.(PendingID)
		if !ok || p.Seq != id.Seq {
			continue
		}
		b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
		return true
	}
	return false
}

// MarkRead appends a read receipt to the confirmed message with the
// given server id. Re-applying the same reader is a no-op.
func (b *Buffer) MarkRead(serverID, readerID int64, at time.Time) bool {
	for i := range b.msgs {
		c, ok := b.msgs[i].ID.(ConfirmedID)
		if !ok || c.ID != serverID {
			continue
		}
		for _, r := range b.msgs[i].ReadBy {
			if r.UserID == readerID {
				return true
			}
		}
		b.msgs[i].ReadBy = append(b.msgs[i].ReadBy, ReadReceipt{UserID: readerID, ReadAt: at})
		return true
	}
	return false
}

// Messages returns a copy of the current sequence in display order.
func (b *Buffer) Messages() []Message {
	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

func (b *Buffer) Len() int {
	return len(b.msgs)
}
