package chat

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

// Client is one authenticated socket belonging to a team member.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   int64
	UserName string
	UserType string
	TeamID   int64
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Event {
		case EventNewMessage:
			var p NewMessagePayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			c.handleNewMessage(p)
		case EventTyping, EventStopTyping:
			c.Hub.BroadcastTyping(c.TeamID, PresencePayload{
				UserID: c.UserID, UserName: c.UserName,
			}, env.Event == EventTyping)
		case EventMarkRead:
			var p MarkReadPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				continue
			}
			c.handleMarkRead(p.MessageID)
		case EventAuthenticate:
			// already authenticated at handshake; ignore repeats
		}
	}
}

// handleNewMessage persists the message, then echoes it to the whole
// team (sender included) with its durable id.
func (c *Client) handleNewMessage(p NewMessagePayload) {
	if p.Content == "" && p.FileURL == "" {
		return
	}
	if p.Type == "" {
		p.Type = "text"
	}
	sentAt := time.Now().UTC()
	mid, err := c.Hub.DB.InsertID(
		`INSERT INTO messages (team_id, sender_id, content, kind, file_url, file_name, file_size, mime_type, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.TeamID, c.UserID, p.Content, p.Type, p.FileURL, p.FileName, p.FileSize, p.MimeType,
		sentAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("[chat] insert message for user %d: %v", c.UserID, err)
		return
	}

	c.Hub.BroadcastMessage(c.TeamID, MessagePayload{
		ID:         mid,
		SenderID:   c.UserID,
		SenderName: c.UserName,
		SenderType: c.UserType,
		Content:    p.Content,
		Type:       p.Type,
		FileURL:    p.FileURL,
		FileName:   p.FileName,
		FileSize:   p.FileSize,
		MimeType:   p.MimeType,
		SentAt:     sentAt,
	})
}

func (c *Client) handleMarkRead(messageID int64) {
	readAt := time.Now().UTC()
	if _, err := c.Hub.DB.Exec(
		`INSERT INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?)
		 ON CONFLICT(message_id, user_id) DO NOTHING`,
		messageID, c.UserID, readAt.Format(time.RFC3339Nano),
	); err != nil {
		log.Printf("[chat] record read for message %d: %v", messageID, err)
		return
	}
	c.Hub.BroadcastRead(c.TeamID, ReadPayload{
		MessageID: messageID, ReadBy: c.UserID, ReadAt: readAt,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
