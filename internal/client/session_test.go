package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer stands in for the teamchatd snapshot + channel endpoints.
// It echoes newMessage back as messageReceived (sender = current user),
// relays markRead as messageRead, and can inject arbitrary events.
type fakeServer struct {
	srv    *httptest.Server
	nextID int64

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{nextID: 100}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"chat": {
				"id": 1, "name": "Bay Team",
				"participants": [
					{"id": 1, "name": "Ravi", "userType": "worker"},
					{"id": 2, "name": "Mina", "userType": "worker"}
				],
				"messages": [
					{"id": 10, "senderId": 2, "senderName": "Mina", "content": "morning", "messageType": "text", "sentAt": "2026-03-01T08:00:00Z"}
				]
			},
			"currentUser": {"id": 1, "name": "Ravi", "userType": "worker"}
		}`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conn = conn
		fs.mu.Unlock()
		fs.serve(conn)
	})
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if json.Unmarshal(raw, &env) != nil {
			continue
		}
		switch env.Event {
		case "authenticate":
			// accepted silently
		case "newMessage":
			var p newMessagePayload
			if json.Unmarshal(env.Data, &p) != nil {
				continue
			}
			wm := wireMessage{
				ID:         atomic.AddInt64(&fs.nextID, 1),
				SenderID:   1,
				SenderName: "Ravi",
				SenderType: "worker",
				Content:    p.Content,
				Type:       p.Type,
				FileURL:    p.FileURL,
				FileName:   p.FileName,
				FileSize:   p.FileSize,
				MimeType:   p.MimeType,
				SentAt:     time.Now().UTC(),
			}
			fs.push("messageReceived", wm)
		case "markRead":
			var p markReadPayload
			if json.Unmarshal(env.Data, &p) != nil {
				continue
			}
			fs.push("messageRead", wireReadEvent{MessageID: p.MessageID, ReadBy: 2, ReadAt: time.Now().UTC()})
		}
	}
}

func (fs *fakeServer) push(event string, payload any) {
	// The channel may still be mid-handshake when a test injects its
	// first event; wait for the connection to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		fs.mu.Lock()
		conn := fs.conn
		fs.mu.Unlock()
		if conn != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.conn == nil {
		return
	}
	data, _ := json.Marshal(payload)
	fs.conn.WriteJSON(envelope{Event: event, Data: data})
}

func openTestSession(t *testing.T, fs *fakeServer, cfg Config) *Session {
	cfg.BaseURL = fs.srv.URL
	if cfg.Token == "" {
		cfg.Token = "tok123"
	}
	if cfg.UserType == "" {
		cfg.UserType = "worker"
	}
	s := NewSession(cfg)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestSessionSnapshotSeedsBuffer(t *testing.T) {
	fs := newFakeServer(t)
	s := openTestSession(t, fs, Config{})

	assert.Equal(t, "Bay Team", s.ChatName())
	assert.Equal(t, int64(1), s.Self().ID)
	require.Equal(t, 2, len(s.Roster()))

	msgs := s.Messages()
	require.Equal(t, 1, len(msgs))
	assert.Equal(t, ConfirmedID{ID: 10}, msgs[0].ID)
}

func TestSessionOptimisticSendReconciled(t *testing.T) {
	fs := newFakeServer(t)
	echoed := make(chan Message, 1)
	s := openTestSession(t, fs, Config{OnMessage: func(m Message) { echoed <- m }})

	require.NoError(t, s.SendText("starting bay 3"))

	// Optimistic bubble is visible immediately.
	msgs := s.Messages()
	require.Equal(t, 2, len(msgs))
	assert.True(t, msgs[1].Pending())

	select {
	case <-echoed:
	case <-time.After(2 * time.Second):
		t.Fatal("no echo from server")
	}

	msgs = s.Messages()
	require.Equal(t, 2, len(msgs), "echo replaced the bubble, no duplicate")
	assert.False(t, msgs[1].Pending())
	assert.Equal(t, ConfirmedID{ID: 101}, msgs[1].ID)
	assert.Equal(t, "starting bay 3", msgs[1].Content)
}

func TestSessionPresenceEvents(t *testing.T) {
	fs := newFakeServer(t)
	s := openTestSession(t, fs, Config{})

	fs.push("userOnline", wirePresence{UserID: 2, UserName: "Mina", UserType: "worker"})
	require.Eventually(t, func() bool { return s.OnlineCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	fs.push("userOnline", wirePresence{UserID: 2, UserName: "Mina", UserType: "worker"})
	fs.push("userOffline", wirePresence{UserID: 2, UserName: "Mina"})
	require.Eventually(t, func() bool { return s.OnlineCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionTypingEvents(t *testing.T) {
	fs := newFakeServer(t)
	s := openTestSession(t, fs, Config{})

	fs.push("userTyping", wirePresence{UserID: 2, UserName: "Mina"})
	require.Eventually(t, func() bool {
		names := s.TypingNames()
		return len(names) == 1 && names[0] == "Mina"
	}, 2*time.Second, 10*time.Millisecond)

	fs.push("userStopTyping", wirePresence{UserID: 2, UserName: "Mina"})
	require.Eventually(t, func() bool { return len(s.TypingNames()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionReadReceiptRoundTrip(t *testing.T) {
	fs := newFakeServer(t)
	s := openTestSession(t, fs, Config{})

	require.NoError(t, s.MarkRead(10))
	require.Eventually(t, func() bool {
		msgs := s.Messages()
		return len(msgs[0].ReadBy) == 1 && msgs[0].ReadBy[0].UserID == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionAuthErrorIsFatalNotice(t *testing.T) {
	fs := newFakeServer(t)
	notices := make(chan Notice, 1)
	s := openTestSession(t, fs, Config{OnNotice: func(n Notice) { notices <- n }})

	fs.push("authError", struct {
		Message string `json:"message"`
	}{"token expired"})

	select {
	case n := <-notices:
		assert.Equal(t, NoticeAuthError, n.Kind)
		assert.Equal(t, "token expired", n.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("auth error never surfaced")
	}

	require.Eventually(t, func() bool { return s.SendText("x") != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionDisconnectNotice(t *testing.T) {
	fs := newFakeServer(t)
	notices := make(chan Notice, 1)
	openTestSession(t, fs, Config{OnNotice: func(n Notice) { notices <- n }})

	fs.mu.Lock()
	fs.conn.Close()
	fs.mu.Unlock()

	select {
	case n := <-notices:
		assert.Equal(t, NoticeDisconnected, n.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect never surfaced")
	}
}

func TestSendAttachmentBeforeOpen(t *testing.T) {
	s := NewSession(Config{BaseURL: "http://127.0.0.1:0", Token: "tok123"})
	err := s.SendAttachment(context.Background(), "bay2.png", 8, strings.NewReader("pngbytes"))
	require.Error(t, err)
}

func TestSessionSnapshotFailure(t *testing.T) {
	fs := newFakeServer(t)
	s := NewSession(Config{BaseURL: fs.srv.URL, Token: "wrong", UserType: "worker"})
	err := s.Open(context.Background())
	require.Error(t, err)
}
