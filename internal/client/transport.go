package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	maxFrameSize = 32 * 1024
)

// Transport is one authenticated full-duplex channel to the chat server.
// It decodes inbound frames into Event variants and delivers them in
// arrival order on Events. There is no automatic reconnect: when the
// socket drops, Events is closed and the transport is done.
type Transport struct {
	conn   *websocket.Conn
	sendCh chan envelope
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Dial opens the channel. The caller must Authenticate immediately
// afterwards; the server drops sockets that send anything else first.
func Dial(ctx context.Context, wsURL string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial chat channel")
	}
	t := &Transport{
		conn:   conn,
		sendCh: make(chan envelope, 16),
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	go t.writeLoop()
	return t, nil
}

// Authenticate sends the authenticate event with the bearer token and
// role tag. An invalid token comes back as an AuthError event.
func (t *Transport) Authenticate(token, userType string) error {
	return t.Emit(evAuthenticate, authPayload{Token: token, UserType: userType})
}

// Emit is fire-and-forget: it queues the event for the write pump and
// assumes no acknowledgement beyond whatever the server chooses to echo.
func (t *Transport) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encode %s", event)
	}
	select {
	case <-t.done:
		return errors.New("transport closed")
	default:
	}
	select {
	case t.sendCh <- envelope{Event: event, Data: raw}:
		return nil
	case <-t.done:
		return errors.New("transport closed")
	}
}

// Events is the inbound event stream, closed when the socket is gone.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Close tears the channel down. Safe to call more than once.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) readLoop() {
	defer close(t.events)
	defer t.Close()
	t.conn.SetReadLimit(maxFrameSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPingHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return t.conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(writeWait))
	})
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Debug("chat: dropping malformed frame", "err", err)
			continue
		}
		ev, err := decodeEvent(env)
		if err != nil {
			slog.Debug("chat: dropping event", "event", env.Event, "err", err)
			continue
		}
		select {
		case t.events <- ev:
		case <-t.done:
			return
		}
	}
}

func (t *Transport) writeLoop() {
	for {
		select {
		case env := <-t.sendCh:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(env); err != nil {
				t.Close()
				return
			}
		case <-t.done:
			return
		}
	}
}
