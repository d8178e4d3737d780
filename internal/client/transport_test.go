package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsTestURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransportAuthenticateThenReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var env envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		require.Equal(t, "authenticate", env.Event)
		var auth authPayload
		require.NoError(t, json.Unmarshal(env.Data, &auth))
		assert.Equal(t, "tok123", auth.Token)
		assert.Equal(t, "worker", auth.UserType)

		data, _ := json.Marshal(wirePresence{UserID: 2, UserName: "Mina", UserType: "worker"})
		require.NoError(t, conn.WriteJSON(envelope{Event: "userOnline", Data: data}))
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), wsTestURL(srv))
	require.NoError(t, err)
	defer tr.Close()
	require.NoError(t, tr.Authenticate("tok123", "worker"))

	select {
	case ev := <-tr.Events():
		on, ok := ev.(UserOnline)
		require.True(t, ok)
		assert.Equal(t, int64(2), on.User.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestTransportDropsUnknownEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(envelope{Event: "bookingUpdated", Data: json.RawMessage(`{}`)}))
		data, _ := json.Marshal(struct {
			Message string `json:"message"`
		}{"bad token"})
		require.NoError(t, conn.WriteJSON(envelope{Event: "authError", Data: data}))
		// Hold the socket open until the client has read both frames.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), wsTestURL(srv))
	require.NoError(t, err)
	defer tr.Close()

	select {
	case ev := <-tr.Events():
		assert.Equal(t, AuthError{Message: "bad token"}, ev, "unknown event skipped, next one delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestTransportEventsCloseOnServerGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), wsTestURL(srv))
	require.NoError(t, err)
	defer tr.Close()

	select {
	case _, open := <-tr.Events():
		assert.False(t, open, "event stream closes when the socket drops")
	case <-time.After(2 * time.Second):
		t.Fatal("event stream never closed")
	}
}

func TestTransportEmitAfterClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tr, err := Dial(context.Background(), wsTestURL(srv))
	require.NoError(t, err)
	tr.Close()

	assert.Error(t, tr.Emit("typing", struct{}{}))
}
