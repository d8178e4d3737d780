package chat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/shinewash/teamchat/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for demo; tighten in prod.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const authWait = 10 * time.Second

// RegisterWS mounts GET /ws. The socket upgrades unauthenticated; the
// first frame must be an authenticate event carrying the bearer token,
// answered with authError and a close when the token does not hold.
func RegisterWS(rg *gin.RouterGroup, hub *Hub, jwtSecret string) {
	rg.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client, ok := handshake(conn, hub, jwtSecret)
		if !ok {
			conn.Close()
			return
		}

		hub.register <- client
		go client.writePump()
		go client.readPump()
	})
}

func handshake(conn *websocket.Conn, hub *Hub, jwtSecret string) (*Client, bool) {
	conn.SetReadDeadline(time.Now().Add(authWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event != EventAuthenticate {
		rejectAuth(conn, "expected authenticate")
		return nil, false
	}
	var p AuthPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		rejectAuth(conn, "malformed authenticate")
		return nil, false
	}

	claims, err := auth.ParseToken(jwtSecret, p.Token)
	if err != nil {
		rejectAuth(conn, "invalid or expired token")
		return nil, false
	}

	var name, userType string
	var teamID int64
	err = hub.DB.QueryRow(
		`SELECT u.name, u.user_type, tm.team_id
		 FROM users u JOIN team_members tm ON tm.user_id = u.id
		 WHERE u.id = ?`, claims.UserID,
	).Scan(&name, &userType, &teamID)
	if err != nil {
		rejectAuth(conn, "no team membership")
		return nil, false
	}

	return &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   claims.UserID,
		UserName: name,
		UserType: userType,
		TeamID:   teamID,
	}, true
}

func rejectAuth(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, MustEnvelope(EventAuthError, AuthErrorPayload{Message: msg}))
}
