package chat

import (
	"log"
	"sync"

	"github.com/shinewash/teamchat/internal/storage"
)

// Hub fans channel events out to the connected members of each team.
// One logical conversation exists per team, so broadcast scope is the
// team's connection set; no per-conversation lookup is needed.
type Hub struct {
	DB *storage.DB

	register   chan *Client
	unregister chan *Client

	// teamID -> userID -> set of connections (multi-tab/multi-device)
	mu    sync.Mutex
	teams map[int64]map[int64]map[*Client]bool
}

func NewHub(db *storage.DB) *Hub {
	return &Hub{
		DB:         db,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		teams:      make(map[int64]map[int64]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.DB.Exec(`UPDATE users SET last_active=CURRENT_TIMESTAMP WHERE id=?`, c.UserID)

	h.mu.Lock()
	team := h.teams[c.TeamID]
	if team == nil {
		team = make(map[int64]map[*Client]bool)
		h.teams[c.TeamID] = team
	}
	first := len(team[c.UserID]) == 0
	if team[c.UserID] == nil {
		team[c.UserID] = make(map[*Client]bool)
	}
	team[c.UserID][c] = true

	// Catch the newcomer up on who is already connected, so their
	// presence view converges without a snapshot field for it.
	for uid, conns := range team {
		if uid == c.UserID || len(conns) == 0 {
			continue
		}
		var peer *Client
		for cl := range conns {
			peer = cl
			break
		}
		payload := MustEnvelope(EventUserOnline, PresencePayload{
			UserID: peer.UserID, UserName: peer.UserName, UserType: peer.UserType,
		})
		select {
		case c.Send <- payload:
		default:
		}
	}
	h.mu.Unlock()

	if first {
		h.BroadcastPresence(c.TeamID, PresencePayload{
			UserID: c.UserID, UserName: c.UserName, UserType: c.UserType,
		}, true)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	team := h.teams[c.TeamID]
	last := false
	if set, ok := team[c.UserID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.Send)
		}
		// A slow client may already have been dropped by sendToTeam;
		// the empty entry still needs to fold into an offline event.
		if len(set) == 0 {
			delete(team, c.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	if last {
		h.DB.Exec(`UPDATE users SET last_active=CURRENT_TIMESTAMP WHERE id=?`, c.UserID)
		h.BroadcastPresence(c.TeamID, PresencePayload{
			UserID: c.UserID, UserName: c.UserName, UserType: c.UserType,
		}, false)
	}
}

// sendToTeam delivers a payload to every connection in the team, minus
// exceptUser when it is >0. Slow or broken clients are dropped.
func (h *Hub) sendToTeam(teamID, exceptUser int64, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for uid, set := range h.teams[teamID] {
		if exceptUser > 0 && uid == exceptUser {
			continue
		}
		for c := range set {
			select {
			case c.Send <- payload:
			default:
				close(c.Send)
				delete(set, c)
				log.Printf("[hub] dropped slow client for user %d", uid)
			}
		}
	}
}

// BroadcastMessage fans a persisted message out to the whole team. The
// sender is included on purpose: their own client replaces its pending
// bubble with this echo.
func (h *Hub) BroadcastMessage(teamID int64, msg MessagePayload) {
	h.sendToTeam(teamID, 0, MustEnvelope(EventMessageReceived, msg))
}

func (h *Hub) BroadcastPresence(teamID int64, p PresencePayload, online bool) {
	event := EventUserOffline
	if online {
		event = EventUserOnline
	}
	h.sendToTeam(teamID, p.UserID, MustEnvelope(event, p))
}

func (h *Hub) BroadcastTyping(teamID int64, p PresencePayload, start bool) {
	event := EventUserStopTyping
	if start {
		event = EventUserTyping
	}
	h.sendToTeam(teamID, p.UserID, MustEnvelope(event, p))
}

// BroadcastRead goes to everyone, reader included, so every buffer in
// the team applies the same receipt.
func (h *Hub) BroadcastRead(teamID int64, r ReadPayload) {
	h.sendToTeam(teamID, 0, MustEnvelope(EventMessageRead, r))
}
