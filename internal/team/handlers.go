package team

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/shinewash/teamchat/internal/auth"
	"github.com/shinewash/teamchat/internal/chat"
	"github.com/shinewash/teamchat/internal/httpx"
	"github.com/shinewash/teamchat/internal/storage"
	"github.com/shinewash/teamchat/internal/utils"
)

const snapshotLimit = 200

type Service struct {
	DB  *storage.DB
	Hub *chat.Hub
}

type sendReq struct {
	Content  string `json:"content"`
	Type     string `json:"messageType" binding:"omitempty,oneof=text image file"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

type readReq struct {
	MessageIDs []int64 `json:"messageIds" binding:"required"`
}

func Register(rg *gin.RouterGroup, db *storage.DB, hub *chat.Hub) {
	s := Service{DB: db, Hub: hub}
	rg.GET("/chat", s.snapshot)
	rg.POST("/messages", s.send)
	rg.POST("/messages/read", s.markRead)
}

// membership resolves the caller's team; every endpoint here is scoped
// to it.
func (s Service) membership(uid int64) (teamID int64, teamName string, err error) {
	err = s.DB.QueryRow(
		`SELECT t.id, t.name FROM teams t
		 JOIN team_members tm ON tm.team_id = t.id
		 WHERE tm.user_id = ?`, uid,
	).Scan(&teamID, &teamName)
	return
}

// snapshot returns the whole conversation state the client seeds from:
// team channel metadata, roster, message history with read receipts,
// and the caller's own identity.
func (s Service) snapshot(c *gin.Context) {
	uid := auth.MustUserID(c)

	teamID, teamName, err := s.membership(uid)
	if err != nil {
		httpx.Err(c, http.StatusForbidden, "not a team member")
		return
	}

	var me gin.H
	{
		var id int64
		var name, utype string
		if err := s.DB.QueryRow(`SELECT id, name, user_type FROM users WHERE id=?`, uid).
			Scan(&id, &name, &utype); err != nil {
			httpx.Err(c, http.StatusInternalServerError, "database error")
			return
		}
		me = gin.H{"id": id, "name": name, "userType": utype}
	}

	participants := []gin.H{}
	rows, err := s.DB.Query(
		`SELECT u.id, u.name, u.user_type FROM users u
		 JOIN team_members tm ON tm.user_id = u.id
		 WHERE tm.team_id = ? ORDER BY u.id`, teamID)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	for rows.Next() {
		var id int64
		var name, utype string
		if err := rows.Scan(&id, &name, &utype); err != nil {
			continue
		}
		participants = append(participants, gin.H{"id": id, "name": name, "userType": utype})
	}
	rows.Close()

	messages, err := s.loadMessages(teamID)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}

	httpx.OK(c, gin.H{
		"chat": gin.H{
			"id":           teamID,
			"name":         teamName,
			"participants": participants,
			"messages":     messages,
		},
		"currentUser": me,
	})
}

// loadMessages returns the newest snapshotLimit messages in insertion
// order, each with its accumulated read receipts.
func (s Service) loadMessages(teamID int64) ([]chat.MessagePayload, error) {
	rows, err := s.DB.Query(
		`SELECT m.id, m.sender_id, u.name, u.user_type, m.content, m.kind,
		        m.file_url, m.file_name, m.file_size, m.mime_type, m.sent_at
		 FROM (SELECT * FROM messages WHERE team_id=? ORDER BY id DESC LIMIT ?) m
		 JOIN users u ON m.sender_id = u.id
		 ORDER BY m.id ASC`, teamID, snapshotLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []chat.MessagePayload{}
	index := map[int64]int{}
	for rows.Next() {
		var m chat.MessagePayload
		var sentAt string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderType,
			&m.Content, &m.Type, &m.FileURL, &m.FileName, &m.FileSize,
			&m.MimeType, &sentAt); err != nil {
			fmt.Printf("snapshot: failed to scan message row: %v\n", err)
			continue
		}
		m.SentAt = utils.ParseTime(sentAt)
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reads, err := s.DB.Query(
		`SELECT r.message_id, r.user_id, r.read_at FROM message_reads r
		 JOIN messages m ON m.id = r.message_id
		 WHERE m.team_id = ?`, teamID)
	if err != nil {
		return nil, err
	}
	defer reads.Close()
	for reads.Next() {
		var mid, uid int64
		var at string
		if err := reads.Scan(&mid, &uid, &at); err != nil {
			continue
		}
		if i, ok := index[mid]; ok {
			msgs[i].ReadBy = append(msgs[i].ReadBy, chat.ReadReceipt{
				UserID: uid, ReadAt: utils.ParseTime(at),
			})
		}
	}
	return msgs, reads.Err()
}

// send is the HTTP path for posting a message; the channel newMessage
// event is the other. Both persist first and fan out through the hub.
func (s Service) send(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" && req.FileURL == "" {
		httpx.Err(c, http.StatusBadRequest, "empty message")
		return
	}
	if req.Type == "" {
		req.Type = "text"
	}

	teamID, _, err := s.membership(uid)
	if err != nil {
		httpx.Err(c, http.StatusForbidden, "not a team member")
		return
	}

	var senderName, senderType string
	_ = s.DB.QueryRow(`SELECT name, user_type FROM users WHERE id=?`, uid).Scan(&senderName, &senderType)

	sentAt := time.Now().UTC()
	mid, err := s.DB.InsertID(
		`INSERT INTO messages (team_id, sender_id, content, kind, file_url, file_name, file_size, mime_type, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		teamID, uid, req.Content, req.Type, req.FileURL, req.FileName, req.FileSize, req.MimeType,
		sentAt.Format(time.RFC3339Nano))
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "insert failed")
		return
	}

	s.Hub.BroadcastMessage(teamID, chat.MessagePayload{
		ID:         mid,
		SenderID:   uid,
		SenderName: senderName,
		SenderType: senderType,
		Content:    req.Content,
		Type:       req.Type,
		FileURL:    req.FileURL,
		FileName:   req.FileName,
		FileSize:   req.FileSize,
		MimeType:   req.MimeType,
		SentAt:     sentAt,
	})

	httpx.OK(c, gin.H{"messageId": mid})
}

func (s Service) markRead(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req readReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.MessageIDs) == 0 {
		httpx.OK(c, gin.H{"message": "no messages to mark as read"})
		return
	}

	teamID, _, err := s.membership(uid)
	if err != nil {
		httpx.Err(c, http.StatusForbidden, "not a team member")
		return
	}

	readAt := time.Now().UTC()
	values := strings.TrimSuffix(strings.Repeat("(?, ?, ?),", len(req.MessageIDs)), ",")
	args := make([]interface{}, 0, len(req.MessageIDs)*3)
	for _, mid := range req.MessageIDs {
		args = append(args, mid, uid, readAt.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(
		`INSERT INTO message_reads (message_id, user_id, read_at) VALUES %s
		 ON CONFLICT(message_id, user_id) DO NOTHING`, values)
	if _, err := s.DB.Exec(query, args...); err != nil {
		httpx.Err(c, http.StatusBadRequest, "db error")
		return
	}

	for _, mid := range req.MessageIDs {
		s.Hub.BroadcastRead(teamID, chat.ReadPayload{
			MessageID: mid, ReadBy: uid, ReadAt: readAt,
		})
	}

	httpx.OK(c, gin.H{"message": "marked as read"})
}
