package users

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/shinewash/teamchat/internal/auth"
	"github.com/shinewash/teamchat/internal/config"
	"github.com/shinewash/teamchat/internal/httpx"
	"github.com/shinewash/teamchat/internal/mail"
	"github.com/shinewash/teamchat/internal/storage"
	"github.com/shinewash/teamchat/internal/utils"
)

type Service struct {
	DB        *storage.DB
	JWTSecret string
	JWTTTLMin int
	Mail      mail.Sender
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type inviteReq struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func RegisterPublic(rg *gin.RouterGroup, db *storage.DB, cfg config.Config) {
	s := service(db, cfg)
	rg.POST("/login", s.login)
}

func RegisterProtected(rg *gin.RouterGroup, db *storage.DB, cfg config.Config) {
	s := service(db, cfg)
	rg.POST("/team/workers", s.invite)
}

func service(db *storage.DB, cfg config.Config) Service {
	return Service{
		DB:        db,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
		Mail: mail.Sender{
			APIKey: cfg.SendGridAPIKey,
			From:   cfg.SendGridFrom,
		},
	}
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	row := s.DB.QueryRow(`SELECT id, name, user_type, password_hash FROM users WHERE email=?`, req.Email)

	var id int64
	var name, utype, hash string
	if err := row.Scan(&id, &name, &utype, &hash); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.CheckPassword(hash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, id, utype, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "token generation failed")
		return
	}
	httpx.OK(c, gin.H{
		"token": tok,
		"user":  gin.H{"id": id, "name": name, "userType": utype},
	})
}

// invite adds a worker to the caller's team with a generated temporary
// password and mails it to them. Admin only.
func (s Service) invite(c *gin.Context) {
	if auth.UserType(c) != "admin" {
		httpx.Err(c, http.StatusForbidden, "admin only")
		return
	}
	adminID := auth.MustUserID(c)

	var req inviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			httpx.Err(c, http.StatusBadRequest, utils.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	var teamID int64
	var teamName string
	if err := s.DB.QueryRow(
		`SELECT t.id, t.name FROM teams t
		 JOIN team_members tm ON tm.team_id = t.id
		 WHERE tm.user_id = ?`, adminID,
	).Scan(&teamID, &teamName); err != nil {
		httpx.Err(c, http.StatusForbidden, "not a team member")
		return
	}

	var count int
	_ = s.DB.QueryRow(`SELECT COUNT(1) FROM users WHERE email=?`, req.Email).Scan(&count)
	if count > 0 {
		httpx.Err(c, http.StatusConflict, "email already registered")
		return
	}

	tempPassword := randomPassword()
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "hash failed")
		return
	}

	uid, err := s.DB.InsertID(
		`INSERT INTO users (name, email, password_hash, user_type) VALUES (?, ?, ?, 'worker')`,
		req.Name, req.Email, hash)
	if err != nil {
		httpx.Err(c, http.StatusBadRequest, "create worker failed")
		return
	}

	if _, err := s.DB.Exec(
		`INSERT INTO team_members (team_id, user_id) VALUES (?, ?)`, teamID, uid); err != nil {
		httpx.Err(c, http.StatusInternalServerError, "add to team failed")
		return
	}

	if err := s.Mail.SendInvite(req.Email, req.Name, teamName, tempPassword); err != nil {
		// Worker exists either way; the admin can resend credentials.
		slog.Warn("invite mail failed", "email", req.Email, "err", err)
	}

	httpx.OK(c, gin.H{"userId": uid})
}

func randomPassword() string {
	b := make([]byte, 9)
	rand.Read(b)
	return hex.EncodeToString(b)
}
