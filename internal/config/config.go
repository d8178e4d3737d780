package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr          string
	JWTSecret     string
	JWTTTLMin     int
	StorageDriver string // "sqlite" or "postgres"
	SQLiteDSN     string
	PostgresDSN   string
	UploadDir     string
	// SendGrid config for worker invite mail
	SendGridAPIKey string
	SendGridFrom   string
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func MustLoad() Config {
	jwtttl, _ := strconv.Atoi(getenv("JWT_TTL_MIN", "1440"))

	cfg := Config{
		Addr:           getenv("HTTP_ADDR", ":8080"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		JWTTTLMin:      jwtttl,
		StorageDriver:  getenv("STORAGE_DRIVER", "sqlite"),
		SQLiteDSN:      getenv("SQLITE_DSN", "file:teamchat.db?_pragma=foreign_keys(ON)"),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
		SendGridFrom:   getenv("SENDGRID_FROM", ""),
	}
	return cfg
}
