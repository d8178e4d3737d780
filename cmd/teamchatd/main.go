package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/shinewash/teamchat/internal/auth"
	"github.com/shinewash/teamchat/internal/chat"
	"github.com/shinewash/teamchat/internal/config"
	"github.com/shinewash/teamchat/internal/storage"
	"github.com/shinewash/teamchat/internal/storage/postgres"
	"github.com/shinewash/teamchat/internal/storage/sqlite"
	"github.com/shinewash/teamchat/internal/team"
	"github.com/shinewash/teamchat/internal/upload"
	"github.com/shinewash/teamchat/internal/users"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	seedTeam := flag.String("seed-team", "", "create a team with this name plus an admin account, then exit")
	adminName := flag.String("admin-name", "Admin", "admin display name for -seed-team")
	adminEmail := flag.String("admin-email", "", "admin email for -seed-team")
	adminPassword := flag.String("admin-password", "", "admin password for -seed-team")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using process environment")
	}
	cfg := config.MustLoad()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, schema, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer db.Close()

	if *migrate {
		if err := runMigrate(cfg, db, schema); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		slog.Info("migration completed")
		return
	}

	if *seedTeam != "" {
		if *adminEmail == "" || *adminPassword == "" {
			log.Fatal("-seed-team needs -admin-email and -admin-password")
		}
		if err := seed(db, *seedTeam, *adminName, *adminEmail, *adminPassword); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		slog.Info("team created", "team", *seedTeam, "admin", *adminEmail)
		return
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("create upload dir: %v", err)
	}

	hub := chat.NewHub(db)
	go hub.Run()

	r := gin.Default()

	public := r.Group("/api")
	users.RegisterPublic(public, db, cfg)

	protected := r.Group("/api")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	team.Register(protected, db, hub)
	upload.Register(protected, cfg.UploadDir)
	users.RegisterProtected(protected, db, cfg)

	chat.RegisterWS(r.Group("/"), hub, cfg.JWTSecret)
	r.Static("/uploads", cfg.UploadDir)

	slog.Info("teamchatd listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func openStorage(cfg config.Config) (*storage.DB, string, error) {
	if cfg.StorageDriver == "postgres" {
		pg, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, "", err
		}
		return &storage.DB{Conn: pg.Db, Driver: storage.DriverPostgres}, "sql/schema_postgres.sql", nil
	}
	sq, err := sqlite.New(cfg.SQLiteDSN)
	if err != nil {
		return nil, "", err
	}
	return &storage.DB{Conn: sq.Db, Driver: storage.DriverSqlite}, "sql/schema.sql", nil
}

func runMigrate(cfg config.Config, db *storage.DB, schema string) error {
	if cfg.StorageDriver == "postgres" {
		return (&postgres.Postgres{Db: db.Conn}).Migrate(schema)
	}
	return (&sqlite.Sqlite{Db: db.Conn}).Migrate(schema)
}

func seed(db *storage.DB, teamName, name, email, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	teamID, err := db.InsertID(`INSERT INTO teams (name) VALUES (?)`, teamName)
	if err != nil {
		return err
	}
	uid, err := db.InsertID(
		`INSERT INTO users (name, email, password_hash, user_type) VALUES (?, ?, ?, 'admin')`,
		name, email, hash)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO team_members (team_id, user_id) VALUES (?, ?)`, teamID, uid)
	return err
}
