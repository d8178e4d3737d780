package storage

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestRebindSqlitePassthrough(t *testing.T) {
	d := &DB{Driver: DriverSqlite}
	q := `SELECT id FROM users WHERE email=? AND user_type=?`
	if got := d.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	d := &DB{Driver: DriverPostgres}
	got := d.Rebind(`INSERT INTO messages (team_id, sender_id, content) VALUES (?, ?, ?)`)
	want := `INSERT INTO messages (team_id, sender_id, content) VALUES ($1, $2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestRebindPostgresRepeatedBatch(t *testing.T) {
	d := &DB{Driver: DriverPostgres}
	got := d.Rebind(`INSERT INTO message_reads (message_id, user_id, read_at) VALUES (?, ?, ?),(?, ?, ?)`)
	want := `INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3),($4, $5, $6)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestInsertIDSqlite(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()
	d := &DB{Conn: conn, Driver: DriverSqlite}

	if _, err := d.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	id, err := d.InsertID(`INSERT INTO t (v) VALUES (?)`, "a")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
	id, err = d.InsertID(`INSERT INTO t (v) VALUES (?)`, "b")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 2 {
		t.Errorf("second id = %d, want 2", id)
	}
}
