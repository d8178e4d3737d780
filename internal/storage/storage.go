package storage

import (
	"database/sql"
	"strconv"
	"strings"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB pairs the open connection with the driver it was opened for, so
// queries written once with ? placeholders run on both backends. lib/pq
// wants $n placeholders and has no LastInsertId; Rebind and InsertID
// cover that difference.
type DB struct {
	Conn   *sql.DB
	Driver string
}

// Rebind rewrites ? placeholders to $1..$n for postgres. Sqlite queries
// pass through untouched.
func (d *DB) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) Exec(query string, args ...any) (sql.Result, error) {
	return d.Conn.Exec(d.Rebind(query), args...)
}

func (d *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return d.Conn.Query(d.Rebind(query), args...)
}

func (d *DB) QueryRow(query string, args ...any) *sql.Row {
	return d.Conn.QueryRow(d.Rebind(query), args...)
}

// InsertID runs an INSERT and returns the generated id: LastInsertId on
// sqlite, RETURNING id on postgres.
func (d *DB) InsertID(query string, args ...any) (int64, error) {
	if d.Driver == DriverPostgres {
		var id int64
		err := d.Conn.QueryRow(d.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := d.Conn.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) Close() error {
	return d.Conn.Close()
}
