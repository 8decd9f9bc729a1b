//go:build cgo_sqlite

package store

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

// sqliteDriver is the database/sql driver name registered by mattn/go-sqlite3.
const sqliteDriver = "sqlite3"
