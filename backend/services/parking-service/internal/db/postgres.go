package db

import (
	"database/sql"
	"time"

	libdb "smartpark/backend/libs/db"
)

// NewPostgres reuses shared DB initializer.
func NewPostgres(dsn string, maxOpenConns int, pingTimeout time.Duration) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn, libdb.PoolOptions{
		MaxOpenConns: maxOpenConns,
		PingTimeout:  pingTimeout,
	})
}
