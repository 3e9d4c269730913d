package database

import (
	"database/sql"
)

type PgMessagingRepository struct {
	conn *sql.DB
}

func NewPgMessagingRepository(dsn string) (*PgMessagingRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgMessagingRepository{conn: db}, nil
}

func (db *PgMessagingRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgMessagingRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
