// Package store persists job records and clipper accounts to SQLite.
//
// Every record query is scoped to an owner: a store caller can only see and
// mutate records belonging to the account it authenticated as.
package store

import (
	"database/sql"

	"github.com/hazyhaar/jobclip/dbopen"
)

// Store wraps the clipper database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection. The
// connection must have foreign keys enabled and the schema applied.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens (creating if needed) the clipper database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
