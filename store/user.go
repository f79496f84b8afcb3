package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/jobclip/idgen"
)

// ErrBadCredentials is returned by Authenticate for any unknown username,
// inactive account, or wrong password.
var ErrBadCredentials = errors.New("store: invalid credentials")

// User is a clipper account.
type User struct {
	ID        string
	Username  string
	Status    string
	CreatedAt int64
}

// CreateUser adds an account with a bcrypt-hashed password and returns it.
func (s *Store) CreateUser(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("store: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:        idgen.Session(),
		Username:  username,
		Status:    "active",
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, status, created_at)
		VALUES (?, ?, ?, 'active', ?)`,
		u.ID, u.Username, string(hash), u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a username/password pair against the active
// accounts. All failure modes collapse to ErrBadCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	var hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, status, created_at
		FROM users WHERE username = ? AND status = 'active'`, username).
		Scan(&u.ID, &u.Username, &hash, &u.Status, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

// EnsureUser seeds an account if the username does not exist yet. Used at
// startup so a fresh install has a working login.
func (s *Store) EnsureUser(ctx context.Context, username, password string) (*User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, status, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.Status, &u.CreatedAt)
	if err == nil {
		return &u, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return s.CreateUser(ctx, username, password)
}
