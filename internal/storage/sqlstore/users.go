package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zhouzirui/prepx/backend/internal/model/user"
)

// UserStore implements user.Store.
type UserStore struct {
	db *DB
}

var _ user.Store = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u user.User) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, user.NormalizeEmail(u.Email), string(u.PasswordHash), formatTime(u.CreatedAt),
	)
	if isUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.queryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		user.NormalizeEmail(email),
	)
	return scanUser(row)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	row := s.db.queryRow(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

func (s *UserStore) CreateSession(ctx context.Context, session user.Session) error {
	_, err := s.db.exec(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		session.Token, session.UserID, formatTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *UserStore) FindSession(ctx context.Context, token string) (user.Session, error) {
	var (
		session user.Session
		expires string
	)
	err := s.db.queryRow(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&session.Token, &session.UserID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Session{}, user.ErrSessionNotFound
	}
	if err != nil {
		return user.Session{}, fmt.Errorf("query session: %w", err)
	}
	if session.ExpiresAt, err = parseTime(expires); err != nil {
		return user.Session{}, fmt.Errorf("parse session expiry: %w", err)
	}
	return session, nil
}

func (s *UserStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.exec(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (user.User, error) {
	var (
		u       user.User
		hash    string
		created string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("query user: %w", err)
	}
	u.PasswordHash = []byte(hash)
	if u.CreatedAt, err = parseTime(created); err != nil {
		return user.User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return u, nil
}
