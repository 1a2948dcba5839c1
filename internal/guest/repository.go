package guest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
)

// Store persists guest sessions. Expired sessions are treated as
// non-existent by lookups; Purge removes them for hygiene.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	FindByToken(ctx context.Context, token string, now time.Time) (*Session, error)
	Purge(ctx context.Context, now time.Time) (int, error)
}

// Repository provides database operations for guest sessions
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new guest session repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new guest session
func (r *Repository) Insert(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO guest_sessions (id, name, student_id, mobile, session_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var mobile *string
	if s.Mobile != "" {
		mobile = &s.Mobile
	}

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Name, s.StudentID, mobile, s.SessionToken, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable(err)
	}

	return nil
}

// FindByToken returns the unexpired session for the token, or NOT_FOUND.
func (r *Repository) FindByToken(ctx context.Context, token string, now time.Time) (*Session, error) {
	query := `
		SELECT id, name, student_id, mobile, session_token, expires_at, created_at
		FROM guest_sessions
		WHERE session_token = $1 AND expires_at > $2`

	s := &Session{}
	var mobile *string
	err := r.pool.QueryRow(ctx, query, token, now).Scan(
		&s.ID, &s.Name, &s.StudentID, &mobile, &s.SessionToken, &s.ExpiresAt, &s.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("guest session", token)
	}
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}

	if mobile != nil {
		s.Mobile = *mobile
	}
	return s, nil
}

// Purge deletes expired sessions and returns how many were removed.
func (r *Repository) Purge(ctx context.Context, now time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM guest_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, errors.StoreUnavailable(err)
	}
	return int(result.RowsAffected()), nil
}
