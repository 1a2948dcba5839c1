// Package guest manages short-lived unauthenticated identities used for
// check-in without a full account.
package guest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// CookieName is the HTTP-only cookie carrying the session token.
const CookieName = "guest-session"

// Session is a time-boxed identity proxy. Hard expiry, not renewable.
type Session struct {
	ID           types.ID  `json:"id"`
	Name         string    `json:"name"`
	StudentID    string    `json:"studentId"`
	Mobile       string    `json:"mobile,omitempty"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewSession creates a guest session with a fresh random token.
func NewSession(name, studentID, mobile string, ttl time.Duration, now time.Time) (*Session, error) {
	if name == "" || studentID == "" {
		return nil, errors.Validation("name and student ID are required", nil)
	}

	token, err := newToken()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to generate session token: %w", err))
	}

	return &Session{
		ID:           types.NewID(),
		Name:         name,
		StudentID:    studentID,
		Mobile:       mobile,
		SessionToken: token,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}, nil
}

// IsExpired reports whether the session is past its hard expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
