// Package identity resolves the acting identity of a check-in or queue
// request: an authenticated user, a direct submission from the landing
// page, or a guest session cookie.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/guest"
	"github.com/rssabbirdev/smart-clinic/internal/shared/auth"
	"github.com/rssabbirdev/smart-clinic/internal/shared/clock"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// Kind distinguishes how the identity was established. The queue engine
// treats all kinds identically once resolved.
type Kind string

const (
	KindAuthenticated    Kind = "authenticated"
	KindDirectSubmission Kind = "directSubmission"
	KindGuest            Kind = "guest"
)

// Identity is the resolved actor of a check-in or queue action.
type Identity struct {
	Kind      Kind
	UserID    types.ID
	Name      string
	StudentID string
	Mobile    string
	Class     string
}

// Direct carries identity fields submitted in a request body.
type Direct struct {
	Name      string
	StudentID string
	Mobile    string
	Class     string
}

// GuestLookup is the slice of the guest store the resolver needs.
type GuestLookup interface {
	FindByToken(ctx context.Context, token string, now time.Time) (*guest.Session, error)
}

// Resolver resolves request identities. Credentials are never
// re-validated here; the auth middleware and the guest store own that.
type Resolver struct {
	guests GuestLookup
	clk    clock.Clock
}

// NewResolver creates a resolver. guests may be nil when guest login is
// not deployed.
func NewResolver(guests GuestLookup, clk clock.Clock) *Resolver {
	return &Resolver{guests: guests, clk: clk}
}

// Resolve determines the acting identity for the request, trying the
// authenticated session first, then the direct submission fields, then
// the guest cookie. Returns nil when no identity can be established.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, direct Direct) *Identity {
	if user := auth.GetUser(ctx); user != nil {
		return &Identity{
			Kind:      KindAuthenticated,
			UserID:    user.ID,
			Name:      user.Name,
			StudentID: user.StudentID,
			Mobile:    user.Email,
			Class:     user.Class,
		}
	}

	if direct.Name != "" && direct.StudentID != "" {
		return &Identity{
			Kind:      KindDirectSubmission,
			Name:      direct.Name,
			StudentID: direct.StudentID,
			Mobile:    direct.Mobile,
			Class:     direct.Class,
		}
	}

	if r.guests != nil {
		if cookie, err := req.Cookie(guest.CookieName); err == nil {
			session, err := r.guests.FindByToken(ctx, cookie.Value, r.clk.Now())
			if err == nil {
				return &Identity{
					Kind:      KindGuest,
					Name:      session.Name,
					StudentID: session.StudentID,
					Mobile:    session.Mobile,
				}
			}
		}
	}

	return nil
}
