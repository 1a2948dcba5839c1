package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/guest"
	"github.com/rssabbirdev/smart-clinic/internal/shared/auth"
	"github.com/rssabbirdev/smart-clinic/internal/shared/clock"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

type mockGuestLookup struct {
	sessions map[string]*guest.Session
}

func (m *mockGuestLookup) FindByToken(ctx context.Context, token string, now time.Time) (*guest.Session, error) {
	s, ok := m.sessions[token]
	if !ok || s.IsExpired(now) {
		return nil, errors.Unauthorized("invalid or expired session")
	}
	return s, nil
}

// TestResolveAuthenticatedWinsOverEverything tests the ladder's first rung
func TestResolveAuthenticatedWinsOverEverything(t *testing.T) {
	clk := &clock.Fixed{Time: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	session, _ := guest.NewSession("Guest Name", "GUEST-1", "", 2*time.Minute, clk.Time)
	guests := &mockGuestLookup{sessions: map[string]*guest.Session{session.SessionToken: session}}
	r := NewResolver(guests, clk)

	userID := types.NewID()
	req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
	req.AddCookie(&http.Cookie{Name: guest.CookieName, Value: session.SessionToken})
	ctx := auth.WithUser(req.Context(), &auth.User{
		ID: userID, Role: auth.RoleStudent, Name: "Amina Rahman", StudentID: "STU-1001",
	})

	who := r.Resolve(ctx, req, Direct{Name: "Body Name", StudentID: "BODY-1"})
	if who == nil {
		t.Fatal("Expected an identity")
	}
	if who.Kind != KindAuthenticated || who.UserID != userID || who.StudentID != "STU-1001" {
		t.Errorf("Expected the authenticated user to win, got %+v", who)
	}
}

// TestResolveDirectSubmission tests the body-field fallback
func TestResolveDirectSubmission(t *testing.T) {
	clk := &clock.Fixed{Time: time.Now()}
	r := NewResolver(nil, clk)

	req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
	who := r.Resolve(req.Context(), req, Direct{Name: "Amina Rahman", StudentID: "STU-1001", Class: "10-B"})

	if who == nil || who.Kind != KindDirectSubmission {
		t.Fatalf("Expected direct submission identity, got %+v", who)
	}
	if who.StudentID != "STU-1001" || who.Class != "10-B" {
		t.Errorf("Expected body fields carried over, got %+v", who)
	}

	// Both name and student ID are required.
	if got := r.Resolve(req.Context(), req, Direct{Name: "Amina Rahman"}); got != nil {
		t.Errorf("Expected nil without student ID, got %+v", got)
	}
	if got := r.Resolve(req.Context(), req, Direct{StudentID: "STU-1001"}); got != nil {
		t.Errorf("Expected nil without name, got %+v", got)
	}
}

// TestResolveGuestCookie tests the guest-session rung
func TestResolveGuestCookie(t *testing.T) {
	clk := &clock.Fixed{Time: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	session, _ := guest.NewSession("Guest Name", "GUEST-1", "01700000000", 2*time.Minute, clk.Time)
	guests := &mockGuestLookup{sessions: map[string]*guest.Session{session.SessionToken: session}}
	r := NewResolver(guests, clk)

	req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
	req.AddCookie(&http.Cookie{Name: guest.CookieName, Value: session.SessionToken})

	who := r.Resolve(req.Context(), req, Direct{})
	if who == nil || who.Kind != KindGuest {
		t.Fatalf("Expected guest identity, got %+v", who)
	}
	if who.StudentID != "GUEST-1" || who.Name != "Guest Name" {
		t.Errorf("Expected session fields, got %+v", who)
	}

	// Expired session resolves to nothing.
	clk.Advance(3 * time.Minute)
	if got := r.Resolve(req.Context(), req, Direct{}); got != nil {
		t.Errorf("Expected nil for an expired session, got %+v", got)
	}
}

// TestResolveNoIdentity tests the anonymous case
func TestResolveNoIdentity(t *testing.T) {
	clk := &clock.Fixed{Time: time.Now()}
	r := NewResolver(nil, clk)

	req := httptest.NewRequest(http.MethodGet, "/check-in", nil)
	if got := r.Resolve(req.Context(), req, Direct{}); got != nil {
		t.Errorf("Expected nil identity, got %+v", got)
	}
}
