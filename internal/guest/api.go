package guest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rssabbirdev/smart-clinic/internal/shared/clock"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
)

// Handler provides HTTP handlers for guest login
type Handler struct {
	store  Store
	clk    clock.Clock
	ttl    time.Duration
	secure bool
}

// NewHandler creates a new guest handler. secure controls the cookie's
// Secure attribute (on in production).
func NewHandler(store Store, clk clock.Clock, ttl time.Duration, secure bool) *Handler {
	return &Handler{store: store, clk: clk, ttl: ttl, secure: secure}
}

// Routes registers the guest login routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Login)
	r.Get("/", h.Validate)
	return r
}

type loginRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
	Mobile    string `json:"mobile,omitempty"`
}

// Login creates a guest session and sets the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validation("invalid request body", nil))
		return
	}

	session, err := NewSession(req.Name, req.StudentID, req.Mobile, h.ttl, h.clk.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Insert(r.Context(), session); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    session.SessionToken,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"sessionToken": session.SessionToken,
			"name":         session.Name,
			"studentId":    session.StudentID,
			"mobile":       session.Mobile,
			"expiresAt":    session.ExpiresAt,
		},
	})
}

// Validate returns the caller's guest session if the cookie is still valid
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		writeError(w, errors.Unauthorized("no guest session found"))
		return
	}

	session, err := h.store.FindByToken(r.Context(), cookie.Value, h.clk.Now())
	if err != nil {
		writeError(w, errors.Unauthorized("invalid or expired session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"name":         session.Name,
			"studentId":    session.StudentID,
			"mobile":       session.Mobile,
			"sessionToken": session.SessionToken,
			"expiresAt":    session.ExpiresAt,
		},
	})
}

// StartJanitor purges expired sessions on the given interval until the
// context is cancelled. Cleanup hygiene only; lookups already exclude
// expired rows.
func (h *Handler) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := h.store.Purge(ctx, h.clk.Now()); err == nil && n > 0 {
					fmt.Printf("purged %d expired guest sessions\n", n)
				}
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   appErr.Message,
			"code":    appErr.Code,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "internal server error"})
}
