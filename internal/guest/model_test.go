package guest

import (
	"testing"
	"time"
)

// TestNewSession tests guest session creation
func TestNewSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s, err := NewSession("Amina Rahman", "STU-1001", "01700000000", 2*time.Minute, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(s.SessionToken) != 64 {
		t.Errorf("Expected a 64-char hex token, got %d chars", len(s.SessionToken))
	}
	if !s.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("Expected expiry at now+2m, got %v", s.ExpiresAt)
	}

	other, _ := NewSession("Amina Rahman", "STU-1001", "", 2*time.Minute, now)
	if other.SessionToken == s.SessionToken {
		t.Error("Expected tokens to be unique per session")
	}
}

// TestNewSessionValidation tests required fields
func TestNewSessionValidation(t *testing.T) {
	now := time.Now()

	if _, err := NewSession("", "STU-1", "", time.Minute, now); err == nil {
		t.Error("Expected error for missing name")
	}
	if _, err := NewSession("Amina", "", "", time.Minute, now); err == nil {
		t.Error("Expected error for missing student ID")
	}
}

// TestIsExpired tests the hard expiry boundary
func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s, _ := NewSession("Amina", "STU-1", "", 2*time.Minute, now)

	if s.IsExpired(now) {
		t.Error("Expected fresh session to be valid")
	}
	if s.IsExpired(now.Add(2*time.Minute - time.Second)) {
		t.Error("Expected session to be valid just before expiry")
	}
	if !s.IsExpired(now.Add(2 * time.Minute)) {
		t.Error("Expected session to be expired exactly at expiry")
	}
	if !s.IsExpired(now.Add(time.Hour)) {
		t.Error("Expected session to be expired past expiry")
	}
}
