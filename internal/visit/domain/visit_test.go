package domain

import (
	"testing"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

func validCheckIn() CheckIn {
	return CheckIn{
		StudentID: "STU-1001",
		Name:      "Amina Rahman",
		Class:     "10-B",
		Symptoms:  []string{"fever", "headache"},
		Severity:  SeverityMedium,
	}
}

// TestNewVisit tests creating a visit from a check-in
func TestNewVisit(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	v, err := NewVisit(validCheckIn(), 2, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if v.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if v.QueueStatus != StatusWaiting {
		t.Errorf("Expected status %s, got %s", StatusWaiting, v.QueueStatus)
	}
	if v.Priority != PriorityMedium {
		t.Errorf("Expected priority %s, got %s", PriorityMedium, v.Priority)
	}
	if v.EstimatedWaitTime != 19 {
		t.Errorf("Expected wait 19, got %d", v.EstimatedWaitTime)
	}
	if !v.CreatedAt.Equal(now) || !v.UpdatedAt.Equal(now) {
		t.Error("Expected timestamps to come from the injected clock")
	}
}

// TestNewVisitValidation tests check-in validation
func TestNewVisitValidation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*CheckIn)
	}{
		{"No symptoms", func(c *CheckIn) { c.Symptoms = nil }},
		{"Whitespace-only symptoms", func(c *CheckIn) { c.Symptoms = []string{"  ", "\t"} }},
		{"Missing severity", func(c *CheckIn) { c.Severity = "" }},
		{"Missing student ID", func(c *CheckIn) { c.StudentID = "" }},
		{"Missing name", func(c *CheckIn) { c.Name = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCheckIn()
			tt.mutate(&in)

			if _, err := NewVisit(in, 0, now); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

// TestNewVisitTrimsSymptoms tests symptom normalization
func TestNewVisitTrimsSymptoms(t *testing.T) {
	in := validCheckIn()
	in.Symptoms = []string{" fever ", "", "cough"}

	v, err := NewVisit(in, 0, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(v.Symptoms) != 2 || v.Symptoms[0] != "fever" || v.Symptoms[1] != "cough" {
		t.Errorf("Expected trimmed symptoms [fever cough], got %v", v.Symptoms)
	}
}

// TestVisitLifecycle tests the waiting -> in-progress -> completed path
func TestVisitLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	v, _ := NewVisit(validCheckIn(), 0, now)

	nurseID := types.NewID()
	later := now.Add(5 * time.Minute)

	if err := v.Start(nurseID, "Nurse Khatun", "called in", later); err != nil {
		t.Fatalf("Failed to start visit: %v", err)
	}
	if v.QueueStatus != StatusInProgress {
		t.Errorf("Expected status %s, got %s", StatusInProgress, v.QueueStatus)
	}
	if v.AssignedNurse != nurseID || v.AssignedNurseName != "Nurse Khatun" {
		t.Error("Expected the acting nurse to be recorded")
	}
	if v.Notes != "called in" {
		t.Errorf("Expected notes to be set, got %q", v.Notes)
	}
	if !v.UpdatedAt.Equal(later) {
		t.Error("Expected UpdatedAt to advance")
	}

	// Starting again must fail.
	if err := v.Start(types.NewID(), "Second Nurse", "", later); err == nil {
		t.Error("Expected error starting an in-progress visit")
	}
	if v.AssignedNurse != nurseID {
		t.Error("Expected the first assignment to stand")
	}

	if err := v.Complete("rest advised", later.Add(10*time.Minute)); err != nil {
		t.Fatalf("Failed to complete visit: %v", err)
	}
	if v.QueueStatus != StatusCompleted {
		t.Errorf("Expected status %s, got %s", StatusCompleted, v.QueueStatus)
	}

	if err := v.Complete("again", later); err == nil {
		t.Error("Expected error completing a completed visit")
	}
	if err := v.Start(nurseID, "Nurse Khatun", "", later); err == nil {
		t.Error("Expected error starting a completed visit")
	}
}

// TestCompleteFromWaiting tests direct completion of a no-show
func TestCompleteFromWaiting(t *testing.T) {
	v, _ := NewVisit(validCheckIn(), 0, time.Now())

	if err := v.Complete("no-show", time.Now()); err != nil {
		t.Fatalf("Expected waiting -> completed to be legal, got %v", err)
	}
	if !v.AssignedNurse.IsZero() {
		t.Error("Expected no nurse assignment on direct completion")
	}
}

// TestStartRequiresActor tests that an anonymous start is rejected
func TestStartRequiresActor(t *testing.T) {
	v, _ := NewVisit(validCheckIn(), 0, time.Now())

	if err := v.Start(types.ID(""), "", "", time.Now()); err == nil {
		t.Error("Expected error starting without an acting nurse")
	}
	if v.QueueStatus != StatusWaiting {
		t.Error("Expected status to be unchanged after rejected start")
	}
}

// TestSetPriority tests manual re-triage
func TestSetPriority(t *testing.T) {
	v, _ := NewVisit(validCheckIn(), 0, time.Now())

	if err := v.SetPriority(PriorityHigh, time.Now()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if v.Priority != PriorityHigh {
		t.Errorf("Expected priority %s, got %s", PriorityHigh, v.Priority)
	}
	if v.EmergencyFlag {
		t.Error("Expected re-triage to leave the emergency flag alone")
	}

	if err := v.SetPriority(Priority("urgent"), time.Now()); err == nil {
		t.Error("Expected error for unknown priority")
	}
	if v.Priority != PriorityHigh {
		t.Error("Expected priority unchanged after rejected re-triage")
	}
}

// TestEscalateEmergency tests the emergency escalation rules
func TestEscalateEmergency(t *testing.T) {
	now := time.Now()
	v, _ := NewVisit(validCheckIn(), 0, now)

	if err := v.EscalateEmergency(now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !v.EmergencyFlag || v.Priority != PriorityEmergency {
		t.Error("Expected emergency flag and priority to be set")
	}

	// Only waiting visits can be escalated.
	started, _ := NewVisit(validCheckIn(), 0, now)
	started.Start(types.NewID(), "Nurse", "", now)
	if err := started.EscalateEmergency(now); err == nil {
		t.Error("Expected error escalating an in-progress visit")
	}
}

// TestIsStale tests staleness against the injected clock
func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	v, _ := NewVisit(validCheckIn(), 0, now.Add(-2*time.Hour))

	if !v.IsStale(now, time.Hour) {
		t.Error("Expected a two-hour-old waiting visit to be stale")
	}

	v.Complete("", now)
	if v.IsStale(now, time.Hour) {
		t.Error("Expected a completed visit to never be stale")
	}
}

// TestSnapshot tests the duplicate check-in snapshot fields
func TestSnapshot(t *testing.T) {
	v, _ := NewVisit(validCheckIn(), 0, time.Now())
	snap := v.Snapshot()

	for _, key := range []string{"id", "name", "studentId", "priority", "symptoms", "emergencyFlag", "createdAt"} {
		if _, ok := snap[key]; !ok {
			t.Errorf("Expected snapshot to carry %q", key)
		}
	}
	if _, ok := snap["notes"]; ok {
		t.Error("Expected snapshot to omit staff notes")
	}
}
