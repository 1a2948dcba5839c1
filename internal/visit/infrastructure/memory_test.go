package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
	"github.com/rssabbirdev/smart-clinic/internal/visit/domain"
)

func newVisit(t *testing.T, studentID string, createdAt time.Time) *domain.Visit {
	t.Helper()
	v, err := domain.NewVisit(domain.CheckIn{
		StudentID: studentID,
		Name:      "Test Patient",
		Symptoms:  []string{"fever"},
		Severity:  domain.SeverityMedium,
	}, 0, createdAt)
	if err != nil {
		t.Fatalf("Failed to build visit: %v", err)
	}
	return v
}

// TestInsertOneActivePerStudent tests the uniqueness constraint
func TestInsertOneActivePerStudent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	if err := repo.Insert(ctx, newVisit(t, "STU-1", now)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := repo.Insert(ctx, newVisit(t, "STU-1", now))
	if err == nil {
		t.Fatal("Expected second active insert to be rejected")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != "ALREADY_ACTIVE" {
		t.Errorf("Expected ALREADY_ACTIVE, got %v", err)
	}

	// A different student is unaffected.
	if err := repo.Insert(ctx, newVisit(t, "STU-2", now)); err != nil {
		t.Errorf("Insert for another student failed: %v", err)
	}
}

// TestInsertAfterCompletion tests that completion frees the slot
func TestInsertAfterCompletion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	first := newVisit(t, "STU-1", now)
	if err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := first.Complete("", now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, first, domain.StatusWaiting); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	if err := repo.Insert(ctx, newVisit(t, "STU-1", now.Add(time.Minute))); err != nil {
		t.Errorf("Expected re-check-in after completion to succeed, got %v", err)
	}
}

// TestUpdateStatusConditional tests the compare-and-swap semantics
func TestUpdateStatusConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	v := newVisit(t, "STU-1", now)
	if err := repo.Insert(ctx, v); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Two nurses load the same waiting visit.
	nurseA, _ := repo.FindByID(ctx, v.ID)
	nurseB, _ := repo.FindByID(ctx, v.ID)

	if err := nurseA.Start(types.NewID(), "Nurse A", "", now); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, nurseA, domain.StatusWaiting); err != nil {
		t.Fatalf("First claim failed: %v", err)
	}

	if err := nurseB.Start(types.NewID(), "Nurse B", "", now); err != nil {
		t.Fatalf("Start on stale copy failed locally: %v", err)
	}
	err := repo.UpdateStatus(ctx, nurseB, domain.StatusWaiting)
	if err == nil {
		t.Fatal("Expected the second claim to lose the race")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != "INVALID_TRANSITION" {
		t.Errorf("Expected INVALID_TRANSITION, got %v", err)
	}

	// The winner's assignment stands.
	stored, _ := repo.FindByID(ctx, v.ID)
	if stored.AssignedNurseName != "Nurse A" {
		t.Errorf("Expected Nurse A to hold the visit, got %q", stored.AssignedNurseName)
	}
}

// TestUpdateStatusUnknownVisit tests the missing-row path
func TestUpdateStatusUnknownVisit(t *testing.T) {
	repo := NewMemoryRepository()

	v := newVisit(t, "STU-1", time.Now())
	err := repo.UpdateStatus(context.Background(), v, domain.StatusWaiting)

	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

// TestUpdatePreservesConcurrentEscalation tests that a notes-only
// annotation racing a committed escalation does not claw the
// escalation back
func TestUpdatePreservesConcurrentEscalation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	v := newVisit(t, "STU-1", now)
	if err := repo.Insert(ctx, v); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// A nurse loads the visit to annotate it.
	stale, err := repo.FindByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	// Meanwhile the patient escalates and the escalation commits.
	escalated, err := repo.FindByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if err := escalated.EscalateEmergency(now.Add(time.Minute)); err != nil {
		t.Fatalf("EscalateEmergency failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, escalated, domain.StatusWaiting); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// The nurse's annotation lands last, built from the stale read.
	notes := "allergy noted"
	stale.SetNotes(notes, now.Add(2*time.Minute))
	if err := repo.Update(ctx, stale.ID, domain.AnnotationPatch{Notes: &notes}, stale.UpdatedAt); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	final, err := repo.FindByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !final.EmergencyFlag {
		t.Error("Expected emergency flag to survive the annotation")
	}
	if final.Priority != domain.PriorityEmergency {
		t.Errorf("Expected emergency priority to survive, got %s", final.Priority)
	}
	if final.Notes != notes {
		t.Errorf("Expected notes %q, got %q", notes, final.Notes)
	}
}

// TestUpdateUnknownVisit tests the missing-row path for annotations
func TestUpdateUnknownVisit(t *testing.T) {
	repo := NewMemoryRepository()

	notes := "orphaned"
	err := repo.Update(context.Background(), types.NewID(), domain.AnnotationPatch{Notes: &notes}, time.Now())

	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND, got %v", err)
	}
}

// TestListRankedPagination tests dispatch-ordered listing with pages
func TestListRankedPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		v := newVisit(t, string(rune('A'+i))+"-STU", base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			v.Priority = domain.PriorityEmergency
		}
		if err := repo.Insert(ctx, v); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	status := domain.StatusWaiting
	page1, total, err := repo.List(ctx, domain.ListFilter{Status: &status, Limit: 2, Page: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(page1) != 2 {
		t.Fatalf("Expected 2 visits on page 1, got %d", len(page1))
	}
	if page1[0].Priority != domain.PriorityEmergency {
		t.Error("Expected the emergency visit to lead page 1")
	}

	page3, _, _ := repo.List(ctx, domain.ListFilter{Status: &status, Limit: 2, Page: 3})
	if len(page3) != 1 {
		t.Errorf("Expected 1 visit on page 3, got %d", len(page3))
	}
}

// TestStats tests the aggregate counters
func TestStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	waiting := newVisit(t, "STU-1", base)
	waiting.EmergencyFlag = true
	repo.Insert(ctx, waiting)

	completed := newVisit(t, "STU-2", base.Add(-24*time.Hour))
	repo.Insert(ctx, completed)
	completed.Complete("", base)
	repo.UpdateStatus(ctx, completed, domain.StatusWaiting)

	stats, err := repo.Stats(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalWaiting != 1 || stats.TotalCompleted != 1 {
		t.Errorf("Unexpected status counts: %+v", stats)
	}
	if stats.EmergencyCases != 1 {
		t.Errorf("Expected 1 active emergency case, got %d", stats.EmergencyCases)
	}
	if stats.TotalToday != 1 {
		t.Errorf("Expected 1 visit today, got %d", stats.TotalToday)
	}
}
