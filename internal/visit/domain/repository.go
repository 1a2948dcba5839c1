package domain

import (
	"context"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// Repository defines the interface for visit persistence. Mutations are
// conditional where the state machine requires it; see UpdateStatus.
type Repository interface {
	// Insert stores a new visit. A concurrent duplicate check-in that
	// loses the one-active-visit-per-student race fails with
	// ALREADY_ACTIVE.
	Insert(ctx context.Context, v *Visit) error

	// FindByID returns the visit or NOT_FOUND.
	FindByID(ctx context.Context, id types.ID) (*Visit, error)

	// FindActiveByStudent returns the student's most recent active
	// (waiting or in-progress) visit, or nil when there is none.
	FindActiveByStudent(ctx context.Context, studentID string) (*Visit, error)

	// FindWaiting returns the full waiting set. Order is not
	// significant; the ranker re-derives it.
	FindWaiting(ctx context.Context) ([]*Visit, error)

	// FindEmergencies returns active emergency-flagged visits.
	FindEmergencies(ctx context.Context) ([]*Visit, error)

	// FindCompletedByStudent returns the student's completed visits,
	// newest first, up to limit.
	FindCompletedByStudent(ctx context.Context, studentID string, limit int) ([]*Visit, error)

	// List returns a page of visits in dispatch order plus the total
	// matching count.
	List(ctx context.Context, filter ListFilter) ([]*Visit, int, error)

	// UpdateStatus writes the visit's mutable fields if and only if
	// the stored status still equals expected (compare-and-swap).
	// Returns INVALID_TRANSITION when the status moved underneath the
	// caller, NOT_FOUND when the visit does not exist.
	UpdateStatus(ctx context.Context, v *Visit, expected QueueStatus) error

	// Update applies an annotation patch. Nil patch fields are left
	// untouched, and the status and emergency flag are never written
	// here, so a stale snapshot cannot claw back a concurrent
	// escalation or assignment.
	Update(ctx context.Context, id types.ID, patch AnnotationPatch, updatedAt time.Time) error

	// CountByStatus counts visits with the given status.
	CountByStatus(ctx context.Context, status QueueStatus) (int, error)

	// Stats returns the aggregate queue counters in one pass.
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

// AnnotationPatch narrows an annotation write to the fields the caller
// actually changed.
type AnnotationPatch struct {
	Notes    *string
	Priority *Priority
}

// ListFilter defines filters for listing visits. A nil Status means all.
type ListFilter struct {
	Status *QueueStatus
	Limit  int
	Page   int
}

// Stats holds the queue counters shown on the staff dashboard.
type Stats struct {
	TotalWaiting    int `json:"totalWaiting"`
	TotalInProgress int `json:"totalInProgress"`
	TotalCompleted  int `json:"totalCompleted"`
	EmergencyCases  int `json:"emergencyCases"`
	TotalToday      int `json:"totalToday"`
}
