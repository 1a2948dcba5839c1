package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
	"github.com/rssabbirdev/smart-clinic/internal/visit/domain"
)

// MemoryRepository is an in-memory domain.Repository with the same
// semantics as the postgres implementation, including the conditional
// status update and the one-active-visit-per-student constraint. Used
// by tests.
type MemoryRepository struct {
	mu     sync.Mutex
	visits map[types.ID]*domain.Visit
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{visits: make(map[types.ID]*domain.Visit)}
}

func (r *MemoryRepository) Insert(ctx context.Context, v *domain.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.visits {
		if existing.StudentID == v.StudentID && existing.IsActive() {
			return errors.AlreadyActive(map[string]any{"studentId": v.StudentID})
		}
	}

	cp := *v
	r.visits[v.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id types.ID) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, errors.NotFound("visit", id.String())
	}
	cp := *v
	return &cp, nil
}

func (r *MemoryRepository) FindActiveByStudent(ctx context.Context, studentID string) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.Visit
	for _, v := range r.visits {
		if v.StudentID != studentID || !v.IsActive() {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryRepository) FindWaiting(ctx context.Context) ([]*domain.Visit, error) {
	return r.collect(func(v *domain.Visit) bool {
		return v.QueueStatus == domain.StatusWaiting
	}), nil
}

func (r *MemoryRepository) FindEmergencies(ctx context.Context) ([]*domain.Visit, error) {
	active := r.collect(func(v *domain.Visit) bool {
		return v.EmergencyFlag && v.IsActive()
	})
	return domain.Rank(active), nil
}

func (r *MemoryRepository) FindCompletedByStudent(ctx context.Context, studentID string, limit int) ([]*domain.Visit, error) {
	completed := r.collect(func(v *domain.Visit) bool {
		return v.StudentID == studentID && v.QueueStatus == domain.StatusCompleted
	})
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	return completed, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Visit, int, error) {
	matching := r.collect(func(v *domain.Visit) bool {
		return filter.Status == nil || v.QueueStatus == *filter.Status
	})
	ranked := domain.Rank(matching)
	total := len(ranked)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * limit
	if start > len(ranked) {
		start = len(ranked)
	}
	end := start + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end], total, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, v *domain.Visit, expected domain.QueueStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.visits[v.ID]
	if !ok {
		return errors.NotFound("visit", v.ID.String())
	}
	if stored.QueueStatus != expected {
		return errors.InvalidTransition("visit status is " + string(stored.QueueStatus))
	}

	cp := *v
	r.visits[v.ID] = &cp
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, id types.ID, patch domain.AnnotationPatch, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.visits[id]
	if !ok {
		return errors.NotFound("visit", id.String())
	}

	if patch.Notes != nil {
		stored.Notes = *patch.Notes
	}
	if patch.Priority != nil {
		stored.Priority = *patch.Priority
	}
	stored.UpdatedAt = updatedAt
	return nil
}

func (r *MemoryRepository) CountByStatus(ctx context.Context, status domain.QueueStatus) (int, error) {
	return len(r.collect(func(v *domain.Visit) bool {
		return v.QueueStatus == status
	})), nil
}

func (r *MemoryRepository) Stats(ctx context.Context, since time.Time) (*domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.Stats{}
	for _, v := range r.visits {
		switch v.QueueStatus {
		case domain.StatusWaiting:
			stats.TotalWaiting++
		case domain.StatusInProgress:
			stats.TotalInProgress++
		case domain.StatusCompleted:
			stats.TotalCompleted++
		}
		if v.EmergencyFlag && v.IsActive() {
			stats.EmergencyCases++
		}
		if !v.CreatedAt.Before(since) {
			stats.TotalToday++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) collect(match func(*domain.Visit) bool) []*domain.Visit {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Visit
	for _, v := range r.visits {
		if match(v) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}
