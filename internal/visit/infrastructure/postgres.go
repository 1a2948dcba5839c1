// Package infrastructure provides persistence for the visit queue.
package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
	"github.com/rssabbirdev/smart-clinic/internal/visit/domain"
)

// visitColumns is the canonical column list scanned by scanVisit.
const visitColumns = `id, user_id, student_id, name, mobile, class, symptoms,
	queue_status, emergency_flag, priority, estimated_wait_time,
	notes, assigned_nurse, assigned_nurse_name, created_at, updated_at`

// rankOrder sorts rows in dispatch order. The tier weights mirror
// domain.Priority.Tier; alphabetical ordering of the priority strings
// would be wrong.
const rankOrder = `emergency_flag DESC,
	CASE priority
		WHEN 'emergency' THEN 3
		WHEN 'high' THEN 2
		WHEN 'medium' THEN 1
		ELSE 0
	END DESC,
	created_at ASC, id ASC`

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores a new visit
func (r *PostgresRepository) Insert(ctx context.Context, v *domain.Visit) error {
	query := `
		INSERT INTO visits (
			id, user_id, student_id, name, mobile, class, symptoms,
			queue_status, emergency_flag, priority, estimated_wait_time,
			notes, assigned_nurse, assigned_nurse_name, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.UserID, v.StudentID, v.Name, nilIfEmpty(v.Mobile), nilIfEmpty(v.Class), v.Symptoms,
		v.QueueStatus, v.EmergencyFlag, v.Priority, v.EstimatedWaitTime,
		nilIfEmpty(v.Notes), v.AssignedNurse, nilIfEmpty(v.AssignedNurseName), v.CreatedAt, v.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			// Lost the one-active-visit-per-student race.
			return errors.AlreadyActive(map[string]any{"studentId": v.StudentID})
		}
		return errors.StoreUnavailable(err)
	}

	return nil
}

// FindByID returns the visit or NOT_FOUND
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Visit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)

	v, err := scanVisit(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("visit", id.String())
	}
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return v, nil
}

// FindActiveByStudent returns the student's most recent active visit,
// or nil when there is none
func (r *PostgresRepository) FindActiveByStudent(ctx context.Context, studentID string) (*domain.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE student_id = $1 AND queue_status IN ('waiting', 'in-progress')
		ORDER BY created_at DESC
		LIMIT 1`

	v, err := scanVisit(r.pool.QueryRow(ctx, query, studentID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return v, nil
}

// FindWaiting returns the full waiting set
func (r *PostgresRepository) FindWaiting(ctx context.Context) ([]*domain.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE queue_status = 'waiting' ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// FindEmergencies returns active emergency-flagged visits in dispatch order
func (r *PostgresRepository) FindEmergencies(ctx context.Context) ([]*domain.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE emergency_flag AND queue_status IN ('waiting', 'in-progress')
		ORDER BY ` + rankOrder

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// FindCompletedByStudent returns the student's completed visits, newest first
func (r *PostgresRepository) FindCompletedByStudent(ctx context.Context, studentID string, limit int) ([]*domain.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visits
		WHERE student_id = $1 AND queue_status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// List returns a page of visits in dispatch order plus the total count
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Visit, int, error) {
	where := ``
	args := []any{}
	if filter.Status != nil {
		where = ` WHERE queue_status = $1`
		args = append(args, *filter.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visits`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.StoreUnavailable(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + visitColumns + ` FROM visits` + where + ` ORDER BY ` + rankOrder
	if filter.Status != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	visits, err := scanVisits(rows)
	if err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

// UpdateStatus performs the conditional status write. The WHERE clause
// on the expected status is the compare-and-swap that makes racing
// transitions resolve to exactly one winner.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, v *domain.Visit, expected domain.QueueStatus) error {
	query := `
		UPDATE visits SET
			queue_status = $3, priority = $4, emergency_flag = $5,
			notes = $6, assigned_nurse = $7, assigned_nurse_name = $8,
			updated_at = $9
		WHERE id = $1 AND queue_status = $2`

	result, err := r.pool.Exec(ctx, query,
		v.ID, expected,
		v.QueueStatus, v.Priority, v.EmergencyFlag,
		nilIfEmpty(v.Notes), v.AssignedNurse, nilIfEmpty(v.AssignedNurseName),
		v.UpdatedAt,
	)
	if err != nil {
		return errors.StoreUnavailable(err)
	}

	if result.RowsAffected() == 0 {
		var current domain.QueueStatus
		err := r.pool.QueryRow(ctx, `SELECT queue_status FROM visits WHERE id = $1`, v.ID).Scan(&current)
		if err == pgx.ErrNoRows {
			return errors.NotFound("visit", v.ID.String())
		}
		if err != nil {
			return errors.StoreUnavailable(err)
		}
		return errors.InvalidTransition("visit status is " + string(current))
	}

	return nil
}

// Update writes only the patched annotation fields. Status and the
// emergency flag are outside its reach so a stale read cannot undo a
// concurrent escalation.
func (r *PostgresRepository) Update(ctx context.Context, id types.ID, patch domain.AnnotationPatch, updatedAt time.Time) error {
	set := []string{"updated_at = $2"}
	args := []any{id, updatedAt}

	if patch.Notes != nil {
		args = append(args, nilIfEmpty(*patch.Notes))
		set = append(set, fmt.Sprintf("notes = $%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		set = append(set, fmt.Sprintf("priority = $%d", len(args)))
	}

	query := `UPDATE visits SET ` + strings.Join(set, ", ") + ` WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.StoreUnavailable(err)
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("visit", id.String())
	}

	return nil
}

// CountByStatus counts visits with the given status
func (r *PostgresRepository) CountByStatus(ctx context.Context, status domain.QueueStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM visits WHERE queue_status = $1`, status).Scan(&count)
	if err != nil {
		return 0, errors.StoreUnavailable(err)
	}
	return count, nil
}

// Stats returns the aggregate queue counters in one pass
func (r *PostgresRepository) Stats(ctx context.Context, since time.Time) (*domain.Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE queue_status = 'waiting'),
			COUNT(*) FILTER (WHERE queue_status = 'in-progress'),
			COUNT(*) FILTER (WHERE queue_status = 'completed'),
			COUNT(*) FILTER (WHERE emergency_flag AND queue_status IN ('waiting', 'in-progress')),
			COUNT(*) FILTER (WHERE created_at >= $1)
		FROM visits`

	stats := &domain.Stats{}
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.TotalWaiting, &stats.TotalInProgress, &stats.TotalCompleted,
		&stats.EmergencyCases, &stats.TotalToday,
	)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*domain.Visit, error) {
	v := &domain.Visit{}
	var mobile, class, notes, nurseName *string
	var wait *int

	err := row.Scan(
		&v.ID, &v.UserID, &v.StudentID, &v.Name, &mobile, &class, &v.Symptoms,
		&v.QueueStatus, &v.EmergencyFlag, &v.Priority, &wait,
		&notes, &v.AssignedNurse, &nurseName, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Mobile = deref(mobile)
	v.Class = deref(class)
	v.Notes = deref(notes)
	v.AssignedNurseName = deref(nurseName)
	if wait != nil {
		v.EstimatedWaitTime = *wait
	}
	return v, nil
}

func scanVisits(rows pgx.Rows) ([]*domain.Visit, error) {
	var visits []*domain.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return visits, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
