package registry

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
)

// PostgresDirectory serves the directory from the clinic's own
// students table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) FindByStudentID(ctx context.Context, studentID string) (*Student, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT student_id, name, COALESCE(email, ''), COALESCE(class, ''), COALESCE(mobile, '')
		FROM students
		WHERE student_id = $1`, studentID)

	var s Student
	if err := row.Scan(&s.StudentID, &s.Name, &s.Email, &s.Class, &s.Mobile); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("student", studentID)
		}
		return nil, errors.StoreUnavailable(err)
	}
	return &s, nil
}

func (d *PostgresDirectory) Search(ctx context.Context, query string, limit int) ([]*Student, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	rows, err := d.pool.Query(ctx, `
		SELECT student_id, name, COALESCE(email, ''), COALESCE(class, ''), COALESCE(mobile, '')
		FROM students
		WHERE student_id ILIKE $1 OR name ILIKE $1
		ORDER BY name ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.StudentID, &s.Name, &s.Email, &s.Class, &s.Mobile); err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		students = append(students, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return students, nil
}

func (d *PostgresDirectory) Health(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *PostgresDirectory) Close() {}

var _ Directory = (*PostgresDirectory)(nil)
