package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rssabbirdev/smart-clinic/internal/shared/config"
	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
)

// studentView is the read-only view exposed by the school information
// system for the clinic.
const studentView = "dbo.ClinicStudents"

// MSSQLDirectory reads the directory from a legacy school information
// system over SQL Server.
type MSSQLDirectory struct {
	db *sql.DB
}

// NewMSSQLDirectory opens a pooled connection to the school system and
// verifies it.
func NewMSSQLDirectory(ctx context.Context, cfg config.RegistryConfig) (*MSSQLDirectory, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	if cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	return &MSSQLDirectory{db: db}, nil
}

func (d *MSSQLDirectory) FindByStudentID(ctx context.Context, studentID string) (*Student, error) {
	query := fmt.Sprintf(`
		SELECT StudentID, FullName, Email, ClassName, Mobile
		FROM %s
		WHERE StudentID = @studentID`, studentView)

	row := d.db.QueryRowContext(ctx, query, sql.Named("studentID", studentID))

	s, err := scanStudent(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("student", studentID)
		}
		return nil, errors.StoreUnavailable(err)
	}
	return s, nil
}

func (d *MSSQLDirectory) Search(ctx context.Context, query string, limit int) ([]*Student, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	q := fmt.Sprintf(`
		SELECT TOP (@limit) StudentID, FullName, Email, ClassName, Mobile
		FROM %s
		WHERE StudentID LIKE @pattern OR FullName LIKE @pattern
		ORDER BY FullName ASC`, studentView)

	rows, err := d.db.QueryContext(ctx, q,
		sql.Named("limit", limit),
		sql.Named("pattern", pattern),
	)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	defer rows.Close()

	var students []*Student
	for rows.Next() {
		s, err := scanStudent(rows.Scan)
		if err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return students, nil
}

func scanStudent(scan func(...any) error) (*Student, error) {
	var s Student
	var email, class, mobile sql.NullString

	if err := scan(&s.StudentID, &s.Name, &email, &class, &mobile); err != nil {
		return nil, err
	}
	if email.Valid {
		s.Email = email.String
	}
	if class.Valid {
		s.Class = class.String
	}
	if mobile.Valid {
		s.Mobile = mobile.String
	}
	return &s, nil
}

func (d *MSSQLDirectory) Health(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *MSSQLDirectory) Close() {
	d.db.Close()
}

var _ Directory = (*MSSQLDirectory)(nil)
