// Package registry exposes the read-only student directory used to
// pre-fill check-in forms. Two backends exist: the clinic's own
// postgres table, and a view into a legacy school information system
// running on SQL Server.
package registry

import "context"

// Student is a directory entry.
type Student struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Class     string `json:"class,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
}

// Directory looks up students. Implementations are read-only.
type Directory interface {
	FindByStudentID(ctx context.Context, studentID string) (*Student, error)
	Search(ctx context.Context, query string, limit int) ([]*Student, error)
	Health(ctx context.Context) error
	Close()
}
