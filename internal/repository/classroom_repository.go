package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/simlab-api/internal/models"
)

// ClassroomRepository reads the classroom directory. Directory writes happen
// in another system; this service only checks access and enrollment.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// GetByID returns a classroom row. sql.ErrNoRows when absent.
func (r *ClassroomRepository) GetByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, org_id, name, admin_id, created_at FROM classrooms WHERE id = $1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, fmt.Errorf("get classroom: %w", err)
	}
	return &classroom, nil
}

// IsEnrolled reports whether the member belongs to the classroom.
func (r *ClassroomRepository) IsEnrolled(ctx context.Context, classroomID, memberID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE classroom_id = $1 AND member_id = $2)`
	var enrolled bool
	if err := r.db.GetContext(ctx, &enrolled, query, classroomID, memberID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}
