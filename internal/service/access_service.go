package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/simlab-api/internal/models"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
)

type classroomDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Classroom, error)
	IsEnrolled(ctx context.Context, classroomID, memberID string) (bool, error)
}

// AccessService answers the two questions the core pipeline asks of the
// directory: may this actor administer the classroom, and is this member
// enrolled. Directory management itself is another system's job.
type AccessService struct {
	classrooms classroomDirectory
	logger     *zap.Logger
}

// NewAccessService constructs the access service.
func NewAccessService(classrooms classroomDirectory, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{classrooms: classrooms, logger: logger}
}

// ValidateAdminAccess checks that the actor administers the classroom
// within the organization. Returns NotFound for unknown or out-of-org
// classrooms and Forbidden for non-admin actors.
func (s *AccessService) ValidateAdminAccess(ctx context.Context, classroomID, actorID, orgID string) error {
	classroom, err := s.classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if orgID != "" && classroom.OrgID != orgID {
		return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	}
	if classroom.AdminID != actorID {
		return appErrors.ErrForbidden
	}
	return nil
}

// IsUserEnrolled reports whether the member belongs to the classroom.
func (s *AccessService) IsUserEnrolled(ctx context.Context, classroomID, memberID string) (bool, error) {
	enrolled, err := s.classrooms.IsEnrolled(ctx, classroomID, memberID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return enrolled, nil
}
