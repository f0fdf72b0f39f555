package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simlab-api/internal/service"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
	"github.com/noah-isme/simlab-api/pkg/response"
)

// SubmissionHandler handles member submission endpoints.
type SubmissionHandler struct {
	submissions *service.SubmissionService
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Create godoc
// @Summary Submit inputs for the classroom's active scenario
// @Tags Submissions
// @Accept json
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Param payload body service.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms/{classroomId}/submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req service.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	submission, err := h.submissions.Create(c.Request.Context(), c.Param("classroomId"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// GetMine godoc
// @Summary Get the caller's submission for a scenario
// @Tags Submissions
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Param scenarioId path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{classroomId}/scenarios/{scenarioId}/submissions/me [get]
func (h *SubmissionHandler) GetMine(c *gin.Context) {
	claims := claimsFromContext(c)
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("classroomId"), c.Param("scenarioId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// ListByScenario godoc
// @Summary List a scenario's submissions
// @Tags Submissions
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Param scenarioId path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{classroomId}/scenarios/{scenarioId}/submissions [get]
func (h *SubmissionHandler) ListByScenario(c *gin.Context) {
	submissions, err := h.submissions.ListByScenario(c.Request.Context(), c.Param("classroomId"), c.Param("scenarioId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
