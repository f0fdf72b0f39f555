package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simlab-api/internal/service"
	appErrors "github.com/noah-isme/simlab-api/pkg/errors"
	"github.com/noah-isme/simlab-api/pkg/response"
)

// ScenarioHandler handles scenario lifecycle and outcome endpoints.
type ScenarioHandler struct {
	scenarios *service.ScenarioService
	outcomes  *service.OutcomeService
}

// NewScenarioHandler constructs a scenario handler.
func NewScenarioHandler(scenarios *service.ScenarioService, outcomes *service.OutcomeService) *ScenarioHandler {
	return &ScenarioHandler{scenarios: scenarios, outcomes: outcomes}
}

// Create godoc
// @Summary Create scenario
// @Tags Scenarios
// @Accept json
// @Produce json
// @Param payload body service.CreateScenarioRequest true "Scenario payload"
// @Success 201 {object} response.Envelope
// @Router /scenarios [post]
func (h *ScenarioHandler) Create(c *gin.Context) {
	var req service.CreateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.Create(c.Request.Context(), req, claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scenario)
}

// Update godoc
// @Summary Update scenario
// @Tags Scenarios
// @Accept json
// @Produce json
// @Param id path string true "Scenario ID"
// @Param payload body service.UpdateScenarioRequest true "Scenario payload"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id} [put]
func (h *ScenarioHandler) Update(c *gin.Context) {
	var req service.UpdateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.Update(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// Get godoc
// @Summary Get scenario by id
// @Tags Scenarios
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id} [get]
func (h *ScenarioHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.GetByID(c.Request.Context(), c.Param("id"), claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// List godoc
// @Summary List classroom scenarios
// @Tags Scenarios
// @Produce json
// @Param classroomId query string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios [get]
func (h *ScenarioHandler) List(c *gin.Context) {
	classroomID := c.Query("classroomId")
	if classroomID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classroomId required"))
		return
	}
	scenarios, err := h.scenarios.List(c.Request.Context(), classroomID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenarios, nil)
}

// GetActive godoc
// @Summary Get the classroom's active scenario
// @Tags Scenarios
// @Produce json
// @Param classroomId path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{classroomId}/active-scenario [get]
func (h *ScenarioHandler) GetActive(c *gin.Context) {
	scenario, err := h.scenarios.GetActive(c.Request.Context(), c.Param("classroomId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// Publish godoc
// @Summary Publish scenario
// @Tags Scenarios
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/publish [post]
func (h *ScenarioHandler) Publish(c *gin.Context) {
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.Publish(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// Unpublish godoc
// @Summary Unpublish scenario
// @Tags Scenarios
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/unpublish [post]
func (h *ScenarioHandler) Unpublish(c *gin.Context) {
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.Unpublish(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// Close godoc
// @Summary Close scenario
// @Tags Scenarios
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/close [post]
func (h *ScenarioHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	scenario, err := h.scenarios.Close(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scenario, nil)
}

// UpsertOutcome godoc
// @Summary Set or replace the scenario outcome formula
// @Tags Scenarios
// @Accept json
// @Produce json
// @Param id path string true "Scenario ID"
// @Param payload body service.UpsertOutcomeRequest true "Outcome payload"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/outcome [put]
func (h *ScenarioHandler) UpsertOutcome(c *gin.Context) {
	var req service.UpsertOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	outcome, err := h.outcomes.Upsert(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// GetOutcome godoc
// @Summary Get the scenario outcome formula
// @Tags Scenarios
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/outcome [get]
func (h *ScenarioHandler) GetOutcome(c *gin.Context) {
	claims := claimsFromContext(c)
	outcome, err := h.outcomes.Get(c.Request.Context(), c.Param("id"), claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
