package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simlab-api/internal/service"
	"github.com/noah-isme/simlab-api/pkg/response"
)

// SimulationHandler exposes the preview/run/rerun pipeline and job reads.
type SimulationHandler struct {
	simulations *service.SimulationService
	jobs        *service.JobService
}

// NewSimulationHandler constructs a simulation handler.
func NewSimulationHandler(simulations *service.SimulationService, jobs *service.JobService) *SimulationHandler {
	return &SimulationHandler{simulations: simulations, jobs: jobs}
}

// Preview godoc
// @Summary Preview outcomes for a sample of submissions
// @Tags Simulations
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/preview [post]
func (h *SimulationHandler) Preview(c *gin.Context) {
	claims := claimsFromContext(c)
	entries, err := h.simulations.Preview(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Run godoc
// @Summary Run the scenario's simulation jobs
// @Tags Simulations
// @Produce json
// @Param id path string true "Scenario ID"
// @Param dryRun query bool false "Skip ledger writes"
// @Success 202 {object} response.Envelope
// @Router /scenarios/{id}/run [post]
func (h *SimulationHandler) Run(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dryRun", "false"))
	claims := claimsFromContext(c)
	jobs, err := h.simulations.Run(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID, dryRun)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, jobs)
}

// Rerun godoc
// @Summary Wipe the scenario ledger and recompute everything
// @Tags Simulations
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 202 {object} response.Envelope
// @Router /scenarios/{id}/rerun [post]
func (h *SimulationHandler) Rerun(c *gin.Context) {
	claims := claimsFromContext(c)
	jobs, err := h.simulations.Rerun(c.Request.Context(), c.Param("id"), claims.UserID, claims.OrgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, jobs)
}

// ListJobs godoc
// @Summary List a scenario's simulation jobs
// @Tags Simulations
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/jobs [get]
func (h *SimulationHandler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.ListByScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}

// GetJob godoc
// @Summary Get a simulation job
// @Tags Simulations
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *SimulationHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}
