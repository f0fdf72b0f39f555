package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/simlab-api/internal/service"
	"github.com/noah-isme/simlab-api/pkg/response"
)

// LedgerHandler exposes ledger reads and exports.
type LedgerHandler struct {
	ledger *service.LedgerService
}

// NewLedgerHandler constructs a ledger handler.
func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// List godoc
// @Summary List a scenario's ledger entries
// @Tags Ledger
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/ledger [get]
func (h *LedgerHandler) List(c *gin.Context) {
	entries, err := h.ledger.ListByScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// GetMine godoc
// @Summary Get the caller's ledger entry for a scenario
// @Tags Ledger
// @Produce json
// @Param id path string true "Scenario ID"
// @Success 200 {object} response.Envelope
// @Router /scenarios/{id}/ledger/me [get]
func (h *LedgerHandler) GetMine(c *gin.Context) {
	claims := claimsFromContext(c)
	entry, err := h.ledger.Get(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// ExportCSV godoc
// @Summary Export a scenario's ledger as CSV
// @Tags Ledger
// @Produce text/csv
// @Param id path string true "Scenario ID"
// @Success 200 {string} string "CSV content"
// @Router /scenarios/{id}/ledger/export [get]
func (h *LedgerHandler) ExportCSV(c *gin.Context) {
	scenarioID := c.Param("id")
	data, err := h.ledger.ExportCSV(c.Request.Context(), scenarioID)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("ledger-%s.csv", scenarioID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
