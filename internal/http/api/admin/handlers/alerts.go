package handlers

import (
	"net/http"

	"github.com/funnelkit/qrstock/internal/inventory"
	"github.com/gin-gonic/gin"
)

// AlertHandler serves inventory alerts.
type AlertHandler struct {
	svc *inventory.Service
}

// NewAlertHandler constructs an AlertHandler.
func NewAlertHandler(svc *inventory.Service) *AlertHandler {
	return &AlertHandler{svc: svc}
}

// List evaluates current alerts, optionally restricted by ?type=.
func (h *AlertHandler) List(c *gin.Context) {
	report, errList := h.svc.ListAlerts(c.Request.Context(), c.Query("type"))
	if errList != nil {
		respondServiceError(c, errList, "list alerts failed")
		return
	}
	if report.Alerts == nil {
		report.Alerts = []inventory.Alert{}
	}
	c.JSON(http.StatusOK, report)
}
