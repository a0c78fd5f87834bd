package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opd-desk/internal/models"
	"opd-desk/pkg/utils"
)

// GetDashboardStats shows the two counters on top of the desk: today's registrations
// and the total number of patients on record, plus today's status breakdown.
func (h *Handler) GetDashboardStats(c *gin.Context) {
	view := h.projector.Project(h.mirror.Visits(), h.mirror.PatientCount(), h.now())

	var waiting, withDoctor, completed int
	for _, v := range view.Visits {
		switch v.Status {
		case models.StatusWaiting:
			waiting++
		case models.StatusWithDoctor:
			withDoctor++
		case models.StatusCompleted:
			completed++
		}
	}

	utils.APIResponse(c, http.StatusOK, true, "Desk statistics", gin.H{
		"date":           view.ISODate,
		"today_count":    view.TodayCount,
		"total_patients": view.TotalPatients,
		"waiting":        waiting,
		"with_doctor":    withDoctor,
		"completed":      completed,
		"synced":         h.mirror.Loaded(),
	})
}
