package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opd-desk/internal/daily"
	"opd-desk/internal/middleware"
	"opd-desk/internal/models"
	"opd-desk/internal/registration"
	"opd-desk/pkg/utils"
)

// CreateVisit registers an OPD visit ("Save & Print").
func (h *Handler) CreateVisit(c *gin.Context) {
	var input models.RegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		if ferr := formError(err, func() error { return registration.Validate(input) }); ferr != nil {
			h.respondError(c, ferr)
			return
		}
		utils.APIResponse(c, http.StatusBadRequest, false, "Invalid registration data", err.Error())
		return
	}

	res, err := h.desk.Register(c.Request.Context(), middleware.Terminal(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Success! OPD: "+res.Visit.OPDID, gin.H{
		"patient":         res.Patient,
		"visit":           res.Visit,
		"patient_created": res.PatientCreated,
		"slip_url":        "/api/v1/slips/" + res.Visit.OPDID,
	})
}

// GetTodayVisits returns today's list, newest first.
func (h *Handler) GetTodayVisits(c *gin.Context) {
	if !h.mirror.Loaded() {
		view := h.projector.Pending(h.mirror.PatientCount(), h.now())
		utils.APIResponse(c, http.StatusOK, true, "Loading today's OPD list", gin.H{
			"view": view,
			"rows": daily.Rows(view),
		})
		return
	}

	view := h.projector.Project(h.mirror.Visits(), h.mirror.PatientCount(), h.now())
	utils.APIResponse(c, http.StatusOK, true, "Today's OPD list", gin.H{
		"view": view,
		"rows": daily.Rows(view),
	})
}
