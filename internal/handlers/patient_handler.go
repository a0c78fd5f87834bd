package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opd-desk/internal/desk"
	"opd-desk/internal/middleware"
	"opd-desk/internal/models"
	"opd-desk/internal/registration"
	"opd-desk/pkg/utils"
)

// SearchPatients finds patients by ?pid= or ?phone= substring.
func (h *Handler) SearchPatients(c *gin.Context) {
	found, err := h.desk.Search(c.Query("pid"), c.Query("phone"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Patients found", found)
}

// LoadPatient makes the patient the terminal's loaded patient, so the next save
// reuses its id instead of issuing a new one.
func (h *Handler) LoadPatient(c *gin.Context) {
	p, err := h.desk.Load(middleware.Terminal(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, desk.MsgLoaded, gin.H{
		"patient":    p,
		"visit_type": models.VisitTypeFollowUp,
	})
}

// UpdateLoadedPatient saves demographic edits for the loaded patient only.
func (h *Handler) UpdateLoadedPatient(c *gin.Context) {
	var input models.PatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		if ferr := formError(err, func() error { return registration.ValidatePatient(input) }); ferr != nil {
			h.respondError(c, ferr)
			return
		}
		utils.APIResponse(c, http.StatusBadRequest, false, "Invalid patient data", err.Error())
		return
	}

	p, err := h.desk.UpdateLoaded(c.Request.Context(), middleware.Terminal(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Patient record updated", p)
}

// ClearDesk resets the terminal's form to "New Patient".
func (h *Handler) ClearDesk(c *gin.Context) {
	terminal := middleware.Terminal(c)
	h.desk.Clear(terminal)
	utils.APIResponse(c, http.StatusOK, true, "Form cleared", h.desk.Session(terminal))
}

// GetSession shows the terminal's form state.
func (h *Handler) GetSession(c *gin.Context) {
	utils.APIResponse(c, http.StatusOK, true, "Desk session", h.desk.Session(middleware.Terminal(c)))
}
