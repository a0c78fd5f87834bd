package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"opd-desk/internal/models"
	"opd-desk/pkg/utils"
)

type doctorOption struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Label     string `json:"label"`
}

// GetDoctors lists the doctors a visit can be assigned to.
func (h *Handler) GetDoctors(c *gin.Context) {
	doctors := models.Doctors()
	out := make([]doctorOption, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, doctorOption{Name: d.Name, Specialty: d.Specialty, Label: d.Label()})
	}
	utils.APIResponse(c, http.StatusOK, true, "Doctors", out)
}

// GetPlaces lists the address suggestions.
func (h *Handler) GetPlaces(c *gin.Context) {
	utils.APIResponse(c, http.StatusOK, true, "Places", models.Places())
}

// GetDistrict suggests a district for ?pincode=.
func (h *Handler) GetDistrict(c *gin.Context) {
	district, ok := models.DistrictForPincode(c.Query("pincode"))
	if !ok {
		utils.APIResponse(c, http.StatusOK, true, "No district for this pincode", gin.H{"district": ""})
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "District", gin.H{"district": district})
}
