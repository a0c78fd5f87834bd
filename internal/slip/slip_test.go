package slip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opd-desk/internal/models"
)

type visits map[string]models.Visit

func (v visits) FindVisit(id string) (models.Visit, bool) {
	visit, ok := v[id]
	return visit, ok
}

func TestRender(t *testing.T) {
	r := NewRenderer(Letterhead{Name: "MSN Cataract & IOL Hospital", Address: "Tilak Deka Road, Nagaon"}, visits{
		"OPD-123456": {
			OPDID:       "OPD-123456",
			PID:         "P-1001",
			PatientName: "<b>Rina</b>",
			Age:         52,
			Gender:      "Female",
			Date:        "5/1/2024",
			Doctor:      "Dr. Nilutpal Borah",
			Fee:         "300",
		},
	})

	page, err := r.Render("OPD-123456")
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "MSN Cataract &amp; IOL Hospital")
	assert.Contains(t, html, "<h2 style=\"margin:5px;\">OPD-123456</h2>")
	assert.Contains(t, html, "52 / Female")
	assert.Contains(t, html, "Dr. Nilutpal Borah")
	assert.Contains(t, html, "Please show this slip to the Optometrist.")
	assert.Contains(t, html, "window.print()")
	assert.Contains(t, html, "&lt;b&gt;Rina&lt;/b&gt;")
	assert.NotContains(t, html, "<b>Rina</b>")
}

func TestRender_Unknown(t *testing.T) {
	r := NewRenderer(Letterhead{}, visits{})
	_, err := r.Render("OPD-000000")
	assert.ErrorIs(t, err, ErrNotFound)
}
