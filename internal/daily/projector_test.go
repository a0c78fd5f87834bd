package daily

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opd-desk/internal/models"
)

var may1 = time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

func TestProject_FiltersByISODate(t *testing.T) {
	p := NewProjector(time.UTC, "")
	visits := []models.Visit{
		{OPDID: "OPD-1", ISODate: "2024-05-01", Timestamp: 1},
		{OPDID: "OPD-2", ISODate: "2024-05-02", Timestamp: 2},
	}

	view := p.Project(visits, 10, may1)
	require.Len(t, view.Visits, 1)
	assert.Equal(t, "OPD-1", view.Visits[0].OPDID)
	assert.Equal(t, 1, view.TodayCount)
	assert.Equal(t, 10, view.TotalPatients)
	assert.False(t, view.Empty)
	assert.Empty(t, view.Placeholder)
}

func TestProject_DisplayDateFallback(t *testing.T) {
	p := NewProjector(time.UTC, DefaultDisplayLayout)
	visits := []models.Visit{
		{OPDID: "OPD-legacy", Date: "5/1/2024"},
		{OPDID: "OPD-other", Date: "5/2/2024"},
	}

	view := p.Project(visits, 0, may1)
	require.Len(t, view.Visits, 1)
	assert.Equal(t, "OPD-legacy", view.Visits[0].OPDID)
}

func TestProject_NewestFirst(t *testing.T) {
	p := NewProjector(time.UTC, "")
	visits := []models.Visit{
		{OPDID: "OPD-old", ISODate: "2024-05-01", Timestamp: 100},
		{OPDID: "OPD-new", ISODate: "2024-05-01", Timestamp: 200},
	}

	view := p.Project(visits, 0, may1)
	require.Len(t, view.Visits, 2)
	assert.Equal(t, "OPD-new", view.Visits[0].OPDID)
	assert.Equal(t, "OPD-old", view.Visits[1].OPDID)
}

func TestProject_EmptyShowsPlaceholder(t *testing.T) {
	p := NewProjector(time.UTC, "")
	view := p.Project([]models.Visit{{ISODate: "2024-04-30"}}, 3, may1)

	assert.True(t, view.Empty)
	assert.Equal(t, Placeholder, view.Placeholder)
	assert.Equal(t, 0, view.TodayCount)
	assert.NotNil(t, view.Visits)
	assert.Empty(t, Rows(view))
}

func TestProject_ClinicTimezoneDecidesToday(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	p := NewProjector(ist, "")

	// 20:00 UTC on 1 May is already 2 May in the clinic.
	late := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	view := p.Project([]models.Visit{{ISODate: "2024-05-02"}}, 0, late)
	assert.Equal(t, "2024-05-02", view.ISODate)
	assert.Equal(t, 1, view.TodayCount)
}

func TestRows(t *testing.T) {
	view := View{Visits: []models.Visit{
		{OPDID: "OPD-1", Age: 52, Gender: "Female", Status: models.StatusWaiting},
		{OPDID: "OPD-2", Age: 8, Gender: "Male", Status: models.StatusWithDoctor},
		{OPDID: "OPD-3", Status: models.StatusCompleted},
	}}

	rows := Rows(view)
	require.Len(t, rows, 3)
	assert.Equal(t, "52Y / Female", rows[0].AgeSex)
	assert.Equal(t, "waiting", rows[0].BadgeClass)
	assert.Equal(t, "active", rows[1].BadgeClass)
	assert.Equal(t, "completed", rows[2].BadgeClass)
}

func TestPending_HasNoPlaceholder(t *testing.T) {
	p := NewProjector(time.UTC, "")
	view := p.Pending(7, may1)

	assert.False(t, view.Loaded)
	assert.False(t, view.Empty)
	assert.Empty(t, view.Placeholder)
	assert.Equal(t, 7, view.TotalPatients)
	assert.Equal(t, "2024-05-01", view.ISODate)

	loaded := p.Project(nil, 7, may1)
	assert.True(t, loaded.Loaded)
	assert.Equal(t, Placeholder, loaded.Placeholder)
}
