// Package daily projects the visit mirror onto today's OPD list.
package daily

import (
	"sort"
	"strconv"
	"time"

	"opd-desk/internal/models"
)

// Placeholder is shown instead of rows when nobody has registered today.
const Placeholder = "No OPD Registrations Today"

// DefaultDisplayLayout matches the short numeric date browsers print for en-US.
const DefaultDisplayLayout = "1/2/2006"

// View is the projected daily list plus the header statistics. Loaded is false until
// the visit mirror has received its first snapshot; such a view carries no placeholder.
type View struct {
	Loaded        bool           `json:"loaded"`
	ISODate       string         `json:"iso_date"`
	DisplayDate   string         `json:"display_date"`
	Visits        []models.Visit `json:"visits"`
	TodayCount    int            `json:"today_count"`
	TotalPatients int            `json:"total_patients"`
	Empty         bool           `json:"empty"`
	Placeholder   string         `json:"placeholder,omitempty"`
}

// Projector turns the visit mirror into a View. Dates are computed in the clinic's
// location.
type Projector struct {
	loc           *time.Location
	displayLayout string
}

func NewProjector(loc *time.Location, displayLayout string) *Projector {
	if loc == nil {
		loc = time.Local
	}
	if displayLayout == "" {
		displayLayout = DefaultDisplayLayout
	}
	return &Projector{loc: loc, displayLayout: displayLayout}
}

// Keys returns the canonical and display date keys of t in the clinic's location.
func (p *Projector) Keys(t time.Time) (iso, display string) {
	local := t.In(p.loc)
	return local.Format(models.ISODateLayout), local.Format(p.displayLayout)
}

// Project keeps the visits dated today, newest first. A visit counts as today when its
// isoDate matches, or, for older records without isoDate, when its display date does.
// Both keys come from the same now.
func (p *Projector) Project(visits []models.Visit, totalPatients int, now time.Time) View {
	iso, display := p.Keys(now)

	today := make([]models.Visit, 0)
	for _, v := range visits {
		if v.ISODate != "" && v.ISODate == iso {
			today = append(today, v)
			continue
		}
		if v.Date == display {
			today = append(today, v)
		}
	}

	sort.SliceStable(today, func(i, j int) bool {
		return today[i].Timestamp > today[j].Timestamp
	})

	view := View{
		Loaded:        true,
		ISODate:       iso,
		DisplayDate:   display,
		Visits:        today,
		TodayCount:    len(today),
		TotalPatients: totalPatients,
		Empty:         len(today) == 0,
	}
	if view.Empty {
		view.Placeholder = Placeholder
	}
	return view
}

// Pending is the view shown before the first visit snapshot. It is never Empty, so
// terminals do not announce "no registrations" for a list they have not seen yet.
func (p *Projector) Pending(totalPatients int, now time.Time) View {
	iso, display := p.Keys(now)
	return View{
		ISODate:       iso,
		DisplayDate:   display,
		Visits:        []models.Visit{},
		TotalPatients: totalPatients,
	}
}

// Row is one rendered line of the daily table.
type Row struct {
	OPDID       string `json:"opd_id"`
	PID         string `json:"pid"`
	PatientName string `json:"patient_name"`
	AgeSex      string `json:"age_sex"`
	Doctor      string `json:"doctor"`
	Status      string `json:"status"`
	BadgeClass  string `json:"badge_class"`
}

// Rows renders the view's visits for the table.
func Rows(view View) []Row {
	rows := make([]Row, 0, len(view.Visits))
	for _, v := range view.Visits {
		rows = append(rows, Row{
			OPDID:       v.OPDID,
			PID:         v.PID,
			PatientName: v.PatientName,
			AgeSex:      ageSex(v),
			Doctor:      v.Doctor,
			Status:      v.Status,
			BadgeClass:  BadgeClass(v.Status),
		})
	}
	return rows
}

// BadgeClass maps a visit status to its CSS badge.
func BadgeClass(status string) string {
	switch status {
	case models.StatusCompleted:
		return "completed"
	case models.StatusWithDoctor:
		return "active"
	}
	return "waiting"
}

func ageSex(v models.Visit) string {
	return strconv.Itoa(v.Age) + "Y / " + v.Gender
}
