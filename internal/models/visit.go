package models

import (
	"github.com/spf13/cast"
)

// CollectionVisits is the store collection holding OPD visit documents.
const CollectionVisits = "visits"

// Visit statuses. Only Waiting is ever written here; the others come from other terminals.
const (
	StatusWaiting    = "Waiting"
	StatusWithDoctor = "With Doctor"
	StatusCompleted  = "Completed"
)

// Visit types offered on the form.
const (
	VisitTypeNew      = "New Case"
	VisitTypeFollowUp = "Review / Follow-up"
)

// DefaultFee is recorded when the operator leaves the fee blank.
const DefaultFee = "0"

// Visit is one OPD registration. PatientName, Age and Gender are copied from the patient
// when the visit is created and are not refreshed if the patient record changes later.
type Visit struct {
	OPDID       string `json:"opd_id"`
	PID         string `json:"pid"`
	PatientName string `json:"patient_name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	Doctor      string `json:"doctor"`
	Type        string `json:"type"`
	Fee         string `json:"fee"`
	Date        string `json:"date"`      // display format, e.g. 5/1/2024
	ISODate     string `json:"iso_date"`  // YYYY-MM-DD in clinic time
	Timestamp   int64  `json:"timestamp"` // unix millis
	Status      string `json:"status"`

	DocID string `json:"-"`
}

// VisitInput is the visit part of the front-desk form.
type VisitInput struct {
	Doctor string `json:"doctor"`
	Type   string `json:"type"`
	Fee    string `json:"fee"`
}

// RegistrationInput is the whole form submitted on "Save & Print".
type RegistrationInput struct {
	PatientInput
	VisitInput
}

func (v Visit) Record() map[string]interface{} {
	return map[string]interface{}{
		"opdId":       v.OPDID,
		"pid":         v.PID,
		"patientName": v.PatientName,
		"age":         v.Age,
		"gender":      v.Gender,
		"doctor":      v.Doctor,
		"type":        v.Type,
		"fee":         v.Fee,
		"date":        v.Date,
		"isoDate":     v.ISODate,
		"timestamp":   v.Timestamp,
		"status":      v.Status,
	}
}

// VisitFromRecord decodes a stored visit. Timestamps written by browsers arrive as
// floats, ages as strings; a missing fee reads as DefaultFee.
func VisitFromRecord(docID string, data map[string]interface{}) Visit {
	fee := cast.ToString(data["fee"])
	if fee == "" {
		fee = DefaultFee
	}
	return Visit{
		OPDID:       cast.ToString(data["opdId"]),
		PID:         cast.ToString(data["pid"]),
		PatientName: cast.ToString(data["patientName"]),
		Age:         cast.ToInt(data["age"]),
		Gender:      cast.ToString(data["gender"]),
		Doctor:      cast.ToString(data["doctor"]),
		Type:        cast.ToString(data["type"]),
		Fee:         fee,
		Date:        cast.ToString(data["date"]),
		ISODate:     cast.ToString(data["isoDate"]),
		Timestamp:   cast.ToInt64(data["timestamp"]),
		Status:      cast.ToString(data["status"]),
		DocID:       docID,
	}
}
