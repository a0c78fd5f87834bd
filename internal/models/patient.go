package models

import (
	"math"
	"time"

	"github.com/spf13/cast"
)

// CollectionPatients is the store collection holding patient documents.
const CollectionPatients = "patients"

// ISODateLayout is the canonical date key used for dob, lastVisit and isoDate.
const ISODateLayout = "2006-01-02"

type Patient struct {
	ID        string `json:"id"` // P-1001 (sequential) or P1234567 (legacy)
	Name      string `json:"name"`
	Guardian  string `json:"guardian"`
	DOB       string `json:"dob"` // Format YYYY-MM-DD
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Phone     string `json:"phone"`
	District  string `json:"district"`
	Address   string `json:"address"`
	LastVisit string `json:"last_visit"`

	// DocID is the storage-assigned document id, used only to target updates.
	DocID string `json:"-"`
}

// PatientInput is the demographic part of the front-desk form.
type PatientInput struct {
	Name     string `json:"name"`
	Guardian string `json:"guardian"`
	DOB      string `json:"dob"`
	Age      *int   `json:"age"` // optional, derived from DOB when absent
	Gender   string `json:"gender"`
	Phone    string `json:"phone" binding:"omitempty,numeric,len=10"`
	Pincode  string `json:"pincode"`
	District string `json:"district"`
	Address  string `json:"address"`
}

// ResolveAge returns the explicit age if given, otherwise the age derived from DOB.
func (in PatientInput) ResolveAge(now time.Time) int {
	if in.Age != nil {
		if *in.Age < 0 {
			return 0
		}
		return *in.Age
	}
	return AgeFromDOB(in.DOB, now)
}

// AgeFromDOB counts whole years between dob and now; future or unparsable dates give 0.
func AgeFromDOB(dob string, now time.Time) int {
	if dob == "" {
		return 0
	}
	born, err := time.ParseInLocation(ISODateLayout, dob, now.Location())
	if err != nil {
		return 0
	}
	years := now.Sub(born).Hours() / (24 * 365.25)
	if years < 0 {
		return 0
	}
	return int(math.Floor(years))
}

// Record converts the patient to the document shape written to the store.
func (p Patient) Record() map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"name":      p.Name,
		"guardian":  p.Guardian,
		"dob":       p.DOB,
		"age":       p.Age,
		"gender":    p.Gender,
		"phone":     p.Phone,
		"district":  p.District,
		"address":   p.Address,
		"lastVisit": p.LastVisit,
	}
}

// DemographicRecord is the partial record used by the update-only path; it leaves
// id and lastVisit untouched.
func (p Patient) DemographicRecord() map[string]interface{} {
	rec := p.Record()
	delete(rec, "id")
	delete(rec, "lastVisit")
	return rec
}

// PatientFromRecord decodes a stored document. Records written by the browser tool keep
// age as a string, so every field goes through cast.
func PatientFromRecord(docID string, data map[string]interface{}) Patient {
	return Patient{
		ID:        cast.ToString(data["id"]),
		Name:      cast.ToString(data["name"]),
		Guardian:  cast.ToString(data["guardian"]),
		DOB:       cast.ToString(data["dob"]),
		Age:       cast.ToInt(data["age"]),
		Gender:    cast.ToString(data["gender"]),
		Phone:     cast.ToString(data["phone"]),
		District:  cast.ToString(data["district"]),
		Address:   cast.ToString(data["address"]),
		LastVisit: cast.ToString(data["lastVisit"]),
		DocID:     docID,
	}
}
