// Package registration writes patient and visit records for the front desk.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"opd-desk/internal/models"
	"opd-desk/internal/store"
)

var (
	ErrNothingLoaded   = errors.New("no patient is loaded")
	ErrPatientNotFound = errors.New("loaded patient not found")
)

// PartialWriteError means the patient write went through but the visit insert did not.
// Only the non-transactional path can produce it.
type PartialWriteError struct {
	PID string
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("patient %s saved but visit was not created: %v", e.PID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// PatientLookup finds patients in the mirror.
type PatientLookup interface {
	FindPatient(id string) (models.Patient, bool)
}

// DateKeys formats an instant as the canonical and display date strings.
type DateKeys func(t time.Time) (iso, display string)

// Result is what a successful registration wrote.
type Result struct {
	Patient        models.Patient `json:"patient"`
	Visit          models.Visit   `json:"visit"`
	PatientCreated bool           `json:"patient_created"`
}

// Reconciler decides between patient update and insert, and always inserts the visit.
type Reconciler struct {
	store    store.Store
	patients PatientLookup
	keys     DateKeys
	atomic   bool
}

// NewReconciler builds a Reconciler. With atomic set and a store that implements
// store.Transactor, the patient write and the visit insert commit together.
func NewReconciler(st store.Store, patients PatientLookup, keys DateKeys, atomic bool) *Reconciler {
	return &Reconciler{store: st, patients: patients, keys: keys, atomic: atomic}
}

// Register validates in, then upserts the patient identified by pid and inserts a new
// Waiting visit with id opdID.
func (r *Reconciler) Register(ctx context.Context, in models.RegistrationInput, pid, opdID string, now time.Time) (*Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	iso, display := r.keys(now)
	patient := buildPatient(in.PatientInput, pid, now)
	patient.LastVisit = iso

	visitType := strings.TrimSpace(in.Type)
	if visitType == "" {
		visitType = models.VisitTypeNew
	}
	fee := strings.TrimSpace(in.Fee)
	if fee == "" {
		fee = models.DefaultFee
	}
	visit := models.Visit{
		OPDID:       opdID,
		PID:         pid,
		PatientName: patient.Name,
		Age:         patient.Age,
		Gender:      patient.Gender,
		Doctor:      in.Doctor,
		Type:        visitType,
		Fee:         fee,
		Date:        display,
		ISODate:     iso,
		Timestamp:   now.UnixMilli(),
		Status:      models.StatusWaiting,
	}

	existing, found := r.patients.FindPatient(pid)
	patientWritten := false

	write := func(w store.Writer) error {
		if found {
			rec := patient.Record()
			delete(rec, "id")
			if err := w.Update(ctx, models.CollectionPatients, existing.DocID, rec); err != nil {
				return fmt.Errorf("update patient %s: %w", pid, err)
			}
			patient.DocID = existing.DocID
		} else {
			docID, err := w.Insert(ctx, models.CollectionPatients, patient.Record())
			if err != nil {
				return fmt.Errorf("insert patient %s: %w", pid, err)
			}
			patient.DocID = docID
		}
		patientWritten = true

		docID, err := w.Insert(ctx, models.CollectionVisits, visit.Record())
		if err != nil {
			return fmt.Errorf("insert visit %s: %w", opdID, err)
		}
		visit.DocID = docID
		return nil
	}

	if tx, ok := r.store.(store.Transactor); ok && r.atomic {
		if err := tx.RunInTransaction(ctx, write); err != nil {
			return nil, err
		}
	} else if err := write(r.store); err != nil {
		if patientWritten {
			return nil, &PartialWriteError{PID: pid, Err: err}
		}
		return nil, err
	}

	return &Result{Patient: patient, Visit: visit, PatientCreated: !found}, nil
}

// UpdatePatient rewrites the demographics of the loaded patient without creating a
// visit. lastVisit is left as it is.
func (r *Reconciler) UpdatePatient(ctx context.Context, loadedPID string, in models.PatientInput, now time.Time) (*models.Patient, error) {
	if loadedPID == "" {
		return nil, ErrNothingLoaded
	}
	if err := ValidatePatient(in); err != nil {
		return nil, err
	}
	existing, found := r.patients.FindPatient(loadedPID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, loadedPID)
	}

	patient := buildPatient(in, loadedPID, now)
	patient.LastVisit = existing.LastVisit
	patient.DocID = existing.DocID

	if err := r.store.Update(ctx, models.CollectionPatients, existing.DocID, patient.DemographicRecord()); err != nil {
		return nil, fmt.Errorf("update patient %s: %w", loadedPID, err)
	}
	return &patient, nil
}

func buildPatient(in models.PatientInput, pid string, now time.Time) models.Patient {
	district := strings.TrimSpace(in.District)
	if district == "" {
		if d, ok := models.DistrictForPincode(in.Pincode); ok {
			district = d
		}
	}
	return models.Patient{
		ID:       pid,
		Name:     strings.TrimSpace(in.Name),
		Guardian: strings.TrimSpace(in.Guardian),
		DOB:      in.DOB,
		Age:      in.ResolveAge(now),
		Gender:   in.Gender,
		Phone:    strings.TrimSpace(in.Phone),
		District: district,
		Address:  strings.TrimSpace(in.Address),
	}
}
