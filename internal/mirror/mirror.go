// Package mirror keeps full in-memory copies of the patients and visits collections,
// fed by live subscriptions on the store.
package mirror

import (
	"sync"

	"opd-desk/internal/models"
	"opd-desk/internal/store"
)

// Mirror is the read side used by every other component. Readers get copies; only
// the Bridge's subscription callbacks replace the contents.
type Mirror struct {
	mu       sync.RWMutex
	patients []models.Patient
	visits   []models.Visit

	patientsLoaded bool
	visitsLoaded   bool
	ready          chan struct{}
	readyOnce      sync.Once
}

func New() *Mirror {
	return &Mirror{ready: make(chan struct{})}
}

// Patients returns a copy of the patient mirror.
func (m *Mirror) Patients() []models.Patient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Patient, len(m.patients))
	copy(out, m.patients)
	return out
}

// Visits returns a copy of the visit mirror.
func (m *Mirror) Visits() []models.Visit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Visit, len(m.visits))
	copy(out, m.visits)
	return out
}

func (m *Mirror) PatientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patients)
}

// PatientIDs lists every domain patient id in the mirror.
func (m *Mirror) PatientIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.patients))
	for _, p := range m.patients {
		ids = append(ids, p.ID)
	}
	return ids
}

// OPDIDs lists every visit id in the mirror.
func (m *Mirror) OPDIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.visits))
	for _, v := range m.visits {
		ids = append(ids, v.OPDID)
	}
	return ids
}

// FindPatient looks a patient up by domain id. The first match wins.
func (m *Mirror) FindPatient(id string) (models.Patient, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.ID == id {
			return p, true
		}
	}
	return models.Patient{}, false
}

// FindVisit looks a visit up by OPD id.
func (m *Mirror) FindVisit(opdID string) (models.Visit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.visits {
		if v.OPDID == opdID {
			return v, true
		}
	}
	return models.Visit{}, false
}

// Ready is closed once both collections delivered their first snapshot.
func (m *Mirror) Ready() <-chan struct{} {
	return m.ready
}

// Loaded reports whether the visit mirror has received a snapshot yet, which is what
// separates "nothing today" from "not loaded".
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visitsLoaded
}

func (m *Mirror) replacePatients(docs []store.Document) int {
	patients := make([]models.Patient, 0, len(docs))
	for _, d := range docs {
		patients = append(patients, models.PatientFromRecord(d.ID, d.Data))
	}

	m.mu.Lock()
	m.patients = patients
	m.patientsLoaded = true
	both := m.visitsLoaded
	m.mu.Unlock()

	if both {
		m.markReady()
	}
	return len(patients)
}

func (m *Mirror) replaceVisits(docs []store.Document) []models.Visit {
	visits := make([]models.Visit, 0, len(docs))
	for _, d := range docs {
		visits = append(visits, models.VisitFromRecord(d.ID, d.Data))
	}

	m.mu.Lock()
	m.visits = visits
	m.visitsLoaded = true
	both := m.patientsLoaded
	m.mu.Unlock()

	if both {
		m.markReady()
	}
	out := make([]models.Visit, len(visits))
	copy(out, visits)
	return out
}

func (m *Mirror) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}
