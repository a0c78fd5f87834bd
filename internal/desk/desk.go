// Package desk is the front-desk controller: it keeps the per-terminal form state and
// drives identifier assignment, validation and record reconciliation.
package desk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"opd-desk/internal/identity"
	"opd-desk/internal/metrics"
	"opd-desk/internal/mirror"
	"opd-desk/internal/models"
	"opd-desk/internal/registration"
)

// DefaultTerminal is used when a request does not name its terminal.
const DefaultTerminal = "default"

const (
	sweepInterval      = time.Minute
	defaultSessionIdle = 30 * time.Minute
)

// Messages shown for search outcomes.
const (
	MsgEmptySearch = "Enter ID or Phone."
	MsgNoMatch     = "No record found."
	MsgLoaded      = "Patient Loaded."
)

var (
	ErrBusy        = errors.New("a save is already in progress on this terminal")
	ErrEmptySearch = errors.New(MsgEmptySearch)
	ErrNoMatch     = errors.New(MsgNoMatch)
)

// Notifier tells a doctor a new patient is waiting.
type Notifier interface {
	NotifyNewVisit(ctx context.Context, doctor, opdID, patientName string) error
}

// Session is the form state of one front-desk terminal.
type Session struct {
	TerminalID string `json:"terminal_id"`
	LoadedPID  string `json:"loaded_pid,omitempty"`
	VisitType  string `json:"visit_type"`
	Busy       bool   `json:"busy"`

	lastSeen time.Time
}

type Options struct {
	WriteTimeout time.Duration
	// SessionIdle is how long an untouched terminal keeps its form state.
	SessionIdle  time.Duration
	// Stop ends the idle-session sweeper. Without it no sweeper runs.
	Stop         <-chan struct{}
	Notifier     Notifier
	Metrics      *metrics.DeskMetrics
	Logger       zerolog.Logger
	Clock        func() time.Time
}

type Desk struct {
	mirror     *mirror.Mirror
	assigner   *identity.Assigner
	reconciler *registration.Reconciler
	notifier   Notifier
	metrics    *metrics.DeskMetrics
	log        zerolog.Logger
	timeout    time.Duration
	idle       time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(m *mirror.Mirror, a *identity.Assigner, r *registration.Reconciler, opts Options) *Desk {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = defaultSessionIdle
	}
	d := &Desk{
		mirror:     m,
		assigner:   a,
		reconciler: r,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		log:        opts.Logger.With().Str("component", "desk").Logger(),
		timeout:    opts.WriteTimeout,
		idle:       opts.SessionIdle,
		now:        opts.Clock,
		sessions:   make(map[string]*Session),
	}
	if opts.Stop != nil {
		go d.sweep(opts.Stop)
	}
	return d
}

func (d *Desk) sweep(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.evictIdle()
		case <-stop:
			return
		}
	}
}

// evictIdle forgets terminals that have not been used for the idle period. A terminal
// with a save in flight is kept.
func (d *Desk) evictIdle() int {
	cutoff := d.now().Add(-d.idle)

	d.mu.Lock()
	defer d.mu.Unlock()
	evicted := 0
	for id, s := range d.sessions {
		if !s.Busy && s.lastSeen.Before(cutoff) {
			delete(d.sessions, id)
			evicted++
		}
	}
	return evicted
}

func terminalKey(terminal string) string {
	if terminal = strings.TrimSpace(terminal); terminal == "" {
		return DefaultTerminal
	}
	return terminal
}

func (d *Desk) sessionLocked(terminal string) *Session {
	s, ok := d.sessions[terminal]
	if !ok {
		s = &Session{TerminalID: terminal, VisitType: models.VisitTypeNew}
		d.sessions[terminal] = s
	}
	s.lastSeen = d.now()
	return s
}

// Session returns a copy of the terminal's current form state.
func (d *Desk) Session(terminal string) Session {
	terminal = terminalKey(terminal)
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.sessionLocked(terminal)
}

// acquire marks the terminal busy and returns the loaded patient id. The returned
// release must be called on every path.
func (d *Desk) acquire(terminal string) (loaded string, release func(), err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.sessionLocked(terminal)
	if s.Busy {
		return "", nil, ErrBusy
	}
	s.Busy = true
	return s.LoadedPID, func() {
		d.mu.Lock()
		s.Busy = false
		d.mu.Unlock()
	}, nil
}

// Register saves the form: it reuses the loaded patient id or assigns a new one,
// writes the patient and visit, and resets the terminal's form on success.
func (d *Desk) Register(ctx context.Context, terminal string, in models.RegistrationInput) (*registration.Result, error) {
	terminal = terminalKey(terminal)

	loaded, release, err := d.acquire(terminal)
	if err != nil {
		d.metrics.ObserveRegistration("busy")
		return nil, err
	}
	defer release()

	if err := registration.Validate(in); err != nil {
		d.metrics.ObserveRegistration("invalid")
		return nil, err
	}

	pid, err := d.assigner.PatientID(loaded, d.mirror.PatientIDs())
	if err != nil {
		d.metrics.ObserveRegistration("failed")
		return nil, err
	}
	opdID, err := d.assigner.VisitID(d.mirror.OPDIDs())
	if err != nil {
		d.assigner.Release(pid)
		d.metrics.ObserveRegistration("failed")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := d.reconciler.Register(ctx, in, pid, opdID, d.now())
	d.metrics.ObserveWrite("register", time.Since(start).Seconds())
	if err != nil {
		d.releaseUnwritten(err, pid, opdID)
		d.metrics.ObserveRegistration("failed")
		d.log.Error().Err(err).Str("terminal", terminal).Str("pid", pid).Str("opd_id", opdID).Msg("registration failed")
		return nil, err
	}

	d.metrics.ObserveRegistration("ok")
	d.log.Info().
		Str("terminal", terminal).
		Str("pid", res.Patient.ID).
		Str("opd_id", res.Visit.OPDID).
		Bool("new_patient", res.PatientCreated).
		Msg("opd visit registered")

	d.Clear(terminal)
	d.notify(res.Visit)
	return res, nil
}

// releaseUnwritten returns ids to the assigner after a failed save. A partial write
// stored the patient, and a timed out write may still land, so those ids stay reserved.
func (d *Desk) releaseUnwritten(err error, pid, opdID string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return
	}
	var partial *registration.PartialWriteError
	if errors.As(err, &partial) {
		d.assigner.Release(opdID)
		return
	}
	d.assigner.Release(pid, opdID)
}

// UpdateLoaded saves demographic edits for the loaded patient without creating a visit.
func (d *Desk) UpdateLoaded(ctx context.Context, terminal string, in models.PatientInput) (*models.Patient, error) {
	terminal = terminalKey(terminal)

	loaded, release, err := d.acquire(terminal)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	p, err := d.reconciler.UpdatePatient(ctx, loaded, in, d.now())
	d.metrics.ObserveWrite("update_patient", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	d.log.Info().Str("terminal", terminal).Str("pid", p.ID).Msg("patient record updated")
	return p, nil
}

// Search matches patients by id substring (case-insensitive) or phone substring.
func (d *Desk) Search(pidQuery, phoneQuery string) ([]models.Patient, error) {
	qID := strings.ToUpper(strings.TrimSpace(pidQuery))
	qPhone := strings.TrimSpace(phoneQuery)
	if qID == "" && qPhone == "" {
		return nil, ErrEmptySearch
	}

	found := make([]models.Patient, 0)
	for _, p := range d.mirror.Patients() {
		if (qID != "" && strings.Contains(strings.ToUpper(p.ID), qID)) ||
			(qPhone != "" && strings.Contains(p.Phone, qPhone)) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil, ErrNoMatch
	}
	return found, nil
}

// Load makes pid the terminal's loaded patient so the next save reuses the id. It is
// refused while the terminal is saving, since a successful save clears the form.
func (d *Desk) Load(terminal, pid string) (models.Patient, error) {
	terminal = terminalKey(terminal)

	p, ok := d.mirror.FindPatient(pid)
	if !ok {
		return models.Patient{}, registration.ErrPatientNotFound
	}

	d.mu.Lock()
	s := d.sessionLocked(terminal)
	if s.Busy {
		d.mu.Unlock()
		return models.Patient{}, ErrBusy
	}
	s.LoadedPID = p.ID
	s.VisitType = models.VisitTypeFollowUp
	d.mu.Unlock()
	return p, nil
}

// Clear resets the terminal's form back to "New Patient".
func (d *Desk) Clear(terminal string) {
	terminal = terminalKey(terminal)

	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sessionLocked(terminal)
	s.LoadedPID = ""
	s.VisitType = models.VisitTypeNew
}

func (d *Desk) notify(v models.Visit) {
	if d.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.NotifyNewVisit(ctx, v.Doctor, v.OPDID, v.PatientName); err != nil {
			d.log.Warn().Err(err).Str("opd_id", v.OPDID).Msg("doctor notification failed")
		}
	}()
}
