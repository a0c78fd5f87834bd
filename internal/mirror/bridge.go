package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"opd-desk/internal/metrics"
	"opd-desk/internal/models"
	"opd-desk/internal/store"
)

// VisitsListener runs inside the visits subscription callback, right after the mirror
// was replaced.
type VisitsListener func(visits []models.Visit, totalPatients int)

// PatientsListener runs inside the patients subscription callback.
type PatientsListener func(totalPatients int)

// Bridge owns the two live subscriptions and is the only writer of its Mirror.
type Bridge struct {
	store   store.Store
	mirror  *Mirror
	log     zerolog.Logger
	metrics *metrics.DeskMetrics

	onVisits   []VisitsListener
	onPatients []PatientsListener
}

func NewBridge(st store.Store, m *Mirror, log zerolog.Logger, dm *metrics.DeskMetrics) *Bridge {
	return &Bridge{
		store:   st,
		mirror:  m,
		log:     log.With().Str("component", "sync").Logger(),
		metrics: dm,
	}
}

// OnVisits registers fn to run on every visit snapshot. Register before Start.
func (b *Bridge) OnVisits(fn VisitsListener) {
	b.onVisits = append(b.onVisits, fn)
}

// OnPatients registers fn to run on every patient snapshot. Register before Start.
func (b *Bridge) OnPatients(fn PatientsListener) {
	b.onPatients = append(b.onPatients, fn)
}

func (b *Bridge) Mirror() *Mirror { return b.mirror }

// Start opens both subscriptions. A failure to open one does not prevent the other;
// the returned error joins whatever failed.
func (b *Bridge) Start(ctx context.Context) error {
	var errs []error

	if err := b.store.Subscribe(ctx, models.CollectionPatients, b.handlePatients, b.handleError(models.CollectionPatients)); err != nil {
		b.log.Error().Err(err).Str("collection", models.CollectionPatients).Msg("subscribe failed")
		errs = append(errs, fmt.Errorf("subscribe %s: %w", models.CollectionPatients, err))
	}
	if err := b.store.Subscribe(ctx, models.CollectionVisits, b.handleVisits, b.handleError(models.CollectionVisits)); err != nil {
		b.log.Error().Err(err).Str("collection", models.CollectionVisits).Msg("subscribe failed")
		errs = append(errs, fmt.Errorf("subscribe %s: %w", models.CollectionVisits, err))
	}
	if len(errs) == 0 {
		b.log.Info().Msg("connected to cloud database")
	}
	return errors.Join(errs...)
}

// WaitReady blocks until both mirrors hold a first snapshot or ctx ends.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.mirror.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) handlePatients(docs []store.Document) {
	total := b.mirror.replacePatients(docs)
	b.metrics.ObserveSnapshot(models.CollectionPatients, total)
	b.log.Debug().Int("patients", total).Msg("patient snapshot")

	for _, fn := range b.onPatients {
		fn(total)
	}
}

func (b *Bridge) handleVisits(docs []store.Document) {
	visits := b.mirror.replaceVisits(docs)
	b.metrics.ObserveSnapshot(models.CollectionVisits, len(visits))
	b.log.Debug().Int("visits", len(visits)).Msg("visit snapshot")

	total := b.mirror.PatientCount()
	for _, fn := range b.onVisits {
		fn(visits, total)
	}
}

// handleError logs and counts a subscription error. The mirror keeps its last
// contents until the store recovers the listener.
func (b *Bridge) handleError(collection string) store.ErrorFunc {
	return func(err error) {
		b.metrics.ObserveSyncError(collection)
		b.log.Error().Err(err).Str("collection", collection).Msg("sync error")
	}
}
