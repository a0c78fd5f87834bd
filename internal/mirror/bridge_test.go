package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opd-desk/internal/metrics"
	"opd-desk/internal/models"
	"opd-desk/internal/store"
)

func startBridge(t *testing.T) (*store.Memory, *Bridge) {
	t.Helper()
	mem := store.NewMemory()
	b := NewBridge(mem, New(), zerolog.Nop(), nil)
	return mem, b
}

func TestBridge_ReadyAfterBothSnapshots(t *testing.T) {
	mem, b := startBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, b.Mirror().Loaded())
	require.NoError(t, b.Start(ctx))

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	require.NoError(t, b.WaitReady(waitCtx))
	assert.True(t, b.Mirror().Loaded())
	assert.Equal(t, 0, b.Mirror().PatientCount())

	_, err := mem.Insert(ctx, models.CollectionPatients, models.Patient{ID: "P-1001", Name: "A"}.Record())
	require.NoError(t, err)
	assert.Equal(t, []string{"P-1001"}, b.Mirror().PatientIDs())
}

func TestBridge_VisitListenerRunsSynchronously(t *testing.T) {
	mem, b := startBridge(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen [][]models.Visit
	var totals []int
	b.OnVisits(func(visits []models.Visit, total int) {
		seen = append(seen, visits)
		totals = append(totals, total)
	})
	require.NoError(t, b.Start(ctx))
	require.Len(t, seen, 1)

	_, err := mem.Insert(ctx, models.CollectionPatients, models.Patient{ID: "P-1001"}.Record())
	require.NoError(t, err)
	_, err = mem.Insert(ctx, models.CollectionVisits, models.Visit{OPDID: "OPD-000001", PID: "P-1001"}.Record())
	require.NoError(t, err)

	// Insert returned, so the listener has already run with the new list.
	require.Len(t, seen, 2)
	require.Len(t, seen[1], 1)
	assert.Equal(t, "OPD-000001", seen[1][0].OPDID)
	assert.Equal(t, 1, totals[1])

	v, ok := b.Mirror().FindVisit("OPD-000001")
	require.True(t, ok)
	assert.NotEmpty(t, v.DocID)
}

func TestBridge_ErrorOnOneCollectionLeavesOtherLive(t *testing.T) {
	mem := store.NewMemory()
	reg := prometheus.NewRegistry()
	dm := metrics.NewDeskMetrics(reg)
	b := NewBridge(mem, New(), zerolog.Nop(), dm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var patientTotals []int
	b.OnPatients(func(total int) { patientTotals = append(patientTotals, total) })
	require.NoError(t, b.Start(ctx))

	_, err := mem.Insert(ctx, models.CollectionVisits, models.Visit{OPDID: "OPD-000001"}.Record())
	require.NoError(t, err)

	mem.FailSubscriptions(models.CollectionPatients, errors.New("stream reset"))

	_, err = mem.Insert(ctx, models.CollectionVisits, models.Visit{OPDID: "OPD-000002"}.Record())
	require.NoError(t, err)
	assert.Len(t, b.Mirror().Visits(), 2)
	assert.Equal(t, []int{0}, patientTotals)

	count, err := testutil.GatherAndCount(reg, "opd_sync_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMirror_ReadsAreCopies(t *testing.T) {
	m := New()
	m.replacePatients([]store.Document{{ID: "d1", Data: store.Record{"id": "P-1001", "name": "A"}}})

	ps := m.Patients()
	ps[0].Name = "changed"

	p, ok := m.FindPatient("P-1001")
	require.True(t, ok)
	assert.Equal(t, "A", p.Name)
}

func TestMirror_NotLoadedUntilFirstVisitSnapshot(t *testing.T) {
	m := New()
	m.replacePatients(nil)
	assert.False(t, m.Loaded())

	select {
	case <-m.Ready():
		t.Fatal("ready before visits arrived")
	default:
	}

	m.replaceVisits(nil)
	assert.True(t, m.Loaded())
	<-m.Ready()
}
