package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SubscribeDeliversInitialAndUpdates(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := m.Insert(ctx, "patients", Record{"id": "P-1001"})
	require.NoError(t, err)

	var snaps [][]Document
	require.NoError(t, m.Subscribe(ctx, "patients", func(docs []Document) {
		snaps = append(snaps, docs)
	}, nil))
	require.Len(t, snaps, 1)
	require.Len(t, snaps[0], 1)
	assert.Equal(t, id, snaps[0][0].ID)

	require.NoError(t, m.Update(ctx, "patients", id, Record{"name": "Rina"}))
	require.Len(t, snaps, 2)
	assert.Equal(t, "P-1001", snaps[1][0].Data["id"])
	assert.Equal(t, "Rina", snaps[1][0].Data["name"])
}

func TestMemory_SnapshotsAreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := Record{"name": "A"}
	id, err := m.Insert(ctx, "patients", rec)
	require.NoError(t, err)
	rec["name"] = "mutated"

	var got []Document
	require.NoError(t, m.Subscribe(ctx, "patients", func(docs []Document) { got = docs }, nil))
	got[0].Data["name"] = "also mutated"

	var again []Document
	require.NoError(t, m.Subscribe(ctx, "patients", func(docs []Document) { again = docs }, nil))
	assert.Equal(t, id, again[0].ID)
	assert.Equal(t, "A", again[0].Data["name"])
}

func TestMemory_UpdateMissing(t *testing.T) {
	m := NewMemory()
	err := m.Update(context.Background(), "patients", "nope", Record{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_TransactionAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunInTransaction(ctx, func(w Writer) error {
		if _, err := w.Insert(ctx, "visits", Record{"opdId": "OPD-1"}); err != nil {
			return err
		}
		return w.Update(ctx, "patients", "missing", Record{"name": "x"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len("visits"))

	boom := errors.New("boom")
	err = m.RunInTransaction(ctx, func(w Writer) error {
		_, _ = w.Insert(ctx, "visits", Record{"opdId": "OPD-2"})
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len("visits"))

	err = m.RunInTransaction(ctx, func(w Writer) error {
		_, err := w.Insert(ctx, "visits", Record{"opdId": "OPD-3"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len("visits"))
}

func TestMemory_CancelledSubscriptionStopsDelivery(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	require.NoError(t, m.Subscribe(ctx, "visits", func([]Document) { calls++ }, nil))
	cancel()

	// unsubscribe happens on its own goroutine; deliver checks closed under the
	// subscription lock, so poll until it is observed.
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.subs["visits"]) == 0
	}, timeout, tick)

	_, err := m.Insert(context.Background(), "visits", Record{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestMemory_FailSubscriptions(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got error
	require.NoError(t, m.Subscribe(ctx, "patients", func([]Document) {}, func(err error) { got = err }))

	boom := errors.New("stream reset")
	m.FailSubscriptions("patients", boom)
	assert.Equal(t, boom, got)
}
