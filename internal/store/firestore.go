package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// resubscribeDelay is how long a failed listener waits before listening again.
var resubscribeDelay = 5 * time.Second

// Firestore is the Store backed by Cloud Firestore query-snapshot listeners.
type Firestore struct {
	client *firestore.Client
	log    zerolog.Logger
}

func NewFirestore(client *firestore.Client, log zerolog.Logger) *Firestore {
	return &Firestore{client: client, log: log.With().Str("store", "firestore").Logger()}
}

func (f *Firestore) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	go f.listen(ctx, collection, onSnapshot, onError)
	return nil
}

// listen keeps one snapshot listener alive. A snapshot iterator is dead after its first
// error, so the listener is recreated after a pause until ctx ends.
func (f *Firestore) listen(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) {
	for {
		err := f.consume(ctx, collection, onSnapshot)
		if ctx.Err() != nil {
			return
		}
		if onError != nil {
			onError(fmt.Errorf("listen %s: %w", collection, err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
			f.log.Info().Str("collection", collection).Msg("re-listening after error")
		}
	}
}

func (f *Firestore) consume(ctx context.Context, collection string, onSnapshot SnapshotFunc) error {
	it := f.client.Collection(collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}
		all, err := snap.Documents.GetAll()
		if err != nil {
			return err
		}
		docs := make([]Document, 0, len(all))
		for _, ds := range all {
			docs = append(docs, Document{ID: ds.Ref.ID, Data: ds.Data()})
		}
		onSnapshot(docs)
	}
}

func (f *Firestore) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	ref, _, err := f.client.Collection(collection).Add(ctx, map[string]interface{}(rec))
	if err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, rec Record) error {
	_, err := f.client.Collection(collection).Doc(id).Update(ctx, fieldUpdates(rec))
	return mapFirestoreErr(collection, id, err)
}

// RunInTransaction commits every write made by fn in one Firestore transaction.
// Firestore may call fn again on contention.
func (f *Firestore) RunInTransaction(ctx context.Context, fn func(w Writer) error) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{client: f.client, tx: tx})
	})
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) Insert(_ context.Context, collection string, rec Record) (string, error) {
	ref := t.client.Collection(collection).NewDoc()
	if err := t.tx.Create(ref, map[string]interface{}(rec)); err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (t *firestoreTx) Update(_ context.Context, collection, id string, rec Record) error {
	err := t.tx.Update(t.client.Collection(collection).Doc(id), fieldUpdates(rec))
	return mapFirestoreErr(collection, id, err)
}

// fieldUpdates turns a partial record into top-level field updates, sorted so the
// request is stable.
func fieldUpdates(rec Record) []firestore.Update {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: rec[k]})
	}
	return updates
}

func mapFirestoreErr(collection, id string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, err)
}
