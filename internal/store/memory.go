package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Snapshots are delivered synchronously from the
// goroutine that performed the write, which keeps tests deterministic. Snapshot
// callbacks must not write back to the store.
type Memory struct {
	pubMu       sync.Mutex // orders deliveries so no subscriber sees an older snapshot last
	mu          sync.Mutex
	collections map[string]*memCollection
	subs        map[string][]*memSub
}

type memCollection struct {
	order []string
	docs  map[string]Record
}

type memSub struct {
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	mu         sync.Mutex
	closed     bool
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		subs:        make(map[string][]*memSub),
	}
}

func (m *Memory) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Record)}
		m.collections[name] = c
	}
	return c
}

// snapshotLocked copies the collection so subscribers never share maps with the store.
func (m *Memory) snapshotLocked(name string) []Document {
	c := m.collection(name)
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Document{ID: id, Data: copyRecord(c.docs[id])})
	}
	return docs
}

func (m *Memory) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub := &memSub{onSnapshot: onSnapshot, onError: onError}

	m.pubMu.Lock()
	m.mu.Lock()
	m.subs[collection] = append(m.subs[collection], sub)
	initial := m.snapshotLocked(collection)
	m.mu.Unlock()
	sub.deliver(initial)
	m.pubMu.Unlock()

	go func() {
		<-ctx.Done()
		m.unsubscribe(collection, sub)
	}()
	return nil
}

func (m *Memory) unsubscribe(collection string, sub *memSub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[collection]
	for i, s := range subs {
		if s == sub {
			m.subs[collection] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}

func (s *memSub) deliver(docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.onSnapshot(docs)
}

func (m *Memory) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.New().String()

	m.mu.Lock()
	m.insertLocked(collection, id, rec)
	m.mu.Unlock()

	m.publish(collection)
	return id, nil
}

func (m *Memory) insertLocked(collection, id string, rec Record) {
	c := m.collection(collection)
	c.order = append(c.order, id)
	c.docs[id] = copyRecord(rec)
}

func (m *Memory) Update(ctx context.Context, collection, id string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	err := m.updateLocked(collection, id, rec)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.publish(collection)
	return nil
}

func (m *Memory) updateLocked(collection, id string, rec Record) error {
	c := m.collection(collection)
	existing, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range rec {
		existing[k] = v
	}
	return nil
}

// RunInTransaction buffers the writes made by fn and applies them together only if
// fn succeeds.
func (m *Memory) RunInTransaction(ctx context.Context, fn func(w Writer) error) error {
	tx := &memTx{}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	for _, op := range tx.ops {
		if op.insert {
			continue
		}
		if _, ok := m.collection(op.collection).docs[op.id]; !ok {
			m.mu.Unlock()
			return fmt.Errorf("%s/%s: %w", op.collection, op.id, ErrNotFound)
		}
	}
	touched := make(map[string]struct{})
	for _, op := range tx.ops {
		if op.insert {
			m.insertLocked(op.collection, op.id, op.rec)
		} else {
			_ = m.updateLocked(op.collection, op.id, op.rec)
		}
		touched[op.collection] = struct{}{}
	}
	m.mu.Unlock()

	for collection := range touched {
		m.publish(collection)
	}
	return nil
}

func (m *Memory) publish(collection string) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	m.mu.Lock()
	subs := append([]*memSub(nil), m.subs[collection]...)
	docs := m.snapshotLocked(collection)
	m.mu.Unlock()

	for _, s := range subs {
		s.deliver(docs)
	}
}

// FailSubscriptions reports err to every subscriber of a collection, the way a
// remote listener reports a dropped stream. Subscriptions stay registered.
func (m *Memory) FailSubscriptions(collection string, err error) {
	m.mu.Lock()
	subs := append([]*memSub(nil), m.subs[collection]...)
	m.mu.Unlock()

	for _, s := range subs {
		if s.onError != nil {
			s.onError(err)
		}
	}
}

// Len reports how many documents a collection holds.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collection(collection).order)
}

func (m *Memory) Close() error { return nil }

type memOp struct {
	insert     bool
	collection string
	id         string
	rec        Record
}

type memTx struct {
	ops []memOp
}

func (t *memTx) Insert(_ context.Context, collection string, rec Record) (string, error) {
	id := uuid.New().String()
	t.ops = append(t.ops, memOp{insert: true, collection: collection, id: id, rec: copyRecord(rec)})
	return id, nil
}

func (t *memTx) Update(_ context.Context, collection, id string, rec Record) error {
	t.ops = append(t.ops, memOp{collection: collection, id: id, rec: copyRecord(rec)})
	return nil
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
