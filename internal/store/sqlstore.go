package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// documentRow stores one document of any collection as JSON.
type documentRow struct {
	ID         uint64          `gorm:"primaryKey"`
	Collection string          `gorm:"size:64;not null;uniqueIndex:idx_collection_doc"`
	DocID      string          `gorm:"size:64;not null;uniqueIndex:idx_collection_doc"`
	Data       json.RawMessage `gorm:"type:json"`
	Version    int64           `gorm:"not null;index"` // unix nanos of the last write
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

// fingerprint changes whenever a collection gains a row or any row is rewritten.
type fingerprint struct {
	Total  int64
	Latest int64
}

// SQL is a Store on a relational database through GORM. There are no server push
// notifications, so subscriptions poll a cheap fingerprint and reload the whole
// collection only when it moves.
type SQL struct {
	db       *gorm.DB
	interval time.Duration
	log      zerolog.Logger
}

func NewSQL(db *gorm.DB, pollInterval time.Duration, log zerolog.Logger) (*SQL, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents table: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &SQL{db: db, interval: pollInterval, log: log.With().Str("store", "sql").Logger()}, nil
}

func (s *SQL) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	go s.poll(ctx, collection, onSnapshot, onError)
	return nil
}

func (s *SQL) poll(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last *fingerprint
	for {
		fp, err := s.fingerprint(ctx, collection)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			if onError != nil {
				onError(fmt.Errorf("poll %s: %w", collection, err))
			}
		case last == nil || *last != fp:
			docs, err := s.load(ctx, collection)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if onError != nil {
					onError(fmt.Errorf("load %s: %w", collection, err))
				}
				break
			}
			last = &fp
			onSnapshot(docs)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *SQL) fingerprint(ctx context.Context, collection string) (fingerprint, error) {
	var fp fingerprint
	err := s.db.WithContext(ctx).
		Model(&documentRow{}).
		Select("COUNT(*) AS total, COALESCE(MAX(version), 0) AS latest").
		Where("collection = ?", collection).
		Scan(&fp).Error
	return fp, err
}

func (s *SQL) load(ctx context.Context, collection string) ([]Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("collection", collection).Str("doc_id", row.DocID).Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, Document{ID: row.DocID, Data: rec})
	}
	return docs, nil
}

func (s *SQL) Insert(ctx context.Context, collection string, rec Record) (string, error) {
	return insertRow(s.db.WithContext(ctx), collection, rec)
}

func (s *SQL) Update(ctx context.Context, collection, id string, rec Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateRow(tx, collection, id, rec)
	})
}

func (s *SQL) RunInTransaction(ctx context.Context, fn func(w Writer) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(sqlTx{db: tx})
	})
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqlTx struct {
	db *gorm.DB
}

func (t sqlTx) Insert(_ context.Context, collection string, rec Record) (string, error) {
	return insertRow(t.db, collection, rec)
}

func (t sqlTx) Update(_ context.Context, collection, id string, rec Record) error {
	return updateRow(t.db, collection, id, rec)
}

func insertRow(db *gorm.DB, collection string, rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", collection, err)
	}
	row := documentRow{
		Collection: collection,
		DocID:      uuid.New().String(),
		Data:       data,
		Version:    time.Now().UnixNano(),
	}
	if err := db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return row.DocID, nil
}

func updateRow(db *gorm.DB, collection, id string, rec Record) error {
	var row documentRow
	err := db.Where("collection = ? AND doc_id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", collection, id, err)
	}

	merged, err := mergeRecord(row.Data, rec)
	if err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	if err := db.Model(&row).Updates(map[string]interface{}{
		"data":    merged,
		"version": time.Now().UnixNano(),
	}).Error; err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func decodeRecord(raw json.RawMessage) (Record, error) {
	rec := Record{}
	if len(raw) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// mergeRecord overlays the fields of rec onto the stored JSON document.
func mergeRecord(raw json.RawMessage, rec Record) (json.RawMessage, error) {
	existing, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range rec {
		existing[k] = v
	}
	return json.Marshal(existing)
}
