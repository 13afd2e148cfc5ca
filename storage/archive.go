package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"hivestake/core/events"
	"hivestake/core/types"
)

// archiveBucket holds one nested bucket per UTC day.
var archiveBucket = []byte("outcomes")

// archivedTypes selects the operational signals worth keeping: swallowed
// collaborator failures, repair sub-actions and quota hits.
var archivedTypes = map[string]bool{
	events.TypeCollaboratorSkipped: true,
	events.TypeColonyRepaired:      true,
	events.TypeIssuanceQuotaHit:    true,
}

// OutcomeRecord is one archived outcome signal.
type OutcomeRecord struct {
	ID         string            `json:"id"`
	Time       int64             `json:"time"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// OutcomeArchive persists best-effort failure and reconciliation signals to a
// bbolt file, bucketed by UTC day. It plugs in as an event emitter so the
// engines stay unaware of it.
type OutcomeArchive struct {
	db    *bolt.DB
	nowFn func() int64
}

// OpenOutcomeArchive creates or opens the archive at path.
func OpenOutcomeArchive(path string) (*OutcomeArchive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(archiveBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &OutcomeArchive{
		db:    db,
		nowFn: func() int64 { return time.Now().Unix() },
	}, nil
}

// SetNowFunc overrides the time source, primarily for tests.
func (a *OutcomeArchive) SetNowFunc(now func() int64) {
	if now != nil {
		a.nowFn = now
	}
}

// Emit satisfies events.Emitter. Signals outside the archived set are
// dropped; archive write failures are swallowed because archiving must never
// affect the operation that produced the signal.
func (a *OutcomeArchive) Emit(evt events.Event) {
	if a == nil || a.db == nil || evt == nil {
		return
	}
	if !archivedTypes[evt.EventType()] {
		return
	}
	record := OutcomeRecord{
		ID:         uuid.NewString(),
		Time:       a.nowFn(),
		Type:       evt.EventType(),
		Attributes: attributesOf(evt),
	}
	_ = a.append(record)
}

// attributesOf flattens the broadcast payload when the event carries one.
func attributesOf(evt events.Event) map[string]string {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return nil
	}
	payload := carrier.Event()
	if payload == nil {
		return nil
	}
	return payload.Attributes
}

func (a *OutcomeArchive) append(record OutcomeRecord) error {
	day := time.Unix(record.Time, 0).UTC().Format("2006-01-02")
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(archiveBucket)
		bucket, err := root.CreateBucketIfNotExists([]byte(day))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(record.ID), payload)
	})
}

// Day returns every record archived for a UTC day key (2006-01-02).
func (a *OutcomeArchive) Day(day string) ([]OutcomeRecord, error) {
	var records []OutcomeRecord
	err := a.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(archiveBucket)
		bucket := root.Bucket([]byte(day))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var record OutcomeRecord
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

// Close closes the underlying bbolt file.
func (a *OutcomeArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
