package storage

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"hivestake/core/events"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v1" {
		t.Fatalf("get = %q err=%v", value, err)
	}

	// Stored values are copies, not aliases.
	value[0] = 'X'
	value, _ = db.Get([]byte("k"))
	if string(value) != "v1" {
		t.Fatalf("stored value aliased caller buffer: %q", value)
	}

	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has = %v err=%v", ok, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := db.Has([]byte("k")); ok {
		t.Fatalf("key survived delete")
	}
}

func TestOutcomeArchiveDayBuckets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.db")
	archive, err := OpenOutcomeArchive(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer archive.Close()

	now := int64(1_704_100_000) // 2024-01-01 UTC
	archive.SetNowFunc(func() int64 { return now })

	archive.Emit(events.CollaboratorSkipped{
		Collaborator: "experience",
		Operation:    "award",
		Reason:       "sink offline",
	})
	archive.Emit(events.IssuanceQuotaHit{
		Account:   [20]byte{19: 1},
		Day:       "2024-01-01",
		Requested: big.NewInt(10),
		Remaining: big.NewInt(3),
		Truncated: true,
	})

	// The next day lands in its own bucket.
	now += 86_400
	archive.Emit(events.CollaboratorSkipped{
		Collaborator: "achievements",
		Operation:    "record",
		Reason:       "timeout",
	})

	firstDay, err := archive.Day("2024-01-01")
	if err != nil {
		t.Fatalf("day query: %v", err)
	}
	if len(firstDay) != 2 {
		t.Fatalf("expected 2 records on first day, got %d", len(firstDay))
	}
	for _, record := range firstDay {
		if record.ID == "" || record.Time != 1_704_100_000 {
			t.Fatalf("record not stamped: %+v", record)
		}
	}

	secondDay, err := archive.Day("2024-01-02")
	if err != nil || len(secondDay) != 1 {
		t.Fatalf("second day records = %d err=%v", len(secondDay), err)
	}
	if secondDay[0].Type != events.TypeCollaboratorSkipped {
		t.Fatalf("unexpected type %q", secondDay[0].Type)
	}
	if secondDay[0].Attributes["reason"] != "timeout" {
		t.Fatalf("attributes not flattened: %+v", secondDay[0].Attributes)
	}

	if empty, err := archive.Day("2024-01-03"); err != nil || len(empty) != 0 {
		t.Fatalf("empty day = %d err=%v", len(empty), err)
	}
}

func TestOutcomeArchiveFiltersTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.db")
	archive, err := OpenOutcomeArchive(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer archive.Close()
	archive.SetNowFunc(func() int64 { return 1_704_100_000 })

	// Routine domain events are not operational signals.
	archive.Emit(events.ColonyCreated{ColonyID: 1, Name: "harvesters"})

	records, err := archive.Day("2024-01-01")
	if err != nil || len(records) != 0 {
		t.Fatalf("expected filtered archive, got %d records err=%v", len(records), err)
	}
}
