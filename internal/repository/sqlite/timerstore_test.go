package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/repository/sqlite"
)

func TestTimerStore_EmptySlot(t *testing.T) {
	store := sqlite.NewTimerStore(newTestDB(t))

	if _, err := store.Load(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear on empty slot: %v", err)
	}
}

func TestTimerStore_SaveOverwritesSingleSlot(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewTimerStore(db)
	ctx := context.Background()

	end := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, domain.TimerRecord{EndTime: end, VisitID: "a", Generation: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, domain.TimerRecord{EndTime: end.Add(time.Minute), VisitID: "b", Generation: 2}); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.EndTime.Equal(end.Add(time.Minute)) || rec.VisitID != "b" || rec.Generation != 2 || rec.Paused {
		t.Fatalf("unexpected record %+v", rec)
	}

	var rows int
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv_store").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single slot row, got %d", rows)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestTimerStore_PausedRecord(t *testing.T) {
	store := sqlite.NewTimerStore(newTestDB(t))
	ctx := context.Background()

	if err := store.Save(ctx, domain.TimerRecord{Paused: true, Remaining: 125, VisitID: "v"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rec.Paused || rec.Remaining != 125 || !rec.EndTime.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestTimerStore_WireFormat(t *testing.T) {
	db := newTestDB(t)
	store := sqlite.NewTimerStore(db)
	ctx := context.Background()

	end := time.UnixMilli(1748876400000)
	if err := store.Save(ctx, domain.TimerRecord{EndTime: end}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var raw string
	if err := db.SqlDB.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", sqlite.TimerKey).Scan(&raw); err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if raw != `{"endTime":1748876400000,"paused":false}` {
		t.Fatalf("unexpected stored value %s", raw)
	}
}

func TestTimerStore_CorruptValue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := db.SqlDB.ExecContext(ctx, "INSERT INTO kv_store (key, value) VALUES (?, ?)", sqlite.TimerKey, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := sqlite.NewTimerStore(db).Load(ctx)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
