package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

// TimerKey is the kv_store key holding the active countdown.
const TimerKey = "merchTrax_timer_data"

// timerValue is the stored JSON. endTime is epoch milliseconds.
type timerValue struct {
	EndTime    int64  `json:"endTime"`
	Paused     bool   `json:"paused"`
	Remaining  int    `json:"remaining,omitempty"`
	VisitID    string `json:"visitId,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
}

// TimerStore implements domain.TimerStore as a single row in kv_store.
type TimerStore struct {
	db  *sql.DB
	key string
}

// NewTimerStore creates the timer slot store.
func NewTimerStore(db *DB) *TimerStore {
	return &TimerStore{db: db.SqlDB, key: TimerKey}
}

func (s *TimerStore) Save(ctx context.Context, rec domain.TimerRecord) error {
	v := timerValue{
		Paused:     rec.Paused,
		Remaining:  rec.Remaining,
		VisitID:    rec.VisitID,
		Generation: rec.Generation,
	}
	if !rec.EndTime.IsZero() {
		v.EndTime = rec.EndTime.UnixMilli()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode timer record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save timer record: %w", err)
	}
	return nil
}

// Load returns domain.ErrNotFound when the slot is empty. A value that does
// not decode is treated as corrupt and reported as an error.
func (s *TimerStore) Load(ctx context.Context) (domain.TimerRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", s.key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TimerRecord{}, domain.ErrNotFound
		}
		return domain.TimerRecord{}, fmt.Errorf("load timer record: %w", err)
	}

	var v timerValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.TimerRecord{}, fmt.Errorf("decode timer record: %w", err)
	}

	rec := domain.TimerRecord{
		Paused:     v.Paused,
		Remaining:  v.Remaining,
		VisitID:    v.VisitID,
		Generation: v.Generation,
	}
	if v.EndTime > 0 {
		rec.EndTime = time.UnixMilli(v.EndTime).UTC()
	}
	return rec, nil
}

func (s *TimerStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", s.key); err != nil {
		return fmt.Errorf("clear timer record: %w", err)
	}
	return nil
}
