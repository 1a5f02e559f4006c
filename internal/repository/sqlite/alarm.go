package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

// AlarmRepository implements domain.AlarmRepository using SQLite.
type AlarmRepository struct {
	db *sql.DB
}

// NewAlarmRepository creates a new SQLite-backed AlarmRepository.
func NewAlarmRepository(db *DB) *AlarmRepository {
	return &AlarmRepository{db: db.SqlDB}
}

// Put inserts or replaces the alarm with the same identifier.
func (r *AlarmRepository) Put(ctx context.Context, a domain.Alarm) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_alarms (id, fire_at, title, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET fire_at = excluded.fire_at, title = excluded.title, body = excluded.body`,
		a.ID, a.FireAt.UnixMilli(), a.Title, a.Body,
	)
	if err != nil {
		return fmt.Errorf("put alarm: %w", err)
	}
	return nil
}

func (r *AlarmRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM scheduled_alarms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return requireRow(result)
}

// List returns pending alarms, earliest first.
func (r *AlarmRepository) List(ctx context.Context) ([]domain.Alarm, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, fire_at, title, body FROM scheduled_alarms ORDER BY fire_at, id")
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []domain.Alarm
	for rows.Next() {
		var a domain.Alarm
		var fireAt int64
		if err := rows.Scan(&a.ID, &fireAt, &a.Title, &a.Body); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		a.FireAt = time.UnixMilli(fireAt).UTC()
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}
