package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/merchtrax/internal/domain"
)

// VisitRepository implements domain.VisitRepository using SQLite.
type VisitRepository struct {
	db *sql.DB
}

// NewVisitRepository creates a new SQLite-backed VisitRepository.
func NewVisitRepository(db *DB) *VisitRepository {
	return &VisitRepository{db: db.SqlDB}
}

const visitColumns = `id, user_id, store_name, location, task_title, visit_name, start_time,
	allotted_minutes, visit_date, completed, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (domain.Visit, error) {
	var v domain.Visit
	var completedAt sql.NullTime
	err := row.Scan(&v.ID, &v.UserID, &v.StoreName, &v.Location, &v.TaskTitle, &v.VisitName,
		&v.StartTime, &v.AllottedMinutes, &v.Date, &v.Completed, &completedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return v, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		v.CompletedAt = &t
	}
	v.Title = domain.VisitTitle(v.StoreName, v.TaskTitle)
	return v, nil
}

// Create assigns a new random identifier unless the visit already has one.
func (r *VisitRepository) Create(ctx context.Context, visit *domain.Visit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO visits (id, user_id, store_name, location, task_title, visit_name, start_time,
		 allotted_minutes, visit_date, completed, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		visit.ID, visit.UserID, visit.StoreName, visit.Location, visit.TaskTitle, visit.VisitName,
		visit.StartTime, visit.AllottedMinutes, visit.Date, visit.Completed, visit.CompletedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}

	visit.Title = domain.VisitTitle(visit.StoreName, visit.TaskTitle)
	visit.CreatedAt = now
	visit.UpdatedAt = now
	return nil
}

func (r *VisitRepository) GetByID(ctx context.Context, id string) (*domain.Visit, error) {
	v, err := scanVisit(r.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return &v, nil
}

// ListByUser returns the user's visits with the given completion flag,
// ordered by date then start time.
func (r *VisitRepository) ListByUser(ctx context.Context, userID int64, completed bool) ([]domain.Visit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits
		 WHERE user_id = ? AND completed = ?
		 ORDER BY visit_date, start_time, created_at`, userID, completed)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (r *VisitRepository) Update(ctx context.Context, visit *domain.Visit) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE visits SET store_name = ?, location = ?, task_title = ?, visit_name = ?, start_time = ?,
		 allotted_minutes = ?, visit_date = ?, updated_at = ?
		 WHERE id = ?`,
		visit.StoreName, visit.Location, visit.TaskTitle, visit.VisitName, visit.StartTime,
		visit.AllottedMinutes, visit.Date, now, visit.ID,
	)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	visit.Title = domain.VisitTitle(visit.StoreName, visit.TaskTitle)
	visit.UpdatedAt = now
	return nil
}

func (r *VisitRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	return requireRow(result)
}

// MarkComplete sets the completion flag. Completing an already completed
// visit keeps its original completion time.
func (r *VisitRepository) MarkComplete(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE visits SET completed = 1, completed_at = COALESCE(completed_at, ?), updated_at = ?
		 WHERE id = ?`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete visit: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
