package domain

import (
	"context"
	"time"
)

// Visit is a scheduled store visit for a merchandiser.
type Visit struct {
	ID              string
	UserID          int64
	StoreName       string
	Location        string
	TaskTitle       string
	Title           string // "<StoreName> - <TaskTitle>"
	VisitName       string
	StartTime       string // "HH:MM"
	AllottedMinutes int
	Date            string // "YYYY-MM-DD"
	Completed       bool
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const (
	DateLayout      = "2006-01-02"
	StartTimeLayout = "15:04"
)

// VisitTitle is the display title shared by the visit list, the timer and
// the alarm body.
func VisitTitle(storeName, taskTitle string) string {
	return storeName + " - " + taskTitle
}

// AllottedSeconds is the countdown length handed to the timer.
func (v *Visit) AllottedSeconds() int {
	if v.AllottedMinutes <= 0 {
		return 0
	}
	return v.AllottedMinutes * 60
}

// VisitGroup is a list of visits sharing the same date.
type VisitGroup struct {
	Date   string
	Visits []Visit
}

type VisitRepository interface {
	Create(ctx context.Context, visit *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	ListByUser(ctx context.Context, userID int64, completed bool) ([]Visit, error)
	Update(ctx context.Context, visit *Visit) error
	Delete(ctx context.Context, id string) error
	MarkComplete(ctx context.Context, id string, at time.Time) error
}
