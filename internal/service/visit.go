package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

// MaxAllottedMinutes caps a single visit at one day.
const MaxAllottedMinutes = 24 * 60

// VisitInput holds the editable fields of a visit.
type VisitInput struct {
	StoreName       string
	Location        string
	TaskTitle       string
	VisitName       string
	StartTime       string
	AllottedMinutes int
	Date            string
}

// VisitService handles scheduling and completing store visits.
type VisitService struct {
	visits domain.VisitRepository
	now    func() time.Time
}

// NewVisitService creates a new VisitService.
func NewVisitService(visits domain.VisitRepository) *VisitService {
	return &VisitService{visits: visits, now: time.Now}
}

func (in *VisitInput) normalize() error {
	in.StoreName = strings.TrimSpace(in.StoreName)
	in.Location = strings.TrimSpace(in.Location)
	in.TaskTitle = strings.TrimSpace(in.TaskTitle)
	in.VisitName = strings.TrimSpace(in.VisitName)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.Date = strings.TrimSpace(in.Date)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"store name", in.StoreName},
		{"location", in.Location},
		{"task title", in.TaskTitle},
		{"start time", in.StartTime},
		{"date", in.Date},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}

	if _, err := time.Parse(domain.StartTimeLayout, in.StartTime); err != nil {
		return fmt.Errorf("%w: start time must be HH:MM", domain.ErrInvalidInput)
	}
	if _, err := time.Parse(domain.DateLayout, in.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	if in.AllottedMinutes <= 0 || in.AllottedMinutes > MaxAllottedMinutes {
		return fmt.Errorf("%w: allotted minutes must be between 1 and %d", domain.ErrInvalidInput, MaxAllottedMinutes)
	}
	return nil
}

// Create schedules a new visit for the user.
func (s *VisitService) Create(ctx context.Context, userID int64, in VisitInput) (*domain.Visit, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	v := &domain.Visit{
		UserID:          userID,
		StoreName:       in.StoreName,
		Location:        in.Location,
		TaskTitle:       in.TaskTitle,
		VisitName:       in.VisitName,
		StartTime:       in.StartTime,
		AllottedMinutes: in.AllottedMinutes,
		Date:            in.Date,
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	return v, nil
}

// Get returns a visit owned by the user.
func (s *VisitService) Get(ctx context.Context, userID int64, id string) (*domain.Visit, error) {
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return v, nil
}

// Update replaces the editable fields of a visit.
func (s *VisitService) Update(ctx context.Context, userID int64, id string, in VisitInput) (*domain.Visit, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	v, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	v.StoreName = in.StoreName
	v.Location = in.Location
	v.TaskTitle = in.TaskTitle
	v.VisitName = in.VisitName
	v.StartTime = in.StartTime
	v.AllottedMinutes = in.AllottedMinutes
	v.Date = in.Date
	if err := s.visits.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("update visit: %w", err)
	}
	return v, nil
}

func (s *VisitService) Delete(ctx context.Context, userID int64, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.visits.Delete(ctx, id)
}

// MarkComplete flags the visit as done. Completing it twice is not an error.
func (s *VisitService) MarkComplete(ctx context.Context, userID int64, id string) (*domain.Visit, error) {
	v, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if v.Completed {
		return v, nil
	}
	if err := s.visits.MarkComplete(ctx, id, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("complete visit: %w", err)
	}
	return s.visits.GetByID(ctx, id)
}

// Upcoming returns the user's open visits grouped by date, earliest first.
func (s *VisitService) Upcoming(ctx context.Context, userID int64) ([]domain.VisitGroup, error) {
	visits, err := s.visits.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("list upcoming visits: %w", err)
	}
	return groupByDate(visits, false), nil
}

// History returns completed visits grouped by date, most recent first.
func (s *VisitService) History(ctx context.Context, userID int64) ([]domain.VisitGroup, error) {
	visits, err := s.visits.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list visit history: %w", err)
	}
	return groupByDate(visits, true), nil
}

func groupByDate(visits []domain.Visit, newestFirst bool) []domain.VisitGroup {
	sort.SliceStable(visits, func(i, j int) bool {
		if visits[i].Date != visits[j].Date {
			if newestFirst {
				return visits[i].Date > visits[j].Date
			}
			return visits[i].Date < visits[j].Date
		}
		return visits[i].StartTime < visits[j].StartTime
	})

	var groups []domain.VisitGroup
	for _, v := range visits {
		if n := len(groups); n > 0 && groups[n-1].Date == v.Date {
			groups[n-1].Visits = append(groups[n-1].Visits, v)
			continue
		}
		groups = append(groups, domain.VisitGroup{Date: v.Date, Visits: []domain.Visit{v}})
	}
	return groups
}

