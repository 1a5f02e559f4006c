package handler

import (
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/view"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}
}

// VisitDTO is the JSON representation of a visit.
type VisitDTO struct {
	ID              string     `json:"id"`
	StoreName       string     `json:"storeName"`
	Location        string     `json:"location"`
	TaskTitle       string     `json:"taskTitle"`
	Title           string     `json:"title"`
	VisitName       string     `json:"visitName,omitempty"`
	StartTime       string     `json:"startTime"`
	AllottedMinutes int        `json:"allottedMinutes"`
	Date            string     `json:"date"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func toVisitDTO(v *domain.Visit) VisitDTO {
	return VisitDTO{
		ID:              v.ID,
		StoreName:       v.StoreName,
		Location:        v.Location,
		TaskTitle:       v.TaskTitle,
		Title:           v.Title,
		VisitName:       v.VisitName,
		StartTime:       v.StartTime,
		AllottedMinutes: v.AllottedMinutes,
		Date:            v.Date,
		Completed:       v.Completed,
		CompletedAt:     v.CompletedAt,
	}
}

// VisitGroupDTO is one date's worth of visits.
type VisitGroupDTO struct {
	Date   string     `json:"date"`
	Visits []VisitDTO `json:"visits"`
}

func toVisitGroupDTOs(groups []domain.VisitGroup) []VisitGroupDTO {
	dtos := make([]VisitGroupDTO, len(groups))
	for i, g := range groups {
		visits := make([]VisitDTO, len(g.Visits))
		for j := range g.Visits {
			visits[j] = toVisitDTO(&g.Visits[j])
		}
		dtos[i] = VisitGroupDTO{Date: g.Date, Visits: visits}
	}
	return dtos
}

// VisitRequest is the body of visit create and update calls.
type VisitRequest struct {
	StoreName       string `json:"storeName"`
	Location        string `json:"location"`
	TaskTitle       string `json:"taskTitle"`
	VisitName       string `json:"visitName"`
	StartTime       string `json:"startTime"`
	AllottedMinutes int    `json:"allottedMinutes"`
	Date            string `json:"date"`
}

func (req VisitRequest) input() service.VisitInput {
	return service.VisitInput{
		StoreName:       req.StoreName,
		Location:        req.Location,
		TaskTitle:       req.TaskTitle,
		VisitName:       req.VisitName,
		StartTime:       req.StartTime,
		AllottedMinutes: req.AllottedMinutes,
		Date:            req.Date,
	}
}

// TimerDTO is the JSON representation of the countdown.
type TimerDTO struct {
	VisitID          string     `json:"visitId,omitempty"`
	VisitTitle       string     `json:"visitTitle,omitempty"`
	State            string     `json:"state"`
	Paused           bool       `json:"paused"`
	Ended            bool       `json:"ended"`
	RemainingSeconds int        `json:"remainingSeconds"`
	AllottedSeconds  int        `json:"allottedSeconds"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Generation       uint64     `json:"generation"`
	Display          string     `json:"display"`
}

func toTimerDTO(s domain.TimerSnapshot) TimerDTO {
	return TimerDTO{
		VisitID:          s.VisitID,
		VisitTitle:       s.VisitTitle,
		State:            string(s.State),
		Paused:           s.Paused(),
		Ended:            s.Ended(),
		RemainingSeconds: s.RemainingSeconds,
		AllottedSeconds:  s.AllottedSeconds,
		Deadline:         s.Deadline,
		Generation:       s.Generation,
		Display:          view.FormatRemaining(s.RemainingSeconds),
	}
}

// TimerStatusDTO is what the timer screen shows.
type TimerStatusDTO struct {
	Visit         *VisitDTO `json:"visit,omitempty"`
	Timer         TimerDTO  `json:"timer"`
	PromptPending bool      `json:"promptPending"`
}

func toTimerStatusDTO(st service.HostStatus) TimerStatusDTO {
	dto := TimerStatusDTO{Timer: toTimerDTO(st.Timer), PromptPending: st.PromptPending}
	if st.Visit != nil {
		v := toVisitDTO(st.Visit)
		dto.Visit = &v
	}
	return dto
}

func toTimerView(st service.HostStatus) view.TimerView {
	tv := view.TimerView{
		VisitTitle:    st.Timer.VisitTitle,
		Remaining:     st.Timer.RemainingSeconds,
		Allotted:      st.Timer.AllottedSeconds,
		State:         st.Timer.State,
		PromptPending: st.PromptPending,
	}
	if st.Visit != nil {
		tv.VisitTitle = st.Visit.Title
		tv.Location = st.Visit.Location
	}
	return tv
}
