package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/view"
)

// VisitHandler serves the visit list, history and visit CRUD.
type VisitHandler struct {
	visits *service.VisitService
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(visits *service.VisitService) *VisitHandler {
	return &VisitHandler{visits: visits}
}

// HandleListUpcoming returns open visits grouped by date.
// GET /api/visits
func (h *VisitHandler) HandleListUpcoming(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	groups, err := h.visits.Upcoming(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "list upcoming visits", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": toVisitGroupDTOs(groups)})
}

// HandleListHistory returns completed visits grouped by date, newest first.
// GET /api/visits/history
func (h *VisitHandler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	groups, err := h.visits.History(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "list visit history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": toVisitGroupDTOs(groups)})
}

// HandleCreate schedules a visit.
// POST /api/visits
func (h *VisitHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req VisitRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	v, err := h.visits.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeServiceError(w, "create visit", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"visit": toVisitDTO(v)})
}

// HandleGet returns one visit.
// GET /api/visits/{id}
func (h *VisitHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	v, err := h.visits.Get(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get visit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visit": toVisitDTO(v)})
}

// HandleUpdate replaces a visit's editable fields.
// PUT /api/visits/{id}
func (h *VisitHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req VisitRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	v, err := h.visits.Update(r.Context(), user.ID, r.PathValue("id"), req.input())
	if err != nil {
		writeServiceError(w, "update visit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visit": toVisitDTO(v)})
}

// HandleDelete removes a visit.
// DELETE /api/visits/{id}
func (h *VisitHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.visits.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeServiceError(w, "delete visit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleComplete marks a visit done without going through the timer.
// POST /api/visits/{id}/complete
func (h *VisitHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	v, err := h.visits.MarkComplete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "complete visit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visit": toVisitDTO(v)})
}

// HandleVisitsPage renders upcoming visits.
// GET /visits
func (h *VisitHandler) HandleVisitsPage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	groups, err := h.visits.Upcoming(r.Context(), user.ID)
	if err != nil {
		slog.Error("list upcoming visits", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.VisitsPage(user.DisplayName, groups).Render(r.Context(), w)
}

// HandleHistoryPage renders completed visits.
// GET /history
func (h *VisitHandler) HandleHistoryPage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	groups, err := h.visits.History(r.Context(), user.ID)
	if err != nil {
		slog.Error("list visit history", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	view.HistoryPage(user.DisplayName, groups).Render(r.Context(), w)
}

// HandleCreateForm schedules a visit from the HTML form.
// POST /visits
func (h *VisitHandler) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	minutes, err := strconv.Atoi(r.FormValue("allotted_minutes"))
	if err != nil {
		renderError(w, r, http.StatusUnprocessableEntity, "Invalid visit", "Allotted minutes must be a number.")
		return
	}
	in := service.VisitInput{
		StoreName:       r.FormValue("store_name"),
		Location:        r.FormValue("location"),
		TaskTitle:       r.FormValue("task_title"),
		VisitName:       r.FormValue("visit_name"),
		StartTime:       r.FormValue("start_time"),
		AllottedMinutes: minutes,
		Date:            r.FormValue("date"),
	}
	if _, err := h.visits.Create(r.Context(), user.ID, in); err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("create visit", "error", err)
		}
		renderError(w, r, status, "Invalid visit", msg)
		return
	}
	http.Redirect(w, r, "/visits", http.StatusSeeOther)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	w.WriteHeader(status)
	view.ErrorPage(status, title, msg).Render(r.Context(), w)
}
