package http

import (
	"context"
	"net/http"
	"time"

	"casa/internal/agenda"
	"casa/internal/auth"
	"casa/internal/core"
	applog "casa/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"backend": "ok"}
	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	m := s.tracer.GetMetrics()
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]any{
			"total_requests":      m.TotalRequests,
			"server_errors":       m.ServerErrors,
			"rate_limited":        s.limiter.GetMetrics().Rejected,
			"suspicious_requests": s.detector.GetMetrics().SuspiciousRequests,
		},
	})
}

// logWrite records a successful mutation with the request's logger.
func (s *Server) logWrite(r *http.Request, component, operation, entity, id string) {
	ownerID, _ := auth.OwnerIDFromContext(r.Context())
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogWrite(r.Context(), component, operation, entity, id, ownerID)
}

func (s *Server) today() core.Date {
	return core.DateOf(s.deps.Now())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTasksJSON(st.Tasks()))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := req.window()
	if err != nil {
		writeError(w, r, err)
		return
	}

	task := core.Task{Window: window, Repeat: core.RepeatNone}
	if req.Title != nil {
		task.Title = sanitizeInput(*req.Title)
	}
	if req.Date != nil {
		task.Anchor = *req.Date
	}
	if req.Repeat != nil {
		task.Repeat = *req.Repeat
	}
	task.RepeatUntil = req.RepeatUntil.Value

	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := st.Add(r.Context(), task)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpCreate, "task", created.ID)
	writeJSON(w, http.StatusCreated, toTaskJSON(created))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	window, err := req.window()
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch := agenda.TaskPatch{
		Anchor: req.Date,
		Window: window,
		Repeat: req.Repeat,
	}
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		patch.Title = &title
	}
	if req.RepeatUntil.Set {
		patch.RepeatUntil = req.RepeatUntil.Value
		patch.ClearRepeatUntil = req.RepeatUntil.Value == nil
	}

	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	updated, err := st.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpUpdate, "task", id)
	writeJSON(w, http.StatusOK, toTaskJSON(updated))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if err := st.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpDelete, "task", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleAgendaDay lists the tasks occurring on ?date= (default today).
func (s *Server) handleAgendaDay(w http.ResponseWriter, r *http.Request) {
	day, err := ParseDateQuery(r.URL.Query(), "date", s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrencesJSON{
		Date:  day,
		Tasks: toTasksJSON(st.OccurrencesOn(day.Time)),
	})
}

// handleAgendaMonth maps each day of ?year=&month= with occurrences to the
// ids of the tasks occurring on it.
func (s *Server) handleAgendaMonth(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.deps.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.agendaFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	days := make(map[string][]string)
	for day, tasks := range st.Month(params.Year, params.Month) {
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		days[day] = ids
	}
	writeJSON(w, http.StatusOK, monthJSON{Year: params.Year, Month: params.Month, Days: days})
}
