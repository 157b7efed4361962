package http

import (
	"net/http"

	applog "casa/internal/log"
)

func (s *Server) handleListCountdowns(w http.ResponseWriter, r *http.Request) {
	cds, err := s.deps.Backend.ListCountdowns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.deps.Now()
	out := make([]countdownJSON, 0, len(cds))
	for _, c := range cds {
		out = append(out, toCountdownJSON(c, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCountdown(w http.ResponseWriter, r *http.Request) {
	var req countdownRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Backend.CreateCountdown(r.Context(), req.countdown())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpCreate, "countdown", created.ID)
	writeJSON(w, http.StatusCreated, toCountdownJSON(created, s.deps.Now()))
}

func (s *Server) handleUpdateCountdown(w http.ResponseWriter, r *http.Request) {
	var req countdownRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c := req.countdown()
	c.ID = r.PathValue("id")
	updated, err := s.deps.Backend.UpdateCountdown(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpUpdate, "countdown", updated.ID)
	writeJSON(w, http.StatusOK, toCountdownJSON(updated, s.deps.Now()))
}

func (s *Server) handleDeleteCountdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Backend.DeleteCountdown(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentAgenda, applog.OpDelete, "countdown", id)
	w.WriteHeader(http.StatusNoContent)
}
