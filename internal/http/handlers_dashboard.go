package http

import (
	"net/http"

	"casa/internal/core"
)

// handleDashboard returns balance, totals, per-category expenses and the
// most recent transactions for the filter in the query string.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := ParseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := ParseLimit(q, core.DefaultRecentLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.deps.Dashboard.Summary(r.Context(), filter, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardJSON(summary))
}

func (s *Server) handleResponsibles(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Dashboard.Responsibles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}
