package http

import (
	"net/http"

	"casa/internal/core"
	applog "casa/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Backend.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoriesJSON(cats))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Backend.CreateCategory(r.Context(), core.Category{
		Name: sanitizeInput(req.Name),
		Icon: sanitizeInput(req.Icon),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpCreate, "category", created.ID)
	writeJSON(w, http.StatusCreated, categoryJSON{ID: created.ID, Name: created.Name, Icon: created.Icon})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.deps.Backend.UpdateCategory(r.Context(), core.Category{
		ID:   r.PathValue("id"),
		Name: sanitizeInput(req.Name),
		Icon: sanitizeInput(req.Icon),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpUpdate, "category", updated.ID)
	writeJSON(w, http.StatusOK, categoryJSON{ID: updated.ID, Name: updated.Name, Icon: updated.Icon})
}

// handleDeleteCategory refuses with 409 while transactions use the category.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Backend.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpDelete, "category", id)
	w.WriteHeader(http.StatusNoContent)
}
