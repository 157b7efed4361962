package http

import (
	"net/http"

	applog "casa/internal/log"
)

func (s *Server) handleListShopping(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Shopping.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]shoppingItemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, toShoppingItemJSON(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddShopping(w http.ResponseWriter, r *http.Request) {
	var req shoppingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := req.item()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Shopping.Add(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentShopping, applog.OpCreate, "shopping_item", created.ID)
	writeJSON(w, http.StatusCreated, toShoppingItemJSON(created))
}

func (s *Server) handleEditShopping(w http.ResponseWriter, r *http.Request) {
	var req shoppingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := req.item()
	if err != nil {
		writeError(w, r, err)
		return
	}
	item.ID = r.PathValue("id")
	updated, err := s.deps.Shopping.Edit(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentShopping, applog.OpUpdate, "shopping_item", updated.ID)
	writeJSON(w, http.StatusOK, toShoppingItemJSON(updated))
}

func (s *Server) handleToggleShopping(w http.ResponseWriter, r *http.Request) {
	updated, err := s.deps.Shopping.Toggle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShoppingItemJSON(updated))
}

func (s *Server) handleRemoveShopping(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Shopping.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentShopping, applog.OpDelete, "shopping_item", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleFinishShopping moves every checked item into the purchase history.
func (s *Server) handleFinishShopping(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Shopping.Finish(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"finished": n})
}

func (s *Server) handleShoppingSuggestions(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Shopping.Suggestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}
