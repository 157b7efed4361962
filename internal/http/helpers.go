package http

import (
	"net/http"
	"strings"

	"casa/internal/agenda"
	"casa/internal/auth"
)

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// agendaFor returns the caller's task store.
func (s *Server) agendaFor(r *http.Request) (*agenda.Store, error) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		return nil, agenda.ErrNoOwner
	}
	return s.deps.Agenda.For(r.Context(), ownerID)
}
