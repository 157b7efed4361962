package http

import (
	"net/http"

	"casa/internal/core"
	applog "casa/internal/log"
)

// handleListTransactions returns transactions newest first, narrowed by the
// optional from/to/responsible/category query values.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionsJSON(core.Filter(txs, filter)))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.deps.Transactions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}
	created, err := s.deps.Transactions.Create(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpCreate, "transaction", created.ID)
	writeJSON(w, http.StatusCreated, toTransactionJSON(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.decodeTransaction(w, r)
	if !ok {
		return
	}
	tx.ID = r.PathValue("id")
	updated, err := s.deps.Transactions.Update(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpUpdate, "transaction", updated.ID)
	writeJSON(w, http.StatusOK, toTransactionJSON(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.logWrite(r, applog.ComponentLedger, applog.OpDelete, "transaction", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return core.Transaction{}, false
	}
	tx, err := req.transaction()
	if err != nil {
		writeError(w, r, err)
		return core.Transaction{}, false
	}
	return tx, true
}
